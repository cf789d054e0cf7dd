package main

import (
	"io"
	"sync"
)

// redirectWriter forwards writes to a target that can be swapped once the
// readline prompt exists.
type redirectWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *redirectWriter) set(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w = w
}

func (r *redirectWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Write(p)
}
