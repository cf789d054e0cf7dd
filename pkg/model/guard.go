package model

// CallbackGuard marks the phase in which a Provider callback is running.
//
// Providers may report value changes while they are being called. Those
// changes describe state that is possibly still being written, so the
// notification engine leaves them pending until the guard is released.
type CallbackGuard struct {
	depth int
}

// Enter marks the start of a provider callback.
func (g *CallbackGuard) Enter() { g.depth++ }

// Leave marks the end of a provider callback.
func (g *CallbackGuard) Leave() {
	if g.depth > 0 {
		g.depth--
	}
}

// Active reports whether a provider callback is in progress.
func (g *CallbackGuard) Active() bool { return g.depth > 0 }

// Run calls fn inside the guard.
func (g *CallbackGuard) Run(fn func() error) error {
	g.Enter()
	defer g.Leave()
	return fn()
}
