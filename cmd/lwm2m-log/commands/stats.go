package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/status"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByType    map[log.MessageType]int
	ResponseCodes     map[uint8]int
	Sessions          map[string]*SessionStats
	Servers           map[uint16]*ServerStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single client run.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
}

// ServerStats holds statistics for a single Server.
type ServerStats struct {
	Requests      int
	Responses     int
	Notifications int
	Resets        int

	// Observations counts observation state changes to ACTIVE.
	Observations int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByType:    make(map[log.MessageType]int),
		ResponseCodes:     make(map[uint8]int),
		Sessions:          make(map[string]*SessionStats),
		Servers:           make(map[uint16]*ServerStats),
	}
}

// add accounts for one event.
func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}

	var srv *ServerStats
	if event.ServerID != 0 {
		if srv, ok = s.Servers[event.ServerID]; !ok {
			srv = &ServerStats{}
			s.Servers[event.ServerID] = srv
		}
	}

	switch {
	case event.Message != nil:
		m := event.Message
		s.MessagesByType[m.Type]++
		if m.Type == log.MessageTypeResponse || m.Type == log.MessageTypeNotification {
			s.ResponseCodes[m.Code]++
		}
		if srv != nil {
			switch m.Type {
			case log.MessageTypeRequest:
				srv.Requests++
			case log.MessageTypeResponse:
				srv.Responses++
			case log.MessageTypeNotification:
				srv.Notifications++
			case log.MessageTypeReset:
				srv.Resets++
			}
		}
	case event.StateChange != nil:
		sc := event.StateChange
		if srv != nil && sc.Entity == log.StateEntityObservation && sc.NewState == "ACTIVE" {
			srv.Observations++
		}
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== LwM2M Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerRouter, log.LayerObserve, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByType) > 0 {
		fmt.Fprintln(w, "Messages by Type:")
		for _, mt := range []log.MessageType{log.MessageTypeRequest, log.MessageTypeResponse, log.MessageTypeNotification, log.MessageTypeReset} {
			if count := stats.MessagesByType[mt]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", mt.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.ResponseCodes) > 0 {
		fmt.Fprintln(w, "Response Codes:")
		codeList := make([]uint8, 0, len(stats.ResponseCodes))
		for c := range stats.ResponseCodes {
			codeList = append(codeList, c)
		}
		slices.Sort(codeList)
		for _, c := range codeList {
			fmt.Fprintf(w, "  %-14s %d\n", status.ClassString(codes.Code(c))+":", stats.ResponseCodes[c])
		}
		fmt.Fprintln(w)
	}

	if len(stats.Servers) > 0 {
		fmt.Fprintf(w, "Servers: %d\n", len(stats.Servers))
		ids := make([]uint16, 0, len(stats.Servers))
		for id := range stats.Servers {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			s := stats.Servers[id]
			fmt.Fprintf(w, "  [%d] %d requests, %d responses, %d notifications, %d resets, %d observations\n",
				id, s.Requests, s.Responses, s.Notifications, s.Resets, s.Observations)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), s.stats.Events, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
