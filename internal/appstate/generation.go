package appstate

import "sync/atomic"

// Generation hands out tickets; only the most recent ticket is current.
// A result fetched under an older ticket must be discarded.
type Generation struct {
	n atomic.Uint64
}

// Ticket identifies one request
type Ticket uint64

// Begin starts a new request, superseding every earlier ticket
func (g *Generation) Begin() Ticket {
	return Ticket(g.n.Add(1))
}

// Current reports whether t is still the latest ticket
func (g *Generation) Current(t Ticket) bool {
	return uint64(t) == g.n.Load()
}
