package checkout

import "sync"

// flightGuard serializes the payment-creation transition per conversation.
// The step guard alone is read-then-write and a double-tap on "confirm and
// pay" could otherwise create two provider sessions.
type flightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newFlightGuard() *flightGuard {
	return &flightGuard{active: make(map[string]struct{})}
}

// begin reports whether the caller acquired the flight for the given
// conversation. A false return means another handler invocation is already
// inside the guarded section.
func (g *flightGuard) begin(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[conversationID]; busy {
		return false
	}
	g.active[conversationID] = struct{}{}
	return true
}

func (g *flightGuard) end(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, conversationID)
}
