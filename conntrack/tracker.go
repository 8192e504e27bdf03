// Package conntrack tracks the best-known connection quality per peer.
//
// The transport's path poller writes to it while the event loop reads
// snapshots on every tick, so the tracker carries its own lock instead of
// leaning on the loop's single-threaded ownership.
package conntrack

import "sync"

// ConnType classifies how traffic reaches a peer. Ordered by preference:
// a path can upgrade from relayed to direct as hole-punching completes but
// must never appear to downgrade while direct connectivity is live.
type ConnType int

const (
	Unknown ConnType = iota
	Relay
	Direct
)

func (c ConnType) String() string {
	switch c {
	case Direct:
		return "direct"
	case Relay:
		return "relay"
	default:
		return "unknown"
	}
}

// Tracker is a concurrency-safe store of peer id to connection type.
type Tracker struct {
	mu    sync.RWMutex
	conns map[string]ConnType
}

func New() *Tracker {
	return &Tracker{
		conns: make(map[string]ConnType),
	}
}

// Update records an observed connection type for a peer. Upgrades only:
// writing the same or a worse type is a no-op.
func (t *Tracker) Update(peerID string, observed ConnType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if observed > t.conns[peerID] {
		t.conns[peerID] = observed
	}
}

// Remove drops a departed peer.
func (t *Tracker) Remove(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, peerID)
}

// Get returns the best-known type for a peer, Unknown if never seen.
func (t *Tracker) Get(peerID string) ConnType {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.conns[peerID]
}

// Snapshot returns a consistent copy for the render path. Writers are
// blocked only for the duration of the copy.
func (t *Tracker) Snapshot() map[string]ConnType {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ConnType, len(t.conns))
	for id, c := range t.conns {
		out[id] = c
	}
	return out
}
