// Package transport connects a chat room to the gossip network.
//
// The event loop consumes the Topic contract defined here; the libp2p
// implementation in node.go is the only place the rest of the program
// touches the network.
package transport

import "context"

// EventKind discriminates transport events.
type EventKind int

const (
	// NeighborUp reports a peer joining our gossip view.
	NeighborUp EventKind = iota
	// NeighborDown reports a peer leaving our gossip view.
	NeighborDown
	// Received carries raw message bytes broadcast by a peer.
	Received
	// Lagged reports that the subscription fell behind and messages
	// were dropped.
	Lagged
)

// Event is one notification from the gossip subscription.
type Event struct {
	Kind EventKind
	Peer string
	Data []byte
}

// Topic is a joined gossip topic. Events are delivered in the order the
// subscription produced them; the channel closes when the subscription
// ends.
type Topic interface {
	// Broadcast publishes bytes to every subscribed peer. It fails
	// when the local node has no path to any peer.
	Broadcast(ctx context.Context, data []byte) error

	// Events yields neighbor and message events.
	Events() <-chan Event

	Close() error
}
