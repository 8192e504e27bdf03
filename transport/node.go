package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/peerchat/peerchat/conntrack"
)

const (
	topicPrefix  = "/peerchat/room/"
	dialTimeout  = 10 * time.Second
	pollInterval = time.Second
)

// Node wraps a libp2p host with GossipSub. One node joins one room.
type Node struct {
	Host   host.Host
	pubsub *pubsub.PubSub
	log    zerolog.Logger
}

// NewNode creates a libp2p host listening on ephemeral TCP and QUIC ports,
// with relay and hole-punching enabled so peers behind NATs can still
// reach each other.
func NewNode(ctx context.Context, log zerolog.Logger) (*Node, error) {
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(
			"/ip4/0.0.0.0/tcp/0",
			"/ip4/0.0.0.0/udp/0/quic-v1",
		),
		libp2p.NATPortMap(),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	return &Node{Host: h, pubsub: ps, log: log}, nil
}

// ID returns the node's peer id in string form.
func (n *Node) ID() string {
	return n.Host.ID().String()
}

// Addrs returns the node's full dialable addresses for a ticket's
// bootstrap set.
func (n *Node) Addrs() []string {
	addrs := n.Host.Addrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, n.Host.ID()))
	}
	return out
}

// Close shuts the host down.
func (n *Node) Close() error {
	return n.Host.Close()
}

// Join subscribes to the room topic, dialing the bootstrap peers first so
// gossip has somewhere to start from. Bootstrap failures are logged, not
// fatal: the room creator has an empty bootstrap set and simply waits.
func (n *Node) Join(ctx context.Context, topicID [32]byte, bootstrap []string) (Topic, error) {
	n.connectBootstrap(ctx, bootstrap)

	t, err := n.pubsub.Join(fmt.Sprintf("%s%x", topicPrefix, topicID))
	if err != nil {
		return nil, fmt.Errorf("failed to join topic: %w", err)
	}

	sub, err := t.Subscribe()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	handler, err := t.EventHandler()
	if err != nil {
		sub.Cancel()
		t.Close()
		return nil, fmt.Errorf("failed to get peer event handler: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	rt := &roomTopic{
		self:    n.Host.ID(),
		topic:   t,
		sub:     sub,
		handler: handler,
		events:  make(chan Event, 64),
		ctx:     ctx,
		cancel:  cancel,
		log:     n.log,
	}

	rt.wg.Add(2)
	go rt.readLoop()
	go rt.peerLoop()
	go func() {
		rt.wg.Wait()
		close(rt.events)
	}()

	return rt, nil
}

func (n *Node) connectBootstrap(ctx context.Context, bootstrap []string) {
	var wg sync.WaitGroup
	for _, addr := range bootstrap {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			n.log.Warn().Str("addr", addr).Err(err).Msg("skipping invalid bootstrap address")
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			n.log.Warn().Str("addr", addr).Err(err).Msg("skipping bootstrap address without peer id")
			continue
		}

		wg.Add(1)
		go func(info peer.AddrInfo) {
			defer wg.Done()
			dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			if err := n.Host.Connect(dialCtx, info); err != nil {
				n.log.Warn().Stringer("peer", info.ID).Err(err).Msg("bootstrap dial failed")
			}
		}(*info)
	}
	wg.Wait()
}

// WatchPaths polls the host's connections and feeds the tracker with each
// peer's observed path quality. A relayed connection shows a p2p-circuit
// hop in its remote address; anything else is a direct path.
func (n *Node) WatchPaths(ctx context.Context, tracker *conntrack.Tracker) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range n.Host.Network().Peers() {
				tracker.Update(p.String(), n.classify(p))
			}
		}
	}
}

func (n *Node) classify(p peer.ID) conntrack.ConnType {
	conns := n.Host.Network().ConnsToPeer(p)
	if len(conns) == 0 {
		return conntrack.Unknown
	}

	for _, c := range conns {
		if !isRelayAddr(c.RemoteMultiaddr()) {
			return conntrack.Direct
		}
	}
	return conntrack.Relay
}

func isRelayAddr(a multiaddr.Multiaddr) bool {
	_, err := a.ValueForProtocol(multiaddr.P_CIRCUIT)
	return err == nil
}

type roomTopic struct {
	self    peer.ID
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	handler *pubsub.TopicEventHandler
	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     zerolog.Logger

	closeOnce sync.Once
}

func (r *roomTopic) Broadcast(ctx context.Context, data []byte) error {
	return r.topic.Publish(ctx, data)
}

func (r *roomTopic) Events() <-chan Event {
	return r.events
}

func (r *roomTopic) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.sub.Cancel()
		r.handler.Cancel()
		r.topic.Close()
	})
	return nil
}

func (r *roomTopic) readLoop() {
	defer r.wg.Done()

	for {
		msg, err := r.sub.Next(r.ctx)
		if err != nil {
			if r.ctx.Err() == nil {
				r.log.Error().Err(err).Msg("subscription closed")
			}
			return
		}

		if msg.ReceivedFrom == r.self {
			continue
		}

		r.emit(Event{Kind: Received, Peer: msg.ReceivedFrom.String(), Data: msg.Data})
	}
}

func (r *roomTopic) peerLoop() {
	defer r.wg.Done()

	for {
		evt, err := r.handler.NextPeerEvent(r.ctx)
		if err != nil {
			return
		}

		switch evt.Type {
		case pubsub.PeerJoin:
			r.emit(Event{Kind: NeighborUp, Peer: evt.Peer.String()})
		case pubsub.PeerLeave:
			r.emit(Event{Kind: NeighborDown, Peer: evt.Peer.String()})
		}
	}
}

// emit delivers an event without blocking forever on a stalled consumer:
// if the buffer is full the oldest pending event is the consumer's
// problem, so we report a lag instead of wedging the read loops.
func (r *roomTopic) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	default:
		select {
		case r.events <- Event{Kind: Lagged}:
		case <-r.ctx.Done():
		default:
		}
	}
}
