package chat

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/peerchat/peerchat/conntrack"
	"github.com/peerchat/peerchat/protocol"
	"github.com/peerchat/peerchat/transfer"
	"github.com/peerchat/peerchat/transport"
)

const (
	defaultTick     = 50 * time.Millisecond
	shutdownTimeout = 3 * time.Second
)

// Importer hashes and registers a local file for sharing.
type Importer interface {
	Import(path string) (protocol.Hash, uint64, error)
}

// Coordinator runs the session loop. It is the single owner of the App:
// every keystroke, gossip event and transfer event mutates state here,
// one event per loop iteration, and the screen is redrawn on a fixed
// tick.
type Coordinator struct {
	app      *App
	topic    transport.Topic
	keys     <-chan KeyEvent
	tracker  *conntrack.Tracker
	importer Importer
	render   func(*App)
	tick     time.Duration
	log      zerolog.Logger
}

type Config struct {
	App      *App
	Topic    transport.Topic
	Keys     <-chan KeyEvent
	Tracker  *conntrack.Tracker
	Importer Importer
	Render   func(*App)
	Tick     time.Duration
	Log      zerolog.Logger
}

func NewCoordinator(cfg Config) *Coordinator {
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	render := cfg.Render
	if render == nil {
		render = func(*App) {}
	}
	return &Coordinator{
		app:      cfg.App,
		topic:    cfg.Topic,
		keys:     cfg.Keys,
		tracker:  cfg.Tracker,
		importer: cfg.Importer,
		render:   render,
		tick:     tick,
		log:      cfg.Log,
	}
}

// Run loops until the user quits or ctx is cancelled, then stops any
// in-flight downloads with a bounded wait.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	defer c.shutdown()

	c.render(c.app)

	for !c.app.Quit {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case key, ok := <-c.keys:
			if !ok {
				c.app.Quit = true
				continue
			}
			c.handleKey(ctx, key)

		case ev, ok := <-c.topic.Events():
			if !ok {
				c.app.System("connection to the room was lost")
				c.app.Quit = true
				continue
			}
			c.handleTransport(ctx, ev)

		case ev := <-c.app.Transfers.Events():
			c.app.Transfers.Apply(ev)

		case <-ticker.C:
			c.syncPeers()
			c.render(c.app)
		}
	}

	return nil
}

func (c *Coordinator) shutdown() {
	if !c.app.Transfers.CancelAll(shutdownTimeout) {
		c.log.Warn().Msg("downloads did not stop before the shutdown deadline")
	}
}

func (c *Coordinator) handleKey(ctx context.Context, key KeyEvent) {
	if c.app.Mode == ModeTransfers {
		c.handleTransferKey(ctx, key)
		return
	}

	switch key.Key {
	case KeyRune:
		c.app.InsertRune(key.Rune)
	case KeyBackspace:
		c.app.Backspace()
	case KeyLeft:
		c.app.CursorLeft()
	case KeyRight:
		c.app.CursorRight()
	case KeyEnter:
		c.submit(ctx)
	case KeyTab, KeyUp, KeyDown:
		if c.app.Transfers.HasEntries() {
			c.app.Mode = ModeTransfers
		}
	case KeyEsc:
		c.app.Quit = true
	}
}

func (c *Coordinator) handleTransferKey(ctx context.Context, key KeyEvent) {
	switch key.Key {
	case KeyUp:
		c.app.Transfers.SelectPrev()
	case KeyDown:
		c.app.Transfers.SelectNext()
	case KeyEnter:
		if rec := c.app.Transfers.Selected(); rec != nil {
			c.app.Transfers.StartDownload(ctx, rec.ID)
		}
	case KeyEsc, KeyTab:
		c.app.Mode = ModeChat
	}
}

func (c *Coordinator) submit(ctx context.Context) {
	text := strings.TrimSpace(c.app.TakeInput())
	if text == "" {
		return
	}
	if len(text) > int(protocol.MaxStringLen) {
		c.app.System("message too long, not sent")
		return
	}

	if path, ok := strings.CutPrefix(text, "/share "); ok {
		c.share(ctx, strings.TrimSpace(path))
		return
	}

	msg := protocol.NewChat(c.app.Nickname, text)
	if err := c.topic.Broadcast(ctx, protocol.Encode(msg)); err != nil {
		c.log.Error().Err(err).Msg("failed to broadcast chat message")
		c.app.System("failed to send message")
		return
	}
	c.app.Chat(c.app.Nickname, text)
}

func (c *Coordinator) share(ctx context.Context, path string) {
	if path == "" {
		c.app.System("usage: /share <path>")
		return
	}

	hash, size, err := c.importer.Import(path)
	if err != nil {
		c.log.Error().Str("path", path).Err(err).Msg("failed to import file")
		c.app.System("could not share " + path + ": " + err.Error())
		return
	}

	filename := filepath.Base(path)
	offer := transfer.Offer{
		SenderID:   c.app.PeerID,
		SenderName: c.app.Nickname,
		Filename:   filename,
		Size:       size,
		Hash:       hash,
	}
	c.app.Transfers.AddShared(offer)

	msg := protocol.NewFileOffer(c.app.Nickname, c.app.PeerID, filename, size, hash)
	if err := c.topic.Broadcast(ctx, protocol.Encode(msg)); err != nil {
		c.log.Error().Err(err).Msg("failed to broadcast file offer")
		c.app.System("failed to announce " + filename)
		return
	}
	c.app.System("sharing " + filename)
}

func (c *Coordinator) handleTransport(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.NeighborUp:
		c.peerUp(ctx, ev.Peer)
	case transport.NeighborDown:
		c.peerDown(ev.Peer)
	case transport.Received:
		c.received(ev.Peer, ev.Data)
	case transport.Lagged:
		c.log.Warn().Msg("event stream lagged")
		c.app.System("falling behind, some messages may have been dropped")
	}
}

// peerUp adds the neighbor to the roster and re-announces our nickname
// so the newcomer can label us.
func (c *Coordinator) peerUp(ctx context.Context, id string) {
	if _, ok := c.app.Peers[id]; !ok {
		c.app.Peers[id] = &Peer{}
	}
	c.app.System(c.app.PeerName(id) + " joined")

	msg := protocol.NewJoin(c.app.Nickname, c.app.PeerID)
	if err := c.topic.Broadcast(ctx, protocol.Encode(msg)); err != nil {
		c.log.Warn().Err(err).Msg("failed to announce ourselves")
	}
}

func (c *Coordinator) peerDown(id string) {
	name := c.app.PeerName(id)
	delete(c.app.Peers, id)
	c.tracker.Remove(id)
	c.app.System(name + " left")
}

// received decodes one gossip payload. Malformed input from a peer is
// never fatal; it is logged and surfaced as a system line.
func (c *Coordinator) received(from string, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.log.Warn().Str("peer", from).Err(err).Msg("dropping malformed message")
		c.app.System("dropped an unreadable message from " + shortID(from))
		return
	}

	switch msg.Type {
	case protocol.TypeJoin:
		p, ok := c.app.Peers[from]
		if !ok {
			p = &Peer{}
			c.app.Peers[from] = p
		}
		if p.Name == "" && msg.Nickname != "" {
			c.app.System(msg.Nickname + " is here")
		}
		p.Name = msg.Nickname

	case protocol.TypeChat:
		c.app.Chat(msg.Nickname, msg.Text)

	case protocol.TypeFileOffer:
		offer := transfer.Offer{
			SenderID:   from,
			SenderName: msg.Nickname,
			Filename:   msg.Filename,
			Size:       msg.Size,
			Hash:       msg.Hash,
		}
		c.app.Transfers.AddOffer(offer)
		c.app.System(msg.Nickname + " offered " + msg.Filename)
	}
}

// syncPeers folds the tracker's latest path observations into the
// roster before each redraw.
func (c *Coordinator) syncPeers() {
	for id, conn := range c.tracker.Snapshot() {
		if p, ok := c.app.Peers[id]; ok {
			p.Conn = conn
		}
	}
}
