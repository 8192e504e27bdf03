package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the transfer table. All methods are called from the event
// loop's goroutine; the only concurrent actors are the download tasks it
// spawns, and those communicate exclusively through the event channel.
type Manager struct {
	log        zerolog.Logger
	downloader Downloader
	events     chan Event

	records map[string]*Record
	order   []string

	selected int

	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(downloader Downloader, log zerolog.Logger) *Manager {
	return &Manager{
		log:        log,
		downloader: downloader,
		events:     make(chan Event, 64),
		records:    make(map[string]*Record),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Events is the channel download tasks report through. The event loop
// drains it and feeds each event back via Apply.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// AddOffer records a file offer received from a peer. The transfer stays
// Pending until the user starts the download.
func (m *Manager) AddOffer(offer Offer) *Record {
	return m.add(offer, Pending)
}

// AddShared records a file we offered to the room. Sharing is terminal:
// there is nothing to download on the sender's side.
func (m *Manager) AddShared(offer Offer) *Record {
	return m.add(offer, Sharing)
}

func (m *Manager) add(offer Offer, state State) *Record {
	rec := &Record{
		ID:    uuid.NewString(),
		Offer: offer,
		State: state,
	}
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec
}

// StartDownload moves a Pending transfer to Downloading and launches its
// background task. Calling it on a transfer that is already downloading,
// terminal, or locally shared is a no-op.
func (m *Manager) StartDownload(ctx context.Context, id string) {
	rec, ok := m.records[id]
	if !ok {
		m.log.Warn().Str("transfer", id).Msg("download requested for unknown transfer")
		return
	}
	if rec.State != Pending {
		m.log.Debug().Str("transfer", id).Stringer("state", rec.State).Msg("download request ignored")
		return
	}

	rec.State = Downloading

	taskCtx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.downloader.Download(taskCtx, id, rec.Offer, m.events)
	}()

	m.log.Info().
		Str("transfer", id).
		Str("file", rec.Offer.Filename).
		Str("hash", rec.Offer.Hash.Short()).
		Msg("download started")
}

// Apply advances a record's state machine with one event from a download
// task. Events for terminal or unknown transfers are logged and discarded.
func (m *Manager) Apply(ev Event) {
	rec, ok := m.records[ev.ID]
	if !ok {
		m.log.Warn().Str("transfer", ev.ID).Msg("event for unknown transfer dropped")
		return
	}
	if rec.State != Downloading {
		m.log.Debug().Str("transfer", ev.ID).Stringer("state", rec.State).Msg("event for settled transfer dropped")
		return
	}

	switch ev.Kind {
	case EventProgress:
		if ev.Bytes > rec.Bytes {
			rec.Bytes = ev.Bytes
		}

	case EventComplete:
		m.release(ev.ID)
		if ev.Hash != rec.Offer.Hash {
			rec.State = Failed
			rec.Reason = ReasonHashMismatch
			m.log.Error().
				Str("transfer", ev.ID).
				Str("want", rec.Offer.Hash.Short()).
				Str("got", ev.Hash.Short()).
				Msg("downloaded content does not match advertised hash")
			return
		}
		rec.State = Complete
		rec.Path = ev.Path
		if ev.Bytes > rec.Bytes {
			rec.Bytes = ev.Bytes
		}
		m.log.Info().Str("transfer", ev.ID).Str("path", ev.Path).Msg("download complete")

	case EventFailed:
		m.release(ev.ID)
		rec.State = Failed
		rec.Reason = ev.Reason
		m.log.Warn().Str("transfer", ev.ID).Str("reason", ev.Reason).Msg("download failed")
	}
}

func (m *Manager) release(id string) {
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
}

// CancelAll signals every outstanding download task to stop and waits for
// them, bounded by timeout. It reports whether all tasks acknowledged in
// time; stragglers are abandoned and logged by the caller.
func (m *Manager) CancelAll(timeout time.Duration) bool {
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		m.log.Warn().Dur("timeout", timeout).Msg("download tasks did not stop in time")
		return false
	}
}

// Records returns the transfer table in insertion order for rendering.
func (m *Manager) Records() []*Record {
	out := make([]*Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

// Get returns the record with the given id, nil if unknown.
func (m *Manager) Get(id string) *Record {
	return m.records[id]
}

// HasEntries reports whether the transfer table has anything to show.
func (m *Manager) HasEntries() bool {
	return len(m.order) > 0
}

// Selected returns the currently selected record, nil when the table is
// empty.
func (m *Manager) Selected() *Record {
	if len(m.order) == 0 {
		return nil
	}
	return m.records[m.order[m.selected]]
}

// SelectedIndex returns the index of the selection for rendering.
func (m *Manager) SelectedIndex() int {
	return m.selected
}

// SelectNext moves the selection down, wrapping around.
func (m *Manager) SelectNext() {
	if len(m.order) > 0 {
		m.selected = (m.selected + 1) % len(m.order)
	}
}

// SelectPrev moves the selection up, wrapping around.
func (m *Manager) SelectPrev() {
	if len(m.order) == 0 {
		return
	}
	if m.selected == 0 {
		m.selected = len(m.order) - 1
		return
	}
	m.selected--
}
