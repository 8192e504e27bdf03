// Package transfer tracks file transfers as per-record state machines.
//
// Records are created from file offers, advanced only through Manager
// methods, and never deleted: terminal states stay visible for the rest of
// the session. Background downloads report back through a single event
// channel and never touch the records directly.
package transfer

import (
	"context"

	"github.com/peerchat/peerchat/protocol"
)

// State is the lifecycle phase of one transfer. Transitions only move
// forward: Pending -> Downloading -> Complete or Failed. Sharing marks a
// locally offered file and never transitions.
type State int

const (
	Pending State = iota
	Sharing
	Downloading
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sharing:
		return "sharing"
	case Downloading:
		return "downloading"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Complete || s == Failed || s == Sharing
}

// ReasonHashMismatch is the failure reason recorded when a download's
// verified hash does not match the advertised one.
const ReasonHashMismatch = "hash mismatch"

// Offer is the metadata a peer advertised (or we advertised) for one file.
type Offer struct {
	SenderID   string
	SenderName string
	Filename   string
	Size       uint64
	Hash       protocol.Hash
}

// Record is one row in the transfer table. Offer is embedded so display
// code can read the advertised metadata straight off the record.
type Record struct {
	ID string
	Offer
	State State

	// Bytes downloaded so far; monotonic, advisory for display. The hash
	// is the sole integrity check.
	Bytes uint64

	// Path of the completed download.
	Path string

	// Reason the transfer failed, retained for display.
	Reason string
}

// EventKind discriminates transfer events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventComplete
	EventFailed
)

// Event is sent by a background download task to report progress or its
// outcome. ID names the transfer record the event belongs to.
type Event struct {
	ID    string
	Kind  EventKind
	Bytes uint64

	// Hash of the downloaded content as verified by the task
	// (EventComplete only).
	Hash protocol.Hash

	// Path of the downloaded file (EventComplete only).
	Path string

	// Reason describes the failure (EventFailed only).
	Reason string
}

// Downloader starts background downloads. Implementations stream the blob
// identified by the offer's hash from the offering peer and report through
// events; they must honor ctx cancellation and always finish with an
// EventComplete or EventFailed.
type Downloader interface {
	Download(ctx context.Context, id string, offer Offer, events chan<- Event)
}
