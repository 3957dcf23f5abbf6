package rpc

import (
	"sync/atomic"

	"github.com/nimbusd/nimbusd/pkg/debug"
	"github.com/nimbusd/nimbusd/pkg/nlog"
)

// DefaultMaxQueuedInbound is the default bound on StreamState.inbound:
// the engine only ever needs the head-of-line packet (spec.md §3,
// "typically 0-1 entries"); SPEC_FULL.md §12 makes the bound explicit
// instead of leaving it an unenforced "queue for generality".
// NewStreamState always uses this value; the stream.max_queued_inbound
// setting in internal/config is not read by the engine.
const DefaultMaxQueuedInbound = 1

// StreamState is one live stream: the central entity of the engine
// (spec.md §3). Every field is only ever mutated while the owning
// Client's lock is held; the type carries no mutex of its own.
type StreamState struct {
	Procedure uint64
	Serial    uint64

	program    Program
	dataObject DataObject
	client     Client

	filterID string // "" is the "none" sentinel

	inbound       []*Message
	maxQueuedSize int

	txReady bool
	recvEOF bool
	closed  bool

	refs int32

	next *StreamState // linkage within the owning ClientStreamSet

	// term records why the stream ended, for the audit trail
	// (SPEC_FULL.md §12); empty while the stream is still live.
	term string

	// totalBytesIn/totalBytesOut accumulate every byte actually handed
	// to the data sink / pulled from the data source over the stream's
	// whole life, for the audit trail (SPEC_FULL.md §12) — distinct from
	// metrics.Recorder's BytesIn/BytesOut, which feed daemon-wide
	// throughput counters, not a per-stream total.
	totalBytesIn  uint64
	totalBytesOut uint64
}

// NewStreamState creates a fresh, detached stream (spec.md §4.1
// "create"): refs=1, no filter installed, empty inbound queue, not yet
// permitted to transmit, not at EOF, not closed. It is not yet linked
// into any ClientStreamSet — call ClientStreamSet.Add for that.
func NewStreamState(procedure, serial uint64, program Program, dataObject DataObject, client Client) *StreamState {
	return &StreamState{
		Procedure:     procedure,
		Serial:        serial,
		program:       program,
		dataObject:    dataObject,
		client:        client,
		refs:          1,
		maxQueuedSize: DefaultMaxQueuedInbound,
	}
}

func (s *StreamState) Key() StreamKey {
	return StreamKey{Procedure: s.Procedure, Serial: s.Serial}
}

// Retain increments the reference count (spec.md invariant I5).
func (s *StreamState) Retain() {
	atomic.AddInt32(&s.refs, 1)
}

// Release decrements the reference count and, if it reaches zero,
// silently discards any queued inbound packet and drops the stream's
// references to its program and data object. Callers that must instead
// return peer credit for a discarded packet use ClientStreamSet.Free,
// which wraps derefToZero with that client-aware behavior (spec.md
// §4.1, §4.2 "free").
func (s *StreamState) Release() (destroyed bool) {
	if !s.derefToZero() {
		return false
	}
	s.inbound = nil
	s.program = nil
	s.dataObject = nil
	return true
}

// derefToZero decrements the reference count and reports whether it
// reached zero. It performs no cleanup itself — callers decide how to
// drain whatever the stream was still holding (spec.md invariant I5).
func (s *StreamState) derefToZero() bool {
	left := atomic.AddInt32(&s.refs, -1)
	debug.Assert(left >= 0, "stream refcount went negative", s.Key())
	if left > 0 {
		return false
	}
	debug.Assert(s.closed, "stream refs reached zero while still open", s.Key())
	return true
}

func (s *StreamState) Refs() int32 { return atomic.LoadInt32(&s.refs) }

// ArmedEvents computes the event interest the router must communicate
// to the data object's event layer (spec.md §4.1): WRITABLE whenever a
// packet is queued waiting to be drained into the sink, and READABLE
// whenever the stream is both permitted to send (txReady) and has not
// yet observed source EOF.
func (s *StreamState) ArmedEvents() EventSet {
	var ev EventSet
	if len(s.inbound) > 0 {
		ev |= Writable
	}
	if s.txReady && !s.recvEOF {
		ev |= Readable
	}
	return ev
}

func (s *StreamState) queueFull() bool {
	return len(s.inbound) >= s.maxQueuedSize
}

func (s *StreamState) enqueueInbound(msg *Message) {
	s.inbound = append(s.inbound, msg)
}

func (s *StreamState) headInbound() *Message {
	if len(s.inbound) == 0 {
		return nil
	}
	return s.inbound[0]
}

func (s *StreamState) dequeueInbound() {
	if len(s.inbound) == 0 {
		return
	}
	s.inbound = s.inbound[1:]
}

func (s *StreamState) logTerminal(reason string) {
	s.term = reason
	nlog.Infof("stream %d/%d: %s", s.Procedure, s.Serial, reason)
}
