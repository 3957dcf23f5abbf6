package rpc

import (
	"fmt"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/nimbusd/nimbusd/internal/rpc/audit"
	"github.com/nimbusd/nimbusd/internal/rpc/metrics"
	"github.com/nimbusd/nimbusd/pkg/debug"
)

// filterFactory and eventFactory let StreamRouter supply the actual
// filter-matching and event-dispatch logic while ClientStreamSet stays
// the plain ordered collection spec.md §4.2 describes: registration,
// lookup by data-object identity, and bulk teardown.
type (
	filterFactory func(*StreamState) FilterFunc
	eventFactory  func(*StreamState) EventCallback
)

// ClientStreamSet is the per-client collection of live streams
// (spec.md §2, §4.2). Every exported method must be called with the
// owning Client already locked.
type ClientStreamSet struct {
	client Client
	mkFilt filterFactory
	mkEvt  eventFactory

	head *StreamState // most-recently-added stream, per spec.md "links at the head"
	n    int

	// cf is a probabilistic fast-reject layer in front of the linear
	// scan-by-data-object-identity lookup spec.md §9 Design Notes
	// calls out: n is tiny so the O(n) walk is correct on its own, but
	// a negative cuckoofilter lookup lets LookupByDataObject skip that
	// walk entirely in the common "event fired for a stream that's
	// already gone" race (spec.md §4.3 "rare race against removal").
	// A positive filter hit still requires the walk, since the filter
	// can false-positive.
	cf *cuckoo.Filter

	rec metrics.Recorder
	aud audit.Recorder
}

// NewClientStreamSet constructs the set for one client. rec and aud may
// be nil, in which case no-op implementations are used.
func NewClientStreamSet(client Client, mkFilt filterFactory, mkEvt eventFactory, rec metrics.Recorder, aud audit.Recorder) *ClientStreamSet {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	if aud == nil {
		aud = audit.NoOp{}
	}
	return &ClientStreamSet{
		client: client,
		mkFilt: mkFilt,
		mkEvt:  mkEvt,
		cf:     cuckoo.NewFilter(256),
		rec:    rec,
		aud:    aud,
	}
}

func identity(do DataObject) []byte {
	return []byte(fmt.Sprintf("%p", do))
}

// Add installs the stream's event callback and inbound filter, sets its
// initial transmit permission, links it into the set, and arms its
// events (spec.md §4.2 "add").
func (set *ClientStreamSet) Add(stream *StreamState, transmitInitially bool) error {
	stream.dataObject.EventAddCallback(0, set.mkEvt(stream), stream)

	fid, err := set.client.AddFilter(set.mkFilt(stream))
	if err != nil {
		stream.dataObject.EventRemoveCallback()
		return ErrFrameSend.Wrap(err)
	}
	stream.filterID = fid
	stream.txReady = transmitInitially

	stream.next = set.head
	set.head = stream
	set.n++
	set.cf.InsertUnique(identity(stream.dataObject))
	set.rec.StreamOpened()

	stream.dataObject.EventUpdateCallback(stream.ArmedEvents())
	return nil
}

// LookupByDataObject finds the stream backed by do, if any is still
// registered (spec.md §4.3 event callback, "locate the stream by
// data-object identity").
func (set *ClientStreamSet) LookupByDataObject(do DataObject) (*StreamState, bool) {
	if !set.cf.Lookup(identity(do)) {
		return nil, false
	}
	for s := set.head; s != nil; s = s.next {
		if s.dataObject == do {
			return s, true
		}
	}
	return nil, false
}

// Remove detaches the filter and event callback, aborts the data object
// if it isn't already closed, unlinks the stream, and releases the
// set's reference to it (spec.md §4.2 "remove").
func (set *ClientStreamSet) Remove(stream *StreamState) {
	set.detach(stream)
	if !stream.closed {
		stream.dataObject.Abort()
		stream.closed = true
	}
	set.unlink(stream)
	set.Free(set.client, stream)
}

func (set *ClientStreamSet) detach(stream *StreamState) {
	if stream.filterID != "" {
		set.client.RemoveFilter(stream.filterID)
		stream.filterID = ""
	}
	stream.dataObject.EventRemoveCallback()
}

func (set *ClientStreamSet) unlink(stream *StreamState) {
	if set.head == stream {
		set.head = stream.next
		stream.next = nil
		set.n--
		set.cf.Delete(identity(stream.dataObject))
		set.rec.StreamClosed()
		return
	}
	for p := set.head; p != nil; p = p.next {
		if p.next == stream {
			p.next = stream.next
			stream.next = nil
			set.n--
			set.cf.Delete(identity(stream.dataObject))
			set.rec.StreamClosed()
			return
		}
	}
}

// Free decrements the stream's reference count; on reaching zero it
// returns credit for any still-queued inbound packet (by synthesizing a
// zero-length CALL_REPLY) when client is non-nil, or silently discards
// it when client is nil — the RemoveAll path, where the client is
// already gone (spec.md §4.2 "free").
func (set *ClientStreamSet) Free(client Client, stream *StreamState) {
	if !stream.derefToZero() {
		return
	}
	for _, msg := range stream.inbound {
		if client == nil {
			continue
		}
		if err := sendCreditReply(client, msg); err != nil {
			nlogCreditFailure(stream, err)
			client.ImmediateClose()
		}
	}
	stream.inbound = nil
	set.aud.Record(audit.Entry{
		Client:    set.client.Identity(),
		Procedure: stream.Procedure,
		Serial:    stream.Serial,
		BytesIn:   stream.totalBytesIn,
		BytesOut:  stream.totalBytesOut,
		Reason:    stream.term,
	})
	stream.program = nil
	stream.dataObject = nil
}

// RemoveAll tears every stream down for client shutdown: no credit is
// returned and the client's filter chain is not individually unwound,
// since the whole client is going away (spec.md §4.2 "removeAll").
func (set *ClientStreamSet) RemoveAll() {
	for s := set.head; s != nil; {
		next := s.next
		debug.Assert(s != next, "self-referential stream list")
		if !s.closed {
			s.dataObject.EventRemoveCallback()
			s.dataObject.Abort()
			s.closed = true
		}
		set.rec.StreamClosed()
		set.Free(nil, s)
		s = next
	}
	set.head = nil
	set.n = 0
	set.cf.Reset()
}

func (set *ClientStreamSet) Len() int { return set.n }

// sendCreditReply synthesizes the zero-length CALL_REPLY that returns
// the peer's credit for a fully-absorbed inbound CONTINUE packet
// (spec.md §4.4 handleWrite, §4.2 free). It is not part of the Program
// capability contract because it is not program-specific: it merely
// reflects the inbound header back with Type switched to CallReply.
func sendCreditReply(client Client, inbound *Message) error {
	reply := &Message{Header: inbound.Header}
	reply.Header.Type = CallReply
	reply.Header.Status = StatusOK
	return client.SendMessage(reply)
}

func nlogCreditFailure(stream *StreamState, err error) {
	stream.logTerminal(fmt.Sprintf("credit return failed, closing client: %v", err))
}
