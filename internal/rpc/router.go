package rpc

import (
	"fmt"

	"github.com/nimbusd/nimbusd/internal/rpc/audit"
	"github.com/nimbusd/nimbusd/internal/rpc/metrics"
	"github.com/nimbusd/nimbusd/pkg/debug"
	"github.com/nimbusd/nimbusd/pkg/nlog"
)

// StreamRouter wires one StreamState into its owning ClientStreamSet's
// filter chain and data-object event layer (spec.md §4.3). It is the
// only piece of the engine that ever calls back into StreamProtocol, so
// it is also where the "recompute armed events at the end of every
// handler" rule (spec.md §5 ordering guarantees) lives in one place.
//
// A router and the set it dispatches against are mutually referential
// (the set's filter/event factories must close over the router; the
// router's dispatch must look streams up in the set), so neither can be
// fully constructed before the other. NewClientRouting breaks that knot
// for callers: it builds the router first with its set left unbound,
// then builds the set from the router's own method values, then binds
// the two together.
type StreamRouter struct {
	set   *ClientStreamSet
	proto *StreamProtocol
}

// NewClientRouting builds one client's StreamRouter and ClientStreamSet
// together, already bound to each other. rec and aud may be nil.
func NewClientRouting(client Client, proto *StreamProtocol, rec metrics.Recorder, aud audit.Recorder) (*StreamRouter, *ClientStreamSet) {
	r := &StreamRouter{proto: proto}
	set := NewClientStreamSet(client, r.FilterFor, r.EventFor, rec, aud)
	r.set = set
	return r, set
}

// Register creates the stream's filter and event-callback closures and
// adds it to the set, arming events at transmitInitially (spec.md §4.2
// add, §4.3 "installs the inbound-message filter").
func (r *StreamRouter) Register(stream *StreamState, transmitInitially bool) error {
	return r.set.Add(stream, transmitInitially)
}

// FilterFor is the per-stream FilterFunc installed via Client.AddFilter
// (spec.md §4.3 "Inbound filter"). It must be called with the client
// already locked.
func (r *StreamRouter) FilterFor(stream *StreamState) FilterFunc {
	return func(msg *Message) FilterOutcome {
		if msg.Header.Type != Stream {
			return Declined
		}
		if !stream.program.Match(msg) {
			return Declined
		}
		if msg.Header.Key() != stream.Key() {
			return Declined
		}
		if stream.queueFull() {
			// Policy choice, not in spec.md: a filter that can't accept
			// the packet it just claimed must not silently drop it —
			// surfacing Fatal lets the client-level handler decide.
			return Fatal
		}
		stream.enqueueInbound(msg)
		stream.dataObject.EventUpdateCallback(stream.ArmedEvents())
		return Consumed
	}
}

// EventFor is the per-stream EventCallback installed via
// DataObject.EventAddCallback (spec.md §4.3 "Event callback"). opaque is
// always the *StreamState the callback was registered with; the router
// still re-locates it in the set so a race against removal is handled
// uniformly with the "missing" case.
func (r *StreamRouter) EventFor(stream *StreamState) EventCallback {
	return func(fired EventSet, opaque any) {
		found, ok := r.set.LookupByDataObject(stream.dataObject)
		if !ok || found != stream {
			// a freed stream has already dropped its data object, and
			// its callback was detached by Remove/RemoveAll.
			if stream.dataObject != nil {
				stream.dataObject.EventRemoveCallback()
			}
			return
		}
		r.dispatch(stream, fired)
	}
}

func (r *StreamRouter) dispatch(stream *StreamState, fired EventSet) {
	client := stream.client

	if fired.Has(Writable) {
		if err := r.proto.handleWrite(stream); err != nil {
			nlog.Warningf("stream %d/%d: write path failed: %v", stream.Procedure, stream.Serial, err)
			// Every exit from handleWrite/writeOne tears the stream down
			// one way or another (severed sink, lost credit, or a dead
			// transport); I4 requires closed to be set before refs can
			// reach zero in r.set.Remove below.
			stream.closed = true
			r.set.Remove(stream)
			if Fatal(err) {
				client.ImmediateClose()
			}
			return
		}
	}

	if (fired.Has(Readable) || fired.Has(Hangup)) && !stream.recvEOF && stream.txReady {
		if err := r.proto.handleRead(stream); err != nil {
			nlog.Warningf("stream %d/%d: read path failed: %v", stream.Procedure, stream.Serial, err)
			stream.closed = true
			r.set.Remove(stream)
			if Fatal(err) {
				client.ImmediateClose()
			}
			return
		}
	}

	if head := stream.headInbound(); head != nil {
		switch head.Header.Status {
		case StatusContinue:
			// left in place; handleWrite will consume it on the next
			// WRITABLE fire.
		case StatusOK:
			stream.dequeueInbound()
			if err := r.proto.handleFinish(stream, head); err != nil {
				nlog.Warningf("stream %d/%d: finish failed: %v", stream.Procedure, stream.Serial, err)
				if Fatal(err) {
					client.ImmediateClose()
				}
			}
			r.set.Remove(stream)
			return
		default:
			stream.dequeueInbound()
			if err := r.proto.handleAbort(stream, head); err != nil {
				nlog.Warningf("stream %d/%d: abort-reply failed: %v", stream.Procedure, stream.Serial, err)
				if Fatal(err) {
					client.ImmediateClose()
				}
			}
			r.set.Remove(stream)
			return
		}
	}

	if fired.Has(ErrorEvent) || fired.Has(Hangup) {
		if !stream.closed {
			stream.closed = true
			stream.dataObject.EventRemoveCallback()
			stream.dataObject.Abort()
			reason := "stream had I/O failure"
			if fired.Has(Hangup) {
				reason = "stream had unexpected termination"
			}
			stream.logTerminal(reason)
			hdr := Header{Procedure: stream.Procedure, Serial: stream.Serial, Type: Stream}
			if err := stream.program.SendStreamError(client, &Message{Header: hdr}, ErrHangup.New(reason), stream.Procedure, stream.Serial); err != nil {
				nlog.Warningf("stream %d/%d: error-frame send failed: %v", stream.Procedure, stream.Serial, err)
				client.ImmediateClose()
			}
		}
		r.set.Remove(stream)
		return
	}

	if !stream.closed {
		debug.Assert(stream.dataObject != nil, "live stream with nil data object", stream.Key())
		stream.dataObject.EventUpdateCallback(stream.ArmedEvents())
	}
}

func unexpectedStatusReason(status Status) string {
	return fmt.Sprintf("aborted with unexpected status %d", status)
}
