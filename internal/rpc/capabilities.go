package rpc

import "errors"

// ErrWouldBlock is returned by DataObject.Send/Recv when the operation
// cannot make progress right now; it is not a failure, just a signal to
// wait for the next READABLE/WRITABLE event.
var ErrWouldBlock = errors.New("rpc: would block")

// EventSet is a bitmask of the interests a DataObject's event layer can
// arm or report (spec.md §4.1 armedEvents, §4.3 event callback).
type EventSet uint8

const (
	Readable EventSet = 1 << iota
	Writable
	Hangup
	ErrorEvent
)

func (s EventSet) Has(e EventSet) bool { return s&e != 0 }

// EventCallback is invoked by a DataObject's event layer when any of the
// interests most recently armed via EventUpdateCallback fire. opaque is
// whatever EventAddCallback was given (the owning StreamState, looked up
// by the router rather than trusted directly — see router.go).
type EventCallback func(fired EventSet, opaque any)

// DataObject is the abstract hypervisor-side byte source/sink backing a
// stream (spec.md §6). All operations must be non-blocking.
type DataObject interface {
	// Send pushes b into the sink. Returns the number of bytes
	// accepted (which may be less than len(b)) and one of: nil (all or
	// partial progress), ErrWouldBlock (no progress possible right
	// now), or a fatal error.
	Send(b []byte) (n int, err error)
	// Recv pulls up to len(b) bytes from the source into b. Returns
	// (n, nil) with n == 0 for EOF, (0, ErrWouldBlock) if no bytes are
	// available yet, or (0, err) on fatal error.
	Recv(b []byte) (n int, err error)
	// Finish tells the data object the peer will send no more data and
	// asks it to settle into a terminal, readable-back-out state.
	Finish() error
	// Abort tears the data object down immediately; no error is
	// returned because by the time Abort is called the stream is
	// already being discarded.
	Abort()

	EventAddCallback(interest EventSet, cb EventCallback, opaque any)
	EventUpdateCallback(interest EventSet)
	EventRemoveCallback()
}

// FilterFunc is the inbound-message filter a Client installs on behalf
// of a StreamRouter (spec.md §4.3).
type FilterFunc func(msg *Message) FilterOutcome

// Client is the per-connection collaborator: it owns the framed
// transport, the inbound filter chain, and the single mutex that
// serializes all mutation of its ClientStreamSet (spec.md §5, §6).
//
// Every Client method below, and every ClientStreamSet/StreamRouter
// method that accepts a Client, must be called with that Client's lock
// already held by the caller. The engine acquires it itself in one
// place only: the completion hook handleRead passes to
// Program.SendStreamData, which the transport runs after the frame has
// been sent and which locks the client before restoring txReady.
type Client interface {
	// Identity returns the stable identifier this client is keyed under
	// in the audit trail and status endpoint (SPEC_FULL.md §12), e.g. an
	// authenticated auth.Identity.Subject or a connection-level name.
	Identity() string

	AddFilter(cb FilterFunc) (filterID string, err error)
	RemoveFilter(filterID string)

	SendMessage(msg *Message) error

	// ImmediateClose tears the connection down right away; used when a
	// frame the engine must deliver (a synthesized reply, a stream
	// error) cannot be queued at all.
	ImmediateClose()
	// Close requests an orderly shutdown.
	Close()

	Lock()
	Unlock()
}

// Program is the per-procedure-table collaborator that originated a
// stream's underlying call (spec.md §6).
type Program interface {
	// Match reports whether msg belongs to this program.
	Match(msg *Message) bool

	SendReplyError(client Client, msg *Message, err error, hdr Header) error
	SendStreamError(client Client, msg *Message, err error, procedure, serial uint64) error
	// SendStreamData encodes and queues a STREAM frame. fin == false
	// sends STATUS_CONTINUE with payload (payload may be empty — EOF
	// signal); fin == true sends STATUS_OK with an empty payload (the
	// finish confirmation). onSent, if non-nil, is invoked once the
	// transport has fully transmitted the frame (spec.md §4.4 "attach a
	// completion hook"); callers that took a stream reference for the
	// frame's lifetime release it there.
	SendStreamData(client Client, msg *Message, procedure, serial uint64, payload []byte, fin bool, onSent func()) error
}
