package rpc

// FrameType distinguishes the two frame types the engine produces and
// recognizes (spec.md §6). Wire encoding of either is out of scope; only
// the kind discipline lives here.
type FrameType int

const (
	// CallReply is a reply to a non-stream call; the engine only ever
	// synthesizes a zero-length, status-OK CallReply to return peer
	// credit, or a status-error CallReply tied to an inbound message.
	CallReply FrameType = iota
	// Stream carries stream data or a stream termination handshake.
	Stream
)

func (t FrameType) String() string {
	if t == CallReply {
		return "CALL_REPLY"
	}
	return "STREAM"
}

// Status is the three-way discipline of a STREAM frame (spec.md §4.4),
// also used on CallReply frames: OK on a synthesized credit-return
// reply, ERROR on a reply-error tied to an inbound message.
type Status int

const (
	StatusOK Status = iota
	StatusContinue
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusContinue:
		return "CONTINUE"
	default:
		return "ERROR"
	}
}

// Header identifies a frame: the (procedure, serial) pair names the
// stream it belongs to (or the call it replies to); Program lets a
// multi-program daemon route the frame to the right Program collaborator.
type Header struct {
	Program   uint32
	Version   uint32
	Procedure uint64
	Serial    uint64
	Type      FrameType
	Status    Status
}

// Message is one frame, inbound or outbound.
type Message struct {
	Header  Header
	Payload []byte
	// ErrMsg carries a human-readable reason on a Status == StatusError
	// frame (e.g. "stream aborted at client request").
	ErrMsg string
}

// StreamKey is the (procedure, serial) pair identifying a stream within
// one client (spec.md invariant I6: unique per client).
type StreamKey struct {
	Procedure uint64
	Serial    uint64
}

func (h Header) Key() StreamKey { return StreamKey{Procedure: h.Procedure, Serial: h.Serial} }

// FilterOutcome is the sum-type replacement for the source's
// "filter returns 1/0/-1" convention (spec.md §9 Design Notes).
type FilterOutcome int

const (
	// Declined means the message does not belong to this filter; the
	// transport must continue normal dispatch.
	Declined FilterOutcome = iota
	// Consumed means the message was fully absorbed; the transport
	// must not dispatch it further.
	Consumed
	// Fatal means the filter itself hit an unrecoverable error while
	// handling the message (e.g. queue full against policy); the
	// transport should treat this like a client-level error.
	Fatal
)
