package rpc

import (
	"github.com/nimbusd/nimbusd/internal/rpc/metrics"
	"github.com/nimbusd/nimbusd/pkg/debug"
)

// MaxPayloadSize bounds a single outbound STREAM CONTINUE packet
// (spec.md §4.4 handleRead, "payload buffer of the transport's maximum
// payload size"). handleRead always allocates a buffer of this size; the
// stream.max_payload_bytes setting in internal/config is not read by the
// engine.
const MaxPayloadSize = 64 * 1024

// StreamProtocol implements the write/read/finish/abort paths of
// spec.md §4.4 against a stream's program and data object. It holds no
// per-call state of its own; every method takes the StreamState (and,
// where relevant, the inbound packet) explicitly and must be called
// with the owning client already locked.
type StreamProtocol struct {
	rec metrics.Recorder
}

func NewStreamProtocol(rec metrics.Recorder) *StreamProtocol {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &StreamProtocol{rec: rec}
}

// handleWrite drains inboundHead into the data sink (spec.md §4.4
// "Write path"). It loops while a packet is queued and the stream is
// not yet closed; a fatal sink error, a credit-reply send failure, or a
// failure to even queue the sink-error reply all end the loop and
// return an error classifying as severity 1, 2, or 6 via the rpc error
// classes.
func (p *StreamProtocol) handleWrite(s *StreamState) error {
	for {
		head := s.headInbound()
		if head == nil || s.closed {
			return nil
		}
		switch head.Header.Status {
		case StatusContinue:
			if err := p.writeOne(s, head); err != nil {
				return err
			}
			if s.headInbound() == head {
				// partial write or would-block: offset advanced in
				// place, packet stays at the head.
				return nil
			}
			// full consumption already dequeued by writeOne; loop to
			// see whether another packet is already queued.
		default:
			// OK/ERROR/unexpected statuses are not this path's concern;
			// the router's post-dispatch status switch handles them.
			return nil
		}
	}
}

// writeOne pushes head's remaining payload into the sink. On full
// consumption it dequeues head and synthesizes the credit-return reply
// itself (spec.md §4.4 "full consumption... synthesize a zero-length
// reply packet... return credit to the peer").
func (p *StreamProtocol) writeOne(s *StreamState, head *Message) error {
	n, err := s.dataObject.Send(head.Payload)
	s.totalBytesIn += uint64(n)
	p.rec.BytesIn(n)
	if err == ErrWouldBlock {
		p.rec.Backpressure()
		head.Payload = head.Payload[n:]
		return nil
	}
	if err != nil {
		s.closed = true
		// the reply-error below answers this packet; it must not also
		// be credited back when the stream is freed.
		s.dequeueInbound()
		s.logTerminal("sink write failed")
		if sendErr := s.program.SendReplyError(s.client, head, err, head.Header); sendErr != nil {
			return ErrFrameSend.Wrap(sendErr)
		}
		return ErrSink.Wrap(err)
	}
	if n < len(head.Payload) {
		head.Payload = head.Payload[n:]
		return nil
	}
	s.dequeueInbound()
	reply := &Message{Header: head.Header}
	reply.Header.Type = CallReply
	reply.Header.Status = StatusOK
	if err := s.client.SendMessage(reply); err != nil {
		return ErrCreditUnderrun.Wrap(err)
	}
	return nil
}

// handleRead pulls one buffer's worth of bytes from the data source and
// emits a STREAM CONTINUE packet, arranging for txReady to be restored
// once the transport has actually sent it (spec.md §4.4 "Read path").
func (p *StreamProtocol) handleRead(s *StreamState) error {
	debug.Assert(s.txReady, "handleRead called without txReady", s.Key())
	debug.Assert(!s.closed, "handleRead called on closed stream", s.Key())
	debug.Assert(!s.recvEOF, "handleRead called after recvEOF", s.Key())

	buf := make([]byte, MaxPayloadSize)
	n, err := s.dataObject.Recv(buf)
	if err == ErrWouldBlock {
		return nil
	}
	if err != nil {
		// closed is left for the router's dispatch to set once this
		// error propagates up and the stream is removed, same as every
		// other handleWrite/handleRead failure.
		s.logTerminal("source read failed")
		if sendErr := s.program.SendStreamError(s.client, nil, err, s.Procedure, s.Serial); sendErr != nil {
			return ErrFrameSend.Wrap(sendErr)
		}
		return ErrSource.Wrap(err)
	}

	s.txReady = false
	if n == 0 {
		s.recvEOF = true
	}
	s.totalBytesOut += uint64(n)
	p.rec.BytesOut(n)

	s.Retain()
	payload := buf[:n]
	completion := func() {
		s.client.Lock()
		defer s.client.Unlock()
		s.txReady = true
		if !s.closed {
			s.dataObject.EventUpdateCallback(s.ArmedEvents())
		}
		s.Release()
	}
	msg := &Message{Header: Header{Procedure: s.Procedure, Serial: s.Serial, Type: Stream, Status: StatusContinue}, Payload: payload}
	if err := s.program.SendStreamData(s.client, msg, s.Procedure, s.Serial, payload, false, completion); err != nil {
		s.Release()
		return ErrFrameSend.Wrap(err)
	}
	return nil
}

// handleFinish confirms a peer-initiated finish (spec.md §4.4 "Finish").
func (p *StreamProtocol) handleFinish(s *StreamState, head *Message) error {
	if s.closed {
		// idempotence: a second OK (or a race against an already-closed
		// stream) must not call finish() twice.
		return nil
	}
	s.closed = true
	s.dataObject.EventRemoveCallback()
	s.logTerminal("finished at peer request")

	if err := s.dataObject.Finish(); err != nil {
		if sendErr := s.program.SendReplyError(s.client, head, err, head.Header); sendErr != nil {
			return ErrFrameSend.Wrap(sendErr)
		}
		return nil
	}
	if err := s.program.SendStreamData(s.client, head, s.Procedure, s.Serial, nil, true, nil); err != nil {
		return ErrFrameSend.Wrap(err)
	}
	return nil
}

// handleAbort tears the stream down on a peer ERROR or an unrecognized
// status (spec.md §4.4 "Abort").
func (p *StreamProtocol) handleAbort(s *StreamState, head *Message) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dataObject.EventRemoveCallback()
	s.dataObject.Abort()

	var abortErr error
	if head.Header.Status == StatusError {
		s.logTerminal("aborted at client request")
		abortErr = ErrHangup.New(s.term)
	} else {
		s.logTerminal(unexpectedStatusReason(head.Header.Status))
		abortErr = ErrUnexpectedStatus.New(s.term)
	}
	if err := s.program.SendReplyError(s.client, head, abortErr, head.Header); err != nil {
		return ErrFrameSend.Wrap(err)
	}
	return nil
}
