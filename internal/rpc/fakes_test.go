package rpc_test

import (
	"github.com/nimbusd/nimbusd/internal/rpc"
	"github.com/nimbusd/nimbusd/internal/rpc/audit"
	"github.com/nimbusd/nimbusd/pkg/cos"
)

// fakeAuditRecorder records every audit.Entry handed to it, so a test can
// assert on what ClientStreamSet.Free reports at stream teardown.
type fakeAuditRecorder struct {
	entries []audit.Entry
}

func (r *fakeAuditRecorder) Record(e audit.Entry) { r.entries = append(r.entries, e) }

// fakeDataObject is a scriptable DataObject: Send drains against a queue
// of per-call accept limits (so a test can model partial writes and
// WOULD_BLOCK precisely), Recv plays back a queue of canned outcomes.
type fakeDataObject struct {
	sink []byte

	sendLimits []int // -1 == WOULD_BLOCK this call, n==0 means accept nothing, no more entries == accept all
	sendErr    error
	sendCalls  int

	recvOutcomes []recvOutcome
	recvCalls    int

	finished  bool
	finishErr error
	aborted   bool

	cb     rpc.EventCallback
	opaque any
	armed  rpc.EventSet
}

type recvOutcome struct {
	data []byte
	err  error // nil, rpc.ErrWouldBlock, or a fatal error; nil data + nil err == EOF
}

func (f *fakeDataObject) Send(b []byte) (int, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	if len(f.sendLimits) > 0 {
		limit := f.sendLimits[0]
		f.sendLimits = f.sendLimits[1:]
		if limit < 0 {
			return 0, rpc.ErrWouldBlock
		}
		if limit < len(b) {
			f.sink = append(f.sink, b[:limit]...)
			return limit, nil
		}
	}
	f.sink = append(f.sink, b...)
	return len(b), nil
}

func (f *fakeDataObject) Recv(b []byte) (int, error) {
	f.recvCalls++
	if len(f.recvOutcomes) == 0 {
		return 0, rpc.ErrWouldBlock
	}
	out := f.recvOutcomes[0]
	f.recvOutcomes = f.recvOutcomes[1:]
	if out.err != nil {
		return 0, out.err
	}
	return copy(b, out.data), nil
}

func (f *fakeDataObject) Finish() error {
	f.finished = true
	return f.finishErr
}

func (f *fakeDataObject) Abort() { f.aborted = true }

func (f *fakeDataObject) EventAddCallback(interest rpc.EventSet, cb rpc.EventCallback, opaque any) {
	f.armed = interest
	f.cb = cb
	f.opaque = opaque
}

func (f *fakeDataObject) EventUpdateCallback(interest rpc.EventSet) { f.armed = interest }

func (f *fakeDataObject) EventRemoveCallback() { f.cb = nil }

// fire invokes the registered event callback as the data-object event
// layer would, with the client already "locked" (tests run single
// goroutine, so fakeClient.Lock/Unlock are no-ops).
func (f *fakeDataObject) fire(ev rpc.EventSet) {
	if f.cb != nil {
		f.cb(ev, f.opaque)
	}
}

// fakeClient records every frame handed to SendMessage and tracks
// filter registration, standing in for the framed transport + per-client
// lock spec.md §5/§6 describe.
type fakeClient struct {
	id        string
	filters   map[string]rpc.FilterFunc
	sent      []*rpc.Message
	immediate bool
	closedC   bool

	addFilterErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{id: "test-client", filters: map[string]rpc.FilterFunc{}}
}

func (c *fakeClient) Identity() string { return c.id }

func (c *fakeClient) AddFilter(cb rpc.FilterFunc) (string, error) {
	if c.addFilterErr != nil {
		return "", c.addFilterErr
	}
	id := cos.GenFilterID()
	c.filters[id] = cb
	return id, nil
}

func (c *fakeClient) RemoveFilter(id string) { delete(c.filters, id) }

func (c *fakeClient) SendMessage(msg *rpc.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeClient) ImmediateClose() { c.immediate = true }
func (c *fakeClient) Close()          { c.closedC = true }
func (c *fakeClient) Lock()           {}
func (c *fakeClient) Unlock()         {}

// deliver runs msg through every installed filter, as the transport's
// normal-dispatch loop would, and reports the first non-Declined outcome.
func (c *fakeClient) deliver(msg *rpc.Message) rpc.FilterOutcome {
	for _, f := range c.filters {
		if out := f(msg); out != rpc.Declined {
			return out
		}
	}
	return rpc.Declined
}

// fakeProgram is a single-procedure Program collaborator that encodes
// each capability call as a plain frame handed to the Client, so tests
// can assert on fakeClient.sent without caring about wire encoding.
type fakeProgram struct {
	procedure uint64

	streamDataCalls []streamDataCall
	streamErrCalls  []streamErrCall
}

type streamDataCall struct {
	procedure, serial uint64
	payload           []byte
	fin               bool
}

type streamErrCall struct {
	procedure, serial uint64
	err               error
}

func (p *fakeProgram) Match(msg *rpc.Message) bool { return msg.Header.Procedure == p.procedure }

func (p *fakeProgram) SendReplyError(client rpc.Client, msg *rpc.Message, err error, hdr rpc.Header) error {
	hdr.Type = rpc.CallReply
	hdr.Status = rpc.StatusError
	return client.SendMessage(&rpc.Message{Header: hdr, ErrMsg: err.Error()})
}

func (p *fakeProgram) SendStreamError(client rpc.Client, _ *rpc.Message, err error, procedure, serial uint64) error {
	p.streamErrCalls = append(p.streamErrCalls, streamErrCall{procedure, serial, err})
	hdr := rpc.Header{Procedure: procedure, Serial: serial, Type: rpc.Stream, Status: rpc.StatusError}
	return client.SendMessage(&rpc.Message{Header: hdr, ErrMsg: err.Error()})
}

func (p *fakeProgram) SendStreamData(client rpc.Client, _ *rpc.Message, procedure, serial uint64, payload []byte, fin bool, onSent func()) error {
	p.streamDataCalls = append(p.streamDataCalls, streamDataCall{procedure, serial, payload, fin})
	status := rpc.StatusContinue
	if fin {
		status = rpc.StatusOK
	}
	hdr := rpc.Header{Procedure: procedure, Serial: serial, Type: rpc.Stream, Status: status}
	err := client.SendMessage(&rpc.Message{Header: hdr, Payload: payload})
	if onSent != nil {
		onSent()
	}
	return err
}

func continueMsg(procedure, serial uint64, payload []byte) *rpc.Message {
	return &rpc.Message{
		Header:  rpc.Header{Procedure: procedure, Serial: serial, Type: rpc.Stream, Status: rpc.StatusContinue},
		Payload: append([]byte(nil), payload...),
	}
}

func okMsg(procedure, serial uint64) *rpc.Message {
	return &rpc.Message{Header: rpc.Header{Procedure: procedure, Serial: serial, Type: rpc.Stream, Status: rpc.StatusOK}}
}

func errMsg(procedure, serial uint64) *rpc.Message {
	return &rpc.Message{Header: rpc.Header{Procedure: procedure, Serial: serial, Type: rpc.Stream, Status: rpc.StatusError}}
}
