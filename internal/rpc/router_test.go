package rpc_test

import (
	"testing"

	"github.com/nimbusd/nimbusd/internal/rpc"
)

func TestFilterForDeclinesWrongTypeKeyOrProgram(t *testing.T) {
	client := newFakeClient()
	_, set := rpc.NewClientRouting(client, rpc.NewStreamProtocol(nil), nil, nil)

	do := &fakeDataObject{}
	prog := &fakeProgram{procedure: 11}
	s := rpc.NewStreamState(11, 1, prog, do, client)
	if err := set.Add(s, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	wrongType := &rpc.Message{Header: rpc.Header{Procedure: 11, Serial: 1, Type: rpc.CallReply}}
	if out := client.deliver(wrongType); out != rpc.Declined {
		t.Fatalf("non-stream frame: deliver = %v, want Declined", out)
	}

	wrongProgram := continueMsg(99, 1, nil)
	if out := client.deliver(wrongProgram); out != rpc.Declined {
		t.Fatalf("unmatched program: deliver = %v, want Declined", out)
	}

	wrongSerial := continueMsg(11, 2, nil)
	if out := client.deliver(wrongSerial); out != rpc.Declined {
		t.Fatalf("unmatched key: deliver = %v, want Declined", out)
	}

	right := continueMsg(11, 1, []byte("ok"))
	if out := client.deliver(right); out != rpc.Consumed {
		t.Fatalf("matching frame: deliver = %v, want Consumed", out)
	}
}

func TestFilterForReturnsFatalWhenQueueFull(t *testing.T) {
	client := newFakeClient()
	_, set := rpc.NewClientRouting(client, rpc.NewStreamProtocol(nil), nil, nil)

	do := &fakeDataObject{sendLimits: []int{-1}} // first write would-block, keeping the packet queued
	prog := &fakeProgram{procedure: 12}
	s := rpc.NewStreamState(12, 1, prog, do, client)
	if err := set.Add(s, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	first := continueMsg(12, 1, []byte("a"))
	if out := client.deliver(first); out != rpc.Consumed {
		t.Fatalf("first packet: deliver = %v, want Consumed", out)
	}

	second := continueMsg(12, 1, []byte("b"))
	if out := client.deliver(second); out != rpc.Fatal {
		t.Fatalf("second packet while queue full: deliver = %v, want Fatal", out)
	}
}

// TestEventForDetachesAfterRemoval exercises the mundane half of
// spec.md §4.3's event-callback re-validation: once a stream is gone
// from the set, its own data object no longer has a live callback at
// all, so a stray fire is simply a no-op rather than touching freed
// stream state.
func TestEventForDetachesAfterRemoval(t *testing.T) {
	client := newFakeClient()
	_, set := rpc.NewClientRouting(client, rpc.NewStreamProtocol(nil), nil, nil)

	do := &fakeDataObject{}
	prog := &fakeProgram{procedure: 13}
	s := rpc.NewStreamState(13, 1, prog, do, client)
	if err := set.Add(s, false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	set.Remove(s)
	if do.cb != nil {
		t.Fatal("Remove did not detach the stream's event callback")
	}
	do.fire(rpc.Writable) // no-op: cb is already nil, must not panic
}

// TestHangupPreservesInFlightOrdering is the spec.md §9 Open Question
// resolution check: a HANGUP delivered alongside an already-available
// read must still drain and send that data before the stream is torn
// down with its error frame, not drop it in favor of an immediate abort.
func TestHangupPreservesInFlightOrdering(t *testing.T) {
	client := newFakeClient()
	proto := rpc.NewStreamProtocol(nil)
	router, set := rpc.NewClientRouting(client, proto, nil, nil)

	do := &fakeDataObject{recvOutcomes: []recvOutcome{{data: []byte("tail-bytes")}}}
	prog := &fakeProgram{procedure: 9}
	s := rpc.NewStreamState(9, 1, prog, do, client)
	if err := router.Register(s, true); err != nil {
		t.Fatalf("Register: %v", err)
	}

	do.fire(rpc.Readable | rpc.Hangup)

	if len(client.sent) != 2 {
		t.Fatalf("got %d frames sent, want 2 (in-flight data, then the HANGUP error frame)", len(client.sent))
	}
	if client.sent[0].Header.Type != rpc.Stream || client.sent[0].Header.Status != rpc.StatusContinue {
		t.Fatalf("frame 0 = %+v, want an in-flight STREAM CONTINUE data frame", client.sent[0].Header)
	}
	if string(client.sent[0].Payload) != "tail-bytes" {
		t.Fatalf("frame 0 payload = %q, want %q", client.sent[0].Payload, "tail-bytes")
	}
	if client.sent[1].Header.Status != rpc.StatusError {
		t.Fatalf("frame 1 status = %v, want StatusError (the HANGUP error frame)", client.sent[1].Header.Status)
	}
	if set.Len() != 0 {
		t.Fatalf("set.Len() = %d after HANGUP teardown, want 0", set.Len())
	}
}

func TestErrorEventClosesStreamOnce(t *testing.T) {
	client := newFakeClient()
	router, set := rpc.NewClientRouting(client, rpc.NewStreamProtocol(nil), nil, nil)

	do := &fakeDataObject{}
	prog := &fakeProgram{procedure: 14}
	s := rpc.NewStreamState(14, 1, prog, do, client)
	if err := router.Register(s, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	do.fire(rpc.ErrorEvent)
	if set.Len() != 0 {
		t.Fatalf("set.Len() = %d after ERROR event, want 0", set.Len())
	}
	if len(client.sent) != 1 {
		t.Fatalf("got %d frames sent, want exactly 1 error frame", len(client.sent))
	}
}
