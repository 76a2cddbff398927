package signaling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpcall/internal/metrics"
)

func newTestRouter() (*Router, *metrics.Metrics) {
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewRegistry(), m, logger), m
}

func payloadOf[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		t.Fatalf("decode %s payload %s: %v", msg.Type, msg.Payload, err)
	}
	return v
}

func inbound(t *testing.T, from Peer, typ string, payload string) *Message {
	t.Helper()
	return &Message{Type: typ, Payload: json.RawMessage(payload), peer: from}
}

func containsID(ids []PeerID, id PeerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestHandleConnectFirstPeerGetsEmptyList(t *testing.T) {
	r, _ := newTestRouter()
	p1 := newFakePeer("p1")

	r.HandleConnect(p1)

	got := p1.received()
	if len(got) != 1 {
		t.Fatalf("p1 received %d messages, want 1", len(got))
	}
	if got[0].Type != MessageTypeUpdateUserList {
		t.Fatalf("type = %s, want %s", got[0].Type, MessageTypeUpdateUserList)
	}
	// Browsers iterate users directly, so an empty list must not be null.
	if !strings.Contains(string(got[0].Payload), `"users":[]`) {
		t.Fatalf("payload = %s, want an empty users array", got[0].Payload)
	}
	list := payloadOf[UserListPayload](t, got[0])
	if list.Me != "p1" {
		t.Fatalf("me = %q, want p1", list.Me)
	}
}

func TestHandleConnectAnnouncesJoin(t *testing.T) {
	r, m := newTestRouter()
	p1, p2 := newFakePeer("p1"), newFakePeer("p2")

	r.HandleConnect(p1)
	r.HandleConnect(p2)

	// P1: its own list, then exactly one broadcast naming P2.
	got1 := p1.received()
	if len(got1) != 2 {
		t.Fatalf("p1 received %d messages, want 2", len(got1))
	}
	joined := payloadOf[UserListPayload](t, got1[1])
	if got1[1].Type != MessageTypeUpdateUserList || joined.Me != "" {
		t.Fatalf("p1 second message = %s %s, want join broadcast", got1[1].Type, got1[1].Payload)
	}
	if len(joined.Users) != 1 || joined.Users[0] != "p2" {
		t.Fatalf("join broadcast users = %v, want [p2]", joined.Users)
	}

	// P2: exactly one private message with me=P2 and users containing P1 only.
	got2 := p2.received()
	if len(got2) != 1 {
		t.Fatalf("p2 received %d messages, want 1", len(got2))
	}
	self := payloadOf[UserListPayload](t, got2[0])
	if self.Me != "p2" {
		t.Fatalf("me = %q, want p2", self.Me)
	}
	if !containsID(self.Users, "p1") || containsID(self.Users, "p2") {
		t.Fatalf("users = %v, want p1 and not p2", self.Users)
	}

	if got := m.Get(metrics.PeerConnected); got != 2 {
		t.Fatalf("peer_connected = %d, want 2", got)
	}
}

func TestHandleConnectDuplicateIsIgnored(t *testing.T) {
	r, m := newTestRouter()
	p1, p2 := newFakePeer("p1"), newFakePeer("p2")
	r.HandleConnect(p1)
	r.HandleConnect(p2)

	again := newFakePeer("p2")
	r.HandleConnect(again)

	if n := len(again.received()); n != 0 {
		t.Fatalf("duplicate connect received %d messages, want 0", n)
	}
	if n := len(p1.received()); n != 2 {
		t.Fatalf("p1 received %d messages after duplicate, want 2", n)
	}
	if p, _ := r.Registry().Get("p2"); p != p2 {
		t.Fatal("duplicate connect replaced the registered peer")
	}
	if got := m.Get(metrics.DuplicateConnect); got != 1 {
		t.Fatalf("duplicate_connect = %d, want 1", got)
	}
}

func TestHandleDisconnectBroadcastsRemoval(t *testing.T) {
	r, _ := newTestRouter()
	p1, p2, p3 := newFakePeer("p1"), newFakePeer("p2"), newFakePeer("p3")
	r.HandleConnect(p1)
	r.HandleConnect(p2)
	r.HandleConnect(p3)

	before2, before3 := len(p2.received()), len(p3.received())
	r.HandleDisconnect(p1)

	if r.Registry().Contains("p1") {
		t.Fatal("registry still contains p1")
	}
	if !p1.isClosed() {
		t.Fatal("disconnected peer was not closed")
	}

	for _, p := range []*fakePeer{p2, p3} {
		got := p.received()
		before := before2
		if p == p3 {
			before = before3
		}
		if len(got) != before+1 {
			t.Fatalf("%s received %d new messages, want 1", p.id, len(got)-before)
		}
		last := got[len(got)-1]
		if last.Type != MessageTypeRemoveUser {
			t.Fatalf("%s got %s, want %s", p.id, last.Type, MessageTypeRemoveUser)
		}
		if rm := payloadOf[RemoveUserPayload](t, last); rm.SocketID != "p1" {
			t.Fatalf("socketId = %q, want p1", rm.SocketID)
		}
	}
}

func TestHandleDisconnectTwiceIsHarmless(t *testing.T) {
	r, m := newTestRouter()
	p1, p2 := newFakePeer("p1"), newFakePeer("p2")
	r.HandleConnect(p1)
	r.HandleConnect(p2)

	r.HandleDisconnect(p1)
	r.HandleDisconnect(p1)

	if r.Registry().Len() != 1 || !r.Registry().Contains("p2") {
		t.Fatalf("registry = %v, want [p2]", r.Registry().ListOthers(""))
	}
	if got := m.Get(metrics.PeerDisconnected); got != 1 {
		t.Fatalf("peer_disconnected = %d, want 1", got)
	}
}

func TestCallUserReachesOnlyTarget(t *testing.T) {
	r, _ := newTestRouter()
	a, b, c := newFakePeer("a"), newFakePeer("b"), newFakePeer("c")
	for _, p := range []*fakePeer{a, b, c} {
		r.HandleConnect(p)
	}
	beforeA, beforeB, beforeC := len(a.received()), len(b.received()), len(c.received())

	// The forged from must be ignored in favour of the connection's id.
	r.HandleMessage(inbound(t, a, MessageTypeCallUser, `{"to":"b","from":"c","offer":{"type":"offer","sdp":"v=0"}}`))

	if n := len(a.received()) - beforeA; n != 0 {
		t.Fatalf("sender received %d messages", n)
	}
	if n := len(c.received()) - beforeC; n != 0 {
		t.Fatalf("bystander received %d messages", n)
	}
	got := b.received()
	if len(got)-beforeB != 1 {
		t.Fatalf("target received %d messages, want 1", len(got)-beforeB)
	}
	msg := got[len(got)-1]
	if msg.Type != MessageTypeCallMade {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeCallMade)
	}
	made := payloadOf[CallMadePayload](t, msg)
	if made.From != "a" || made.To != "b" || made.Socket != "a" {
		t.Fatalf("call-made = %+v, want from=a to=b socket=a", made)
	}
	if string(made.Offer) != `{"type":"offer","sdp":"v=0"}` {
		t.Fatalf("offer = %s, want it forwarded untouched", made.Offer)
	}
}

func TestMakeAnswerReachesCaller(t *testing.T) {
	r, _ := newTestRouter()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.HandleConnect(a)
	r.HandleConnect(b)
	beforeA := len(a.received())

	r.HandleMessage(inbound(t, b, MessageTypeMakeAnswer, `{"to":"a","answer":{"type":"answer","sdp":"v=0"}}`))

	got := a.received()
	if len(got)-beforeA != 1 {
		t.Fatalf("caller received %d messages, want 1", len(got)-beforeA)
	}
	msg := got[len(got)-1]
	if msg.Type != MessageTypeAnswerMade {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeAnswerMade)
	}
	made := payloadOf[AnswerMadePayload](t, msg)
	if made.From != "b" || made.To != "a" || made.Socket != "b" {
		t.Fatalf("answer-made = %+v, want from=b to=a socket=b", made)
	}
	if string(made.Answer) != `{"type":"answer","sdp":"v=0"}` {
		t.Fatalf("answer = %s", made.Answer)
	}
}

// The inbound reject-call payload names the destination in a field called
// "from". This inversion is the established wire behaviour; changing it
// must be a deliberate protocol change, so this test pins it.
func TestRejectCallFromFieldIsTheDestination(t *testing.T) {
	r, _ := newTestRouter()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.HandleConnect(a)
	r.HandleConnect(b)
	beforeA, beforeB := len(a.received()), len(b.received())

	r.HandleMessage(inbound(t, b, MessageTypeRejectCall, `{"from":"a"}`))

	if n := len(b.received()) - beforeB; n != 0 {
		t.Fatalf("rejecting peer received %d messages, want 0", n)
	}
	got := a.received()
	if len(got)-beforeA != 1 {
		t.Fatalf("caller received %d messages, want 1", len(got)-beforeA)
	}
	msg := got[len(got)-1]
	if msg.Type != MessageTypeCallRejected {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeCallRejected)
	}
	rej := payloadOf[CallRejectedPayload](t, msg)
	if rej.To != "a" || rej.From != "b" || rej.Socket != "b" {
		t.Fatalf("call-rejected = %+v, want to=a from=b socket=b", rej)
	}
}

func TestCallUserUnknownTargetIsDroppedSilently(t *testing.T) {
	r, m := newTestRouter()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.HandleConnect(a)
	r.HandleConnect(b)
	beforeA, beforeB := len(a.received()), len(b.received())

	r.HandleMessage(inbound(t, a, MessageTypeCallUser, `{"to":"gone","offer":{"sdp":"x"}}`))

	if n := len(a.received()) - beforeA; n != 0 {
		t.Fatalf("sender received %d messages, want none", n)
	}
	if n := len(b.received()) - beforeB; n != 0 {
		t.Fatalf("bystander received %d messages, want none", n)
	}
	if got := m.Get(metrics.MalformedMessage); got != 0 {
		t.Fatalf("unknown target counted as malformed")
	}
}

func TestRelayAddressedToSenderIsDropped(t *testing.T) {
	r, _ := newTestRouter()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.HandleConnect(a)
	r.HandleConnect(b)
	beforeA, beforeB := len(a.received()), len(b.received())

	r.HandleMessage(inbound(t, a, MessageTypeCallUser, `{"to":"a","offer":{"sdp":"x"}}`))
	r.HandleMessage(inbound(t, a, MessageTypeMakeAnswer, `{"to":"a","answer":{"sdp":"y"}}`))
	r.HandleMessage(inbound(t, a, MessageTypeRejectCall, `{"from":"a"}`))

	if n := len(a.received()) - beforeA; n != 0 {
		t.Fatalf("sender received %d of its own relays, want none", n)
	}
	if n := len(b.received()) - beforeB; n != 0 {
		t.Fatalf("bystander received %d messages, want none", n)
	}
}

func TestMalformedRelayRequestsAreDiscarded(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		payload string
	}{
		{"call without to", MessageTypeCallUser, `{"offer":{"sdp":"x"}}`},
		{"call without offer", MessageTypeCallUser, `{"to":"b"}`},
		{"call with null offer", MessageTypeCallUser, `{"to":"b","offer":null}`},
		{"answer without to", MessageTypeMakeAnswer, `{"answer":{"sdp":"x"}}`},
		{"answer without answer", MessageTypeMakeAnswer, `{"to":"b"}`},
		{"reject without from", MessageTypeRejectCall, `{}`},
		{"not an object", MessageTypeCallUser, `"b"`},
		{"wrong field type", MessageTypeCallUser, `{"to":42,"offer":{}}`},
		{"empty payload", MessageTypeRejectCall, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRouter()
			a, b := newFakePeer("a"), newFakePeer("b")
			r.HandleConnect(a)
			r.HandleConnect(b)
			beforeB := len(b.received())

			r.HandleMessage(inbound(t, a, tt.typ, tt.payload))

			if n := len(b.received()) - beforeB; n != 0 {
				t.Fatalf("malformed request was forwarded (%d messages)", n)
			}
			if got := m.Get(metrics.MalformedMessage); got != 1 {
				t.Fatalf("malformed_message = %d, want 1", got)
			}
		})
	}
}

func TestUnknownMessageTypeIsCounted(t *testing.T) {
	r, m := newTestRouter()
	a := newFakePeer("a")
	r.HandleConnect(a)

	r.HandleMessage(inbound(t, a, "ice-candidate", `{"to":"b"}`))

	if got := m.Get(metrics.UnknownMessage); got != 1 {
		t.Fatalf("unknown_message = %d, want 1", got)
	}
}

func TestFullSendQueueIsCountedNotBlocking(t *testing.T) {
	r, m := newTestRouter()
	a, b := newFakePeer("a"), newFakePeer("b")
	r.HandleConnect(a)
	r.HandleConnect(b)
	b.full = true

	r.HandleMessage(inbound(t, a, MessageTypeCallUser, `{"to":"b","offer":{"sdp":"x"}}`))

	if got := m.Get(metrics.SendDropped); got != 1 {
		t.Fatalf("send_dropped = %d, want 1", got)
	}
}

func TestRunSequencesEventsAndStops(t *testing.T) {
	r, _ := newTestRouter()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	a, b := newFakePeer("a"), newFakePeer("b")
	if !r.Connect(a) || !r.Connect(b) {
		t.Fatal("Connect failed on a running router")
	}
	r.Dispatch(a, &Message{Type: MessageTypeCallUser, Payload: json.RawMessage(`{"to":"b","offer":{"sdp":"x"}}`)})
	r.Disconnect(a)

	// Disconnect is accepted by the loop only after the dispatch was handled,
	// and the loop handles one event at a time, so this round trip settles it.
	c := newFakePeer("c")
	r.Connect(c)
	r.Disconnect(c)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	types := []string{}
	for _, msg := range b.received() {
		types = append(types, msg.Type)
	}
	want := []string{
		MessageTypeUpdateUserList, // own list
		MessageTypeCallMade,
		MessageTypeRemoveUser,     // a left
		MessageTypeUpdateUserList, // c joined
		MessageTypeRemoveUser,     // c left
	}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("b received %v, want %v", types, want)
	}

	if r.Connect(newFakePeer("late")) {
		t.Fatal("Connect succeeded after Run returned")
	}
}

func TestRunSurvivesHandlerPanic(t *testing.T) {
	r, m := newTestRouter()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	bad := newFakePeer("bad")
	bad.panicky = true
	r.Connect(bad)

	good := newFakePeer("good")
	r.Connect(good)
	r.Disconnect(good)

	cancel()
	<-stopped

	if got := m.Get(metrics.HandlerPanic); got == 0 {
		t.Fatal("panic was not recorded")
	}
	if r.Registry().Contains("good") {
		t.Fatal("router stopped processing events after a panic")
	}
}
