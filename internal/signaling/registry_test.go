package signaling

import (
	"sort"
	"sync"
	"testing"
)

// fakePeer records everything delivered to it.
type fakePeer struct {
	id PeerID

	mu       sync.Mutex
	messages []*Message
	closed   bool
	full     bool
	panicky  bool
}

func newFakePeer(id PeerID) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() PeerID { return p.id }

func (p *fakePeer) Deliver(msg *Message) bool {
	if p.panicky {
		panic("deliver exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full || p.closed {
		return false
	}
	p.messages = append(p.messages, msg)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) received() []*Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func sortedIDs(ids []PeerID) []PeerID {
	out := append([]PeerID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestRegistryMembershipFollowsConnectsAndDisconnects(t *testing.T) {
	r := NewRegistry()

	steps := []struct {
		op   string
		id   PeerID
		want []PeerID
	}{
		{"add", "a", []PeerID{"a"}},
		{"add", "b", []PeerID{"a", "b"}},
		{"add", "c", []PeerID{"a", "b", "c"}},
		{"remove", "b", []PeerID{"a", "c"}},
		{"remove", "b", []PeerID{"a", "c"}},
		{"add", "d", []PeerID{"a", "c", "d"}},
		{"remove", "a", []PeerID{"c", "d"}},
		{"remove", "c", []PeerID{"d"}},
		{"remove", "d", []PeerID{}},
	}

	for i, step := range steps {
		switch step.op {
		case "add":
			r.Add(newFakePeer(step.id))
		case "remove":
			r.Remove(step.id)
		}

		got := sortedIDs(r.ListOthers(""))
		if len(got) != len(step.want) {
			t.Fatalf("step %d (%s %s): members = %v, want %v", i, step.op, step.id, got, step.want)
		}
		for j := range got {
			if got[j] != step.want[j] {
				t.Fatalf("step %d (%s %s): members = %v, want %v", i, step.op, step.id, got, step.want)
			}
		}
		if r.Len() != len(step.want) {
			t.Fatalf("step %d: Len = %d, want %d", i, r.Len(), len(step.want))
		}
	}
}

func TestRegistryListOthersExcludesSelf(t *testing.T) {
	r := NewRegistry()
	for _, id := range []PeerID{"a", "b", "c"} {
		r.Add(newFakePeer(id))
	}

	others := r.ListOthers("b")
	if len(others) != r.Len()-1 {
		t.Fatalf("ListOthers(registered) size = %d, want %d", len(others), r.Len()-1)
	}
	for _, id := range others {
		if id == "b" {
			t.Fatalf("ListOthers included the excluded id: %v", others)
		}
	}

	if got := r.ListOthers("zzz"); len(got) != r.Len() {
		t.Fatalf("ListOthers(unregistered) size = %d, want %d", len(got), r.Len())
	}
}

func TestRegistryListOthersNeverNil(t *testing.T) {
	r := NewRegistry()
	r.Add(newFakePeer("solo"))

	if got := r.ListOthers("solo"); got == nil {
		t.Fatal("ListOthers returned nil, want empty slice")
	}
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Add(newFakePeer("a"))

	if _, ok := r.Remove("ghost"); ok {
		t.Fatal("Remove reported removing an absent id")
	}
	if !r.Contains("a") || r.Len() != 1 {
		t.Fatal("Remove of an absent id changed the registry")
	}

	r.Remove("a")
	if _, ok := r.Remove("a"); ok {
		t.Fatal("second Remove of the same id reported success")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after removals, want 0", r.Len())
	}
}

func TestRegistryBroadcastExcept(t *testing.T) {
	r := NewRegistry()
	a, b, c := newFakePeer("a"), newFakePeer("b"), newFakePeer("c")
	c.full = true
	r.Add(a)
	r.Add(b)
	r.Add(c)

	dropped := r.BroadcastExcept("a", &Message{Type: "ping"})

	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if n := len(a.received()); n != 0 {
		t.Errorf("excluded peer received %d messages", n)
	}
	if n := len(b.received()); n != 1 {
		t.Errorf("peer b received %d messages, want 1", n)
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	a := newFakePeer("a")
	r.Add(a)

	if p, ok := r.Get("a"); !ok || p != a {
		t.Fatalf("Get(a) = %v, %v", p, ok)
	}
	if _, ok := r.Get("b"); ok {
		t.Fatal("Get(b) found an unregistered peer")
	}
}
