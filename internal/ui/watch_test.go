package ui

import (
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

func newTestWatch() *WatchModel {
	m := NewWatchModel("ws://localhost:8080/ws", nil, nil)
	m.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestWatchModelAppliesPresence(t *testing.T) {
	m := newTestWatch()

	steps := []struct {
		ev   client.PresenceEvent
		want []signaling.PeerID
	}{
		{client.PresenceEvent{Kind: client.PresenceSnapshot, Me: "me", Peers: []signaling.PeerID{"b", "a"}}, []signaling.PeerID{"a", "b"}},
		{client.PresenceEvent{Kind: client.PresenceJoined, Peers: []signaling.PeerID{"c"}}, []signaling.PeerID{"a", "b", "c"}},
		{client.PresenceEvent{Kind: client.PresenceJoined, Peers: []signaling.PeerID{"c", "me"}}, []signaling.PeerID{"a", "b", "c"}},
		{client.PresenceEvent{Kind: client.PresenceLeft, Peers: []signaling.PeerID{"a"}}, []signaling.PeerID{"b", "c"}},
		{client.PresenceEvent{Kind: client.PresenceLeft, Peers: []signaling.PeerID{"zzz"}}, []signaling.PeerID{"b", "c"}},
	}
	for i, s := range steps {
		_, cmd := m.Update(PresenceMsg(s.ev))
		if cmd == nil {
			t.Fatalf("step %d: no follow-up listen command", i)
		}
		if got := m.Peers(); !slices.Equal(got, s.want) {
			t.Fatalf("step %d: peers = %v, want %v", i, got, s.want)
		}
	}

	view := m.View()
	for _, want := range []string{"me", "c joined", "a left"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchModelListen(t *testing.T) {
	updates := make(chan client.PresenceEvent, 1)
	done := make(chan struct{})
	m := NewWatchModel("srv", updates, done)

	updates <- client.PresenceEvent{Kind: client.PresenceSnapshot, Me: "me"}
	if msg, ok := m.listen()().(PresenceMsg); !ok || msg.Me != "me" {
		t.Fatalf("listen returned %#v", msg)
	}

	close(done)
	if _, ok := m.listen()().(DisconnectedMsg); !ok {
		t.Fatal("listen did not report the disconnect")
	}
}

func TestWatchModelQuitAndDisconnect(t *testing.T) {
	m := newTestWatch()
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "" {
		t.Error("view not cleared after quit")
	}

	m = newTestWatch()
	m.Update(DisconnectedMsg{})
	if !m.Disconnected() {
		t.Fatal("disconnect not recorded")
	}
	if !strings.Contains(m.View(), "Disconnected") {
		t.Errorf("view = %q", m.View())
	}
}
