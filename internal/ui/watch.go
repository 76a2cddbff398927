package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

const maxWatchEvents = 8

// PresenceMsg carries one roster change into the watch view.
type PresenceMsg client.PresenceEvent

// DisconnectedMsg is sent when the signaling connection ends.
type DisconnectedMsg struct{}

// WatchModel is a live view of who is online.
type WatchModel struct {
	server  string
	me      signaling.PeerID
	peers   []signaling.PeerID
	events  []string
	spinner spinner.Model

	updates <-chan client.PresenceEvent
	done    <-chan struct{}
	now     func() time.Time

	quitting     bool
	disconnected bool
}

// NewWatchModel reads roster changes from updates until done is closed.
func NewWatchModel(server string, updates <-chan client.PresenceEvent, done <-chan struct{}) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &WatchModel{
		server:  server,
		spinner: s,
		updates: updates,
		done:    done,
		now:     time.Now,
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *WatchModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.updates:
			return PresenceMsg(ev)
		case <-m.done:
			return DisconnectedMsg{}
		}
	}
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PresenceMsg:
		m.apply(client.PresenceEvent(msg))
		return m, m.listen()

	case DisconnectedMsg:
		m.disconnected = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *WatchModel) apply(ev client.PresenceEvent) {
	stamp := m.now().Format("15:04:05")

	switch ev.Kind {
	case client.PresenceSnapshot:
		m.me = ev.Me
		m.peers = slices.Clone(ev.Peers)
		m.logEvent(fmt.Sprintf("%s %s registered, %d online", stamp, IconConnect, len(ev.Peers)))

	case client.PresenceJoined:
		for _, id := range ev.Peers {
			if id == m.me || slices.Contains(m.peers, id) {
				continue
			}
			m.peers = append(m.peers, id)
			m.logEvent(fmt.Sprintf("%s %s %s joined", stamp, IconJoin, id))
		}

	case client.PresenceLeft:
		for _, id := range ev.Peers {
			if i := slices.Index(m.peers, id); i >= 0 {
				m.peers = slices.Delete(m.peers, i, i+1)
				m.logEvent(fmt.Sprintf("%s %s %s left", stamp, IconLeave, id))
			}
		}
	}
	slices.Sort(m.peers)
}

func (m *WatchModel) logEvent(line string) {
	m.events = append(m.events, line)
	if len(m.events) > maxWatchEvents {
		m.events = m.events[len(m.events)-maxWatchEvents:]
	}
}

// Peers returns the peers currently shown.
func (m *WatchModel) Peers() []signaling.PeerID {
	return slices.Clone(m.peers)
}

// Disconnected reports whether the view ended because the server went away.
func (m *WatchModel) Disconnected() bool {
	return m.disconnected
}

func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("warpcall · " + m.server))
	b.WriteString("\n")

	if m.me == "" {
		b.WriteString(fmt.Sprintf("%s Waiting for registration...\n", m.spinner.View()))
	} else {
		b.WriteString(fmt.Sprintf("%s You are %s\n\n", IconPeer, IDStyle.Render(string(m.me))))
		b.WriteString(NewPeerTable(m.peers).View())
		b.WriteString("\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(MutedStyle.Render(e))
			b.WriteString("\n")
		}
	}

	if m.disconnected {
		b.WriteString(ErrorStyle.Render("Disconnected from server"))
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render("Press q to quit"))
	return b.String()
}
