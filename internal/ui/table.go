package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Format selects how a peer list is printed.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatPlain    Format = "plain"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatMarkdown, FormatCSV, FormatPlain:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, markdown, csv or plain)", s)
	}
}

func styleRows(row, col int) lipgloss.Style {
	switch {
	case row == table.HeaderRow:
		return TableHeaderStyle
	case row%2 == 0:
		return TableRowStyle
	default:
		return TableRowAltStyle
	}
}

// PeerTable renders the online peers.
type PeerTable struct {
	peers []signaling.PeerID
}

func NewPeerTable(peers []signaling.PeerID) *PeerTable {
	return &PeerTable{peers: peers}
}

// View renders the table with lipgloss for terminals.
func (t *PeerTable) View() string {
	if len(t.peers) == 0 {
		return MutedStyle.Render("No other peers online")
	}

	rows := make([][]string, 0, len(t.peers))
	for i, id := range t.peers {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), string(id)})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Peer ID").
		Rows(rows...).
		StyleFunc(styleRows)

	return tbl.Render()
}

// Render returns the peer list in the requested format. Markdown and CSV
// go through go-pretty so they can be pasted into documents or piped.
func (t *PeerTable) Render(f Format) string {
	switch f {
	case FormatPlain:
		var b strings.Builder
		for _, id := range t.peers {
			b.WriteString(string(id))
			b.WriteByte('\n')
		}
		return strings.TrimSuffix(b.String(), "\n")
	case FormatMarkdown, FormatCSV:
		w := prettytable.NewWriter()
		w.AppendHeader(prettytable.Row{"#", "Peer ID"})
		for i, id := range t.peers {
			w.AppendRow(prettytable.Row{i + 1, string(id)})
		}
		if f == FormatCSV {
			return w.RenderCSV()
		}
		return w.RenderMarkdown()
	default:
		return t.View()
	}
}

// IdentityView shows the id the server assigned to this client.
func IdentityView(me signaling.PeerID, server string) string {
	content := fmt.Sprintf("%s Connected to %s\n\n%s Your ID:  %s",
		IconConnect, MutedStyle.Render(server),
		IconPeer, IDStyle.Render(string(me)),
	)
	return IdentityBoxStyle.Render(content)
}

// CallSummary describes a finished call for display.
type CallSummary struct {
	Peer     signaling.PeerID
	Outgoing bool
	Rejected bool
	Text     string
	RTT      time.Duration
}

// CallSummaryView renders s as a two-column table inside a box.
func CallSummaryView(s CallSummary) string {
	direction := "Incoming"
	if s.Outgoing {
		direction = "Outgoing"
	}
	status := IconSuccess + " Connected"
	if s.Rejected {
		status = IconReject + " Rejected"
	}

	rows := [][]string{
		{"Peer", string(s.Peer)},
		{"Direction", direction},
		{"Status", status},
	}
	if !s.Rejected {
		rows = append(rows, []string{"Message", s.Text})
	}
	if s.RTT > 0 {
		rows = append(rows, []string{"Round trip", IconTime + " " + s.RTT.Round(time.Millisecond).String()})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Call", "").
		Rows(rows...).
		StyleFunc(styleRows)

	return CallBoxStyle.Render(IconCall + " " + BoldStyle.Render("Call summary") + "\n\n" + tbl.Render())
}
