package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"wordstory/internal/adapter/tui/theme"
)

// KeyHint is one key binding shown on the left of the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel is the footer of the play screen: key hints on the left,
// the player and game phase on the right, then any transient status.
type StatusBarModel struct {
	Hints      []KeyHint
	PlayerName string
	Phase      string
	Extra      string // e.g. "Word accepted"
	width      int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth sets the total width of the bar, padding included.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the bar on exactly one line. When hints and status do not
// both fit, the hints are dropped and the status is truncated.
func (m StatusBarModel) View() string {
	hints, status := m.hints(), m.status()
	if m.width <= 0 {
		return theme.StatusBar.Render(spread(hints, status, 0))
	}

	inner := max(m.width-theme.StatusBar.GetHorizontalFrameSize(), 1)
	if lipgloss.Width(hints)+lipgloss.Width(status)+1 > inner {
		hints = ""
	}
	line := lipgloss.NewStyle().MaxWidth(inner).Render(spread(hints, status, inner))
	return theme.StatusBar.Width(m.width).Render(line)
}

func (m StatusBarModel) hints() string {
	parts := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		parts = append(parts, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	return strings.Join(parts, "  "+theme.Dim.Render("|")+"  ")
}

func (m StatusBarModel) status() string {
	var who []string
	for _, s := range []string{m.PlayerName, m.Phase} {
		if s != "" {
			who = append(who, s)
		}
	}

	var out []string
	if len(who) > 0 {
		out = append(out, theme.TextMuted.Render(strings.Join(who, " "+theme.SymbolBullet+" ")))
	}
	if m.Extra != "" {
		out = append(out, theme.TextInfo.Render(m.Extra))
	}
	return strings.Join(out, "  ")
}

// spread places left and right at the edges of width columns, keeping at
// least one space between them.
func spread(left, right string, width int) string {
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}
