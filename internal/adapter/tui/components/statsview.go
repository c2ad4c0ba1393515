package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"wordstory/internal/domain"
)

// StatsMarkdown formats game-end statistics as a markdown table.
func StatsMarkdown(stats domain.GameEndStats) string {
	var sb strings.Builder
	name := stats.DisplayName
	if name == "" {
		name = stats.ID
	}
	fmt.Fprintf(&sb, "## Game over, %s\n\n", escapeCell(name))
	rows := stats.Rows()
	if len(rows) == 0 {
		sb.WriteString("_No statistics were reported._\n")
		return sb.String()
	}
	sb.WriteString("| Stat | Value |\n|---|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "| %s | %s |\n", escapeCell(r.Label()), escapeCell(r.Value.String()))
	}
	return sb.String()
}

// HistoryMarkdown formats stored games, newest first, one section per game.
func HistoryMarkdown(records []domain.GameRecord) string {
	if len(records) == 0 {
		return "_No games recorded yet._\n"
	}
	var sb strings.Builder
	for i, rec := range records {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "_%s_\n\n", rec.EndedAt.Local().Format("2006-01-02 15:04"))
		sb.WriteString(StatsMarkdown(rec.Stats))
	}
	return sb.String()
}

// RenderMarkdown renders md for a terminal of the given width. On renderer
// failure the raw markdown is returned.
func RenderMarkdown(md string, width int) string {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
