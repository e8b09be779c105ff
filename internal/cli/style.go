package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/homeroom/internal/hub"
)

var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	badgeStyles = map[hub.Status]lipgloss.Style{
		hub.StatusIdle:    badgeBase.Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#A6E3A1")),
		hub.StatusSyncing: badgeBase.Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#89B4FA")),
		hub.StatusError:   badgeBase.Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#F38BA8")),
		hub.StatusOffline: badgeBase.Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#9399B2")),
	}

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9399B2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
)

// badgeLabels are the indicator texts shown to teachers.
var badgeLabels = map[hub.Status]string{
	hub.StatusIdle:    "Đã đồng bộ",
	hub.StatusSyncing: "Đang đồng bộ",
	hub.StatusError:   "Lỗi đồng bộ",
	hub.StatusOffline: "Ngoại tuyến",
}

// renderBadge draws the status indicator.
func renderBadge(s hub.Status) string {
	style, ok := badgeStyles[s]
	if !ok {
		style = badgeBase
	}
	label, ok := badgeLabels[s]
	if !ok {
		label = string(s)
	}
	return style.Render(label)
}

// renderLastSync formats the last successful sync relative to now.
func renderLastSync(at *time.Time, now time.Time) string {
	if at == nil {
		return mutedStyle.Render("never synced")
	}
	ago := now.Sub(*at).Truncate(time.Second)
	if ago < time.Second {
		return "last sync just now"
	}
	return fmt.Sprintf("last sync %s ago (%s)", ago, at.Local().Format("15:04:05"))
}

// renderStatusLine is the one-line summary used by status and the TUI.
func renderStatusLine(s hub.State, pending int, now time.Time) string {
	parts := []string{renderBadge(s.Status), renderLastSync(s.LastSync, now)}
	if pending > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d pending", pending)))
	}
	return strings.Join(parts, "  ")
}
