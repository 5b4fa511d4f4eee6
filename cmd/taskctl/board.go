package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/taskcache"
)

var (
	columnTitles = map[task.Status]string{
		task.StatusTodo:       "To do",
		task.StatusInProgress: "In progress",
		task.StatusDone:       "Done",
	}
	columnColors = map[task.Status]lipgloss.Color{
		task.StatusTodo:       lipgloss.Color("#5B8DEF"),
		task.StatusInProgress: lipgloss.Color("#F5A623"),
		task.StatusDone:       lipgloss.Color("#7ED321"),
	}

	cardStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#DDDDDD"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// renderBoard draws the snapshot as three status columns of width colWidth.
func renderBoard(snap taskcache.Snapshot, colWidth int, now time.Time) string {
	byStatus := make(map[task.Status][]*task.Task, 3)
	for _, t := range snap.Tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	cols := make([]string, 0, 3)
	for _, st := range task.Statuses() {
		head := lipgloss.NewStyle().
			Bold(true).
			Foreground(columnColors[st]).
			Render(fmt.Sprintf("%s (%d)", columnTitles[st], len(byStatus[st])))

		lines := []string{head, ""}
		for _, t := range byStatus[st] {
			line := truncate(t.Title, colWidth-4)
			if kind, ok := snap.Pending[t.ID]; ok {
				lines = append(lines, pendingStyle.Render(line+" ["+kind.String()+"...]"))
				continue
			}
			lines = append(lines, cardStyle.Render(line))
			lines = append(lines, footerStyle.Render("  "+t.Project+" · "+ago(now, t.Updated)))
		}

		cols = append(cols, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(colWidth).
			Render(strings.Join(lines, "\n")))
	}

	board := lipgloss.JoinHorizontal(lipgloss.Top, cols...)

	status := footerStyle.Render(fmt.Sprintf("%d task(s)", len(snap.Tasks)))
	if snap.Loading {
		status += footerStyle.Render("  refreshing...")
	}
	if snap.Err != nil {
		status = errorStyle.Render("refresh failed: "+snap.Err.Error()) + "\n" + status
	}
	return lipgloss.JoinVertical(lipgloss.Left, board, status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 1 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func ago(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
