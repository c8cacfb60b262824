package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/session"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	parts := []string{m.renderHeader()}
	switch m.mode {
	case modeDatasets:
		parts = append(parts, m.renderDatasets())
	case modeDetail:
		parts = append(parts, m.renderDetail())
	default:
		parts = append(parts, m.table.View())
	}
	if m.inputActive() {
		parts = append(parts, m.input.View())
	}
	parts = append(parts, m.renderStatus(), m.help.View(m.keys))

	return lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	s := m.styles
	snap := m.snapshot

	left := s.Logo.Render("plume")
	if snap.Identity != "" {
		left += s.MutedText.Render("  " + snap.Identity)
	}
	if snap.HasDataset() {
		left += s.AccentText.Render("  " + snap.Dataset)
	}
	if snap.Filter != "" {
		left += s.FaintText.Render("  " + snap.Filter)
	}

	var right []string
	if !snap.Range.IsZero() {
		right = append(right, s.MutedText.Render(formatRange(snap.Range)))
	}
	right = append(right, s.MutedText.Render("window "+formatWindow(m.currentWindow())))
	if snap.LiveTail {
		right = append(right, s.SuccessText.Render("LIVE"))
	}
	rightText := strings.Join(right, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(rightText) - 2
	if gap < 1 {
		gap = 1
	}
	return s.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + rightText)
}

func (m Model) renderStatus() string {
	s := m.styles
	snap := m.snapshot

	parts := []string{s.StatusStyle(snap.Status).Render(snap.Status.String())}
	if snap.Fetching {
		parts = append(parts, m.spinner.View()+s.MutedText.Render("fetching"))
	}
	if r := snap.Result; r != nil {
		parts = append(parts, s.Text.Render(fmt.Sprintf("%d rows", r.Len())))
		parts = append(parts, s.FaintText.Render(fmt.Sprintf("%s in %s", r.FetchedAt.Local().Format("15:04:05"), r.Took.Round(time.Millisecond))))
	}

	switch {
	case m.notice != "" && m.noticeErr:
		parts = append(parts, s.DangerText.Render(m.notice))
	case snap.LastError != nil:
		parts = append(parts, s.DangerText.Render(snap.LastError.Error()))
	case snap.ExportError != nil:
		parts = append(parts, s.DangerText.Render("export: "+snap.ExportError.Error()))
	case m.notice != "":
		parts = append(parts, s.InfoText.Render(m.notice))
	case snap.SchemaError != nil:
		parts = append(parts, s.WarningText.Render("schema: "+snap.SchemaError.Error()))
	case snap.Schema != nil:
		parts = append(parts, s.FaintText.Render(fmt.Sprintf("%d fields", len(snap.Schema.Fields))))
	}

	return lipgloss.NewStyle().Width(m.width).Render(strings.Join(parts, " "))
}

func (m Model) renderDatasets() string {
	s := m.styles
	height := m.bodyHeight()
	names := m.snapshot.Datasets

	var b strings.Builder
	b.WriteString(s.AccentText.Render("Datasets"))
	b.WriteString("\n")

	if len(names) == 0 {
		switch {
		case m.snapshot.Status == session.StatusError:
			b.WriteString(s.DangerText.Render("Could not load datasets. Press r to retry."))
		case m.snapshot.Status == session.StatusLoading || m.snapshot.Status == session.StatusIdle:
			b.WriteString(m.spinner.View() + s.MutedText.Render("Loading datasets"))
		default:
			b.WriteString(s.MutedText.Render("No datasets"))
		}
		return lipgloss.NewStyle().Height(height).Render(b.String())
	}

	start, end := visibleRange(len(names), m.datasetCursor, height-1)
	width := max(m.width-4, minColWidth)
	for i := start; i < end; i++ {
		marker := "  "
		if names[i] == m.snapshot.Dataset {
			marker = "● "
		}
		line := runewidth.Truncate(marker+names[i], width, "…")
		if i == m.datasetCursor {
			line = s.Selected.Render(runewidth.FillRight(line, width))
		} else {
			line = s.Text.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return lipgloss.NewStyle().Height(height).Render(b.String())
}

func (m Model) renderDetail() string {
	title := "Row"
	if _, level, ok := m.selectedRecord(); ok {
		title = m.styles.LevelStyle(level).Render(fmt.Sprintf("Row %d  %s", m.table.Cursor()+1, level))
	}
	return m.styles.Panel.Width(max(m.width-2, 10)).Render(title + "\n" + m.detail.View())
}

// visibleRange returns the window of n items of the given height that keeps
// cursor in view.
func visibleRange(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	start = max(start, 0)
	start = min(start, n-height)
	return start, start + height
}

func formatRange(r query.TimeRange) string {
	const layout = "Jan 2 15:04:05"
	return r.Start.Local().Format(layout) + " → " + r.End.Local().Format(layout)
}
