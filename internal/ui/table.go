package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/mattn/go-runewidth"

	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/rows"
)

const (
	cellPadding  = 2 // table.DefaultStyles pads each cell by one on either side
	minColWidth  = 6
	maxColWidth  = 48
	sampleRows   = 200
	levelColumn  = 1
	tableChrome  = 2 // header row and its bottom border
	headerHeight = 1
	statusHeight = 1
)

func newTable() table.Model {
	return table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)
}

// levelGlyph marks a row's level in the leading column. Table cells cannot
// carry their own colors without corrupting width calculations.
func levelGlyph(level rows.LevelClass) string {
	switch level {
	case rows.LevelError:
		return "✖"
	case rows.LevelWarning:
		return "▲"
	case rows.LevelInfo:
		return "●"
	case rows.LevelMetric:
		return "◆"
	default:
		return " "
	}
}

// refreshTable rebuilds columns and rows from the rendered result set.
func (m *Model) refreshTable() {
	// Rows must be cleared before the column count changes or the table
	// indexes past the end of a row while re-rendering.
	m.table.SetRows(nil)

	if m.rendered == nil || len(m.rendered.Table.Columns) == 0 {
		m.table.SetColumns([]table.Column{{Title: "", Width: levelColumn}, {Title: "No rows", Width: minColWidth * 2}})
		return
	}

	t := m.rendered.Table
	avail := m.width - levelColumn - cellPadding
	widths := fitColumns(naturalWidths(t), avail)

	cols := []table.Column{{Title: "", Width: levelColumn}}
	visible := make([]int, 0, len(widths))
	for i, w := range widths {
		if w == 0 {
			continue
		}
		visible = append(visible, i)
		cols = append(cols, table.Column{Title: cellText(t.Columns[i].Title, w), Width: w})
	}

	out := make([]table.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(table.Row, 0, len(visible)+1)
		row = append(row, levelGlyph(r.Level))
		for _, i := range visible {
			row = append(row, cellText(r.Cells[i], widths[i]))
		}
		out = append(out, row)
	}

	m.table.SetColumns(cols)
	m.table.SetRows(out)
}

// naturalWidths measures each column's title and a sample of its cells.
func naturalWidths(t rows.Table) []int {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = runewidth.StringWidth(c.Title)
	}
	for n, r := range t.Rows {
		if n >= sampleRows {
			break
		}
		for i, cell := range r.Cells {
			if i >= len(widths) {
				break
			}
			if w := runewidth.StringWidth(flatten(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] = min(max(widths[i], minColWidth), maxColWidth)
	}
	return widths
}

// fitColumns assigns display widths left to right within avail cells. The
// first column that does not fit is shrunk into the remaining space when at
// least minColWidth remains; later columns get width 0 and are hidden. Space
// left over after every column fits goes to the last one.
func fitColumns(natural []int, avail int) []int {
	widths := make([]int, len(natural))
	remaining := avail
	last := -1
	for i, w := range natural {
		cost := w + cellPadding
		if remaining >= cost {
			widths[i] = w
			remaining -= cost
			last = i
			continue
		}
		if remaining-cellPadding >= minColWidth {
			widths[i] = remaining - cellPadding
			remaining = 0
			last = i
		}
		break
	}
	if last >= 0 && remaining > 0 && last == len(natural)-1 {
		widths[last] += remaining
	}
	return widths
}

// cellText flattens control characters and truncates s to width display cells.
func cellText(s string, width int) string {
	return runewidth.Truncate(flatten(s), width, rows.Ellipsis)
}

var flattener = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func flatten(s string) string {
	return flattener.Replace(s)
}

// selectedRecord returns the record under the table cursor.
func (m Model) selectedRecord() (parseable.LogRecord, rows.LevelClass, bool) {
	if m.rendered == nil {
		return parseable.LogRecord{}, rows.LevelNone, false
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rendered.Table.Rows) {
		return parseable.LogRecord{}, rows.LevelNone, false
	}
	r := m.rendered.Table.Rows[idx]
	return r.Record, r.Level, true
}

// layout sizes every component for the current terminal.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	body := m.bodyHeight()
	m.table.SetWidth(m.width)
	m.table.SetHeight(max(body-tableChrome, 1))
	m.detail.Width = max(m.width-4, 10)
	m.detail.Height = max(body-2, 1)
	m.input.Width = max(m.width-12, 10)
	m.help.Width = m.width
	m.refreshTable()
}

// bodyHeight is the space left for the table, picker or detail pane.
func (m Model) bodyHeight() int {
	chrome := headerHeight + statusHeight + m.helpHeight()
	if m.inputActive() {
		chrome++
	}
	return max(m.height-chrome, 3)
}

func (m Model) helpHeight() int {
	if !m.help.ShowAll {
		return 1
	}
	tallest := 0
	for _, col := range m.keys.FullHelp() {
		tallest = max(tallest, len(col))
	}
	return tallest
}

func (m Model) inputActive() bool {
	return m.mode == modeSearch || m.mode == modeExport || m.mode == modeSave
}
