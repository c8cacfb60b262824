package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/five82/plume/internal/rows"
)

const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"

	maxCellWidth = 60
)

// resolveFormat validates an --output value. Empty picks a table for
// terminals and JSON for pipes.
func resolveFormat(flag string, w io.Writer) (string, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
		if isTerminal(w) {
			return formatTable, nil
		}
		return formatJSON, nil
	case formatTable:
		return formatTable, nil
	case formatJSON:
		return formatJSON, nil
	case formatCSV:
		return formatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output %q (want table, json or csv)", flag)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

var levelColors = map[rows.LevelClass]lipgloss.Color{
	rows.LevelError:   lipgloss.Color("9"),
	rows.LevelWarning: lipgloss.Color("11"),
	rows.LevelInfo:    lipgloss.Color("14"),
	rows.LevelMetric:  lipgloss.Color("13"),
}

// renderTable prints t as a bordered table with rows colored by level.
func renderTable(w io.Writer, t rows.Table) error {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Title
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	tbl := ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(t.Rows) {
				return cellStyle
			}
			if color, ok := levelColors[t.Rows[row].Level]; ok {
				return cellStyle.Foreground(color)
			}
			return cellStyle
		})

	for _, r := range t.Rows {
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			cells[i] = runewidth.Truncate(strings.ReplaceAll(c, "\n", " "), maxCellWidth, rows.Ellipsis)
		}
		tbl.Row(cells...)
	}
	if width := terminalWidth(w); width > 0 {
		tbl.Width(width)
	}

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
