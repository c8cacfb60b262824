// Package ui provides the interactive terminal interface for plume.
//
// The UI is a Bubble Tea program that only presents state. It owns no
// fetch logic: every intent (select a dataset, search, toggle live tail,
// export) is forwarded to a session.Session, and the screen is redrawn from
// session snapshots read on a short tick.
//
// # Package Structure
//
//   - ui.go: Model, Options, message dispatch and Run
//   - commands.go: tea.Cmd wrappers around session calls
//   - input.go: key handling per mode
//   - table.go: result set to bubbles table conversion and column fitting
//   - view.go: header, status line, dataset picker and row detail rendering
//   - keys.go: key bindings and help
//   - theme.go: color themes and lipgloss styles
//
// # Modes
//
// The model starts in the dataset picker. Choosing a dataset switches to the
// row table. From there / edits the filter, enter opens the selected row as
// JSON, x exports the dataset through the backend and s saves the rows on
// screen. Text prompts capture every key until enter or esc.
//
// # Rendering
//
// The table is rebuilt only when the session publishes a new result set,
// detected by pointer identity. Columns are sized to the widest of a sample
// of cells, capped, and fitted left to right; columns that do not fit are
// hidden. Row levels appear as a glyph in the leading column.
package ui
