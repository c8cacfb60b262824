package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/plume/internal/export"
	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/rows"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputActive() {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.applyTheme()
		m.prefs.Theme = m.theme.Name
		m.setNotice("theme: "+m.theme.Name, false)
		return m, m.persist()
	}

	switch m.mode {
	case modeDatasets:
		return m.handleDatasetsKey(msg)
	case modeDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleTableKey(msg)
	}
}

func (m Model) handleDatasetsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snapshot.Datasets)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.datasetCursor > 0 {
			m.datasetCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.datasetCursor < n-1 {
			m.datasetCursor++
		}
	case key.Matches(msg, m.keys.Top):
		m.datasetCursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.datasetCursor = max(n-1, 0)
	case key.Matches(msg, m.keys.Refresh):
		if m.sess != nil {
			return m, loadDatasetsCmd(m.ctx, m.sess, "")
		}
	case key.Matches(msg, m.keys.Confirm):
		if n == 0 || m.sess == nil {
			return m, nil
		}
		name := m.snapshot.Datasets[m.datasetCursor]
		m.mode = modeTable
		m.windowIdx = defaultWindow
		m.setNotice("", false)
		m.prefs.Dataset = name
		sel := selectDatasetCmd(m.ctx, m.sess, name)
		if save := m.persist(); save != nil {
			return m, tea.Batch(sel, save)
		}
		return m, sel
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Datasets):
		if m.snapshot.HasDataset() {
			m.mode = modeTable
		}
	}
	return m, nil
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Datasets):
		m.mode = modeDatasets
		for i, name := range m.snapshot.Datasets {
			if name == m.snapshot.Dataset {
				m.datasetCursor = i
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		return m.openInput(modeSearch, "/ ", m.snapshot.Filter)

	case key.Matches(msg, m.keys.LiveTail):
		if m.sess == nil {
			return m, nil
		}
		on, err := m.sess.ToggleLiveTail()
		switch {
		case err != nil:
			m.setNotice("live tail: "+err.Error(), true)
		case on:
			m.setNotice("live tail on", false)
		default:
			m.setNotice("live tail off", false)
		}
		return m, fetchSnapshotCmd(m.sess)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.search(m.snapshot.Filter)

	case key.Matches(msg, m.keys.CycleWindow):
		m.windowIdx = (m.windowIdx + 1) % len(windows)
		m.setNotice("window: last "+formatWindow(m.currentWindow()), false)
		if !m.snapshot.HasDataset() {
			return m, nil
		}
		return m, m.search(m.snapshot.Filter)

	case key.Matches(msg, m.keys.Export):
		if !m.snapshot.HasDataset() {
			m.setNotice("select a dataset first", true)
			return m, nil
		}
		return m.openInput(modeExport, "export to ", export.DefaultFileName(m.snapshot.Dataset))

	case key.Matches(msg, m.keys.SaveTable):
		if m.rendered == nil {
			m.setNotice("no rows to save", true)
			return m, nil
		}
		return m.openInput(modeSave, "save rows to ", defaultSaveName(m.snapshot.Dataset))

	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()

	case key.Matches(msg, m.keys.Detail):
		if !m.openDetail() {
			return m, nil
		}
		m.mode = modeDetail
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Detail):
		m.mode = modeTable
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		return m.closeInput(), nil
	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		submitted := m.mode
		m = m.closeInput()
		switch submitted {
		case modeSearch:
			return m, m.search(value)
		case modeExport:
			if m.sess == nil {
				return m, nil
			}
			m.setNotice("exporting…", false)
			return m, exportCmd(m.ctx, m.sess, value)
		case modeSave:
			if m.sess == nil {
				return m, nil
			}
			return m, saveTableCmd(m.sess, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) openInput(md mode, prompt, value string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	m.layout()
	return m, textinput.Blink
}

func (m Model) closeInput() Model {
	m.input.Blur()
	m.mode = modeTable
	m.layout()
	return m
}

// search re-queries the selected dataset over the current window ending now.
func (m Model) search(filter string) tea.Cmd {
	if m.sess == nil {
		return nil
	}
	return searchCmd(m.ctx, m.sess, filter, query.Last(time.Now(), m.currentWindow()))
}

func (m *Model) copySelected() tea.Cmd {
	rec, _, ok := m.selectedRecord()
	if !ok {
		m.setNotice("no row selected", true)
		return nil
	}
	data, err := rows.RecordJSON(rec, true)
	if err != nil {
		m.setNotice("copy failed: "+err.Error(), true)
		return nil
	}
	return copyCmd(string(data))
}

// openDetail loads the selected record into the detail viewport.
func (m *Model) openDetail() bool {
	rec, _, ok := m.selectedRecord()
	if !ok {
		return false
	}
	data, err := rows.RecordJSON(rec, true)
	if err != nil {
		m.setNotice("render row: "+err.Error(), true)
		return false
	}
	m.detail.SetContent(string(data))
	m.detail.GotoTop()
	return true
}

func defaultSaveName(dataset string) string {
	name := export.DefaultFileName(dataset)
	return strings.TrimSuffix(name, "-logs.csv") + "-rows.csv"
}

func formatWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return strings.TrimSuffix(d.String(), "0m0s")
	case d%time.Minute == 0:
		return strings.TrimSuffix(d.String(), "0s")
	default:
		return d.String()
	}
}
