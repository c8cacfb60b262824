package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/plume/internal/prefs"
	"github.com/five82/plume/internal/session"
)

// mode is the active interaction mode.
type mode int

const (
	modeTable mode = iota
	modeDatasets
	modeSearch
	modeExport
	modeSave
	modeDetail
)

// windows are the time spans the window key cycles through.
var windows = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

const defaultWindow = 2

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   *session.Session
	PollTick  time.Duration
	ThemeName string
	Logger    *zerolog.Logger

	// Prefs seeds the theme and the dataset to reopen. Changes are written
	// back to PrefsPath; an empty path disables persistence.
	Prefs     prefs.Prefs
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	sess     *session.Session
	log      zerolog.Logger
	pollTick time.Duration
	keys     keyMap

	prefs     prefs.Prefs
	prefsPath string

	theme  Theme
	styles Styles
	width  int
	height int
	ready  bool
	mode   mode

	snapshot session.Snapshot
	rendered *session.ResultSet

	table   table.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	detail  viewport.Model

	datasetCursor int
	windowIdx     int

	notice    string
	noticeErr bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = 250 * time.Millisecond
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	themeName := opts.ThemeName
	if opts.Prefs.Theme != "" {
		themeName = opts.Prefs.Theme
	}
	theme := GetTheme(themeName)

	input := textinput.New()
	input.Prompt = "/ "
	input.CharLimit = 1024

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		sess:      opts.Session,
		log:       logger.With().Str("component", "ui").Logger(),
		pollTick:  pollTick,
		keys:      DefaultKeyMap(),
		prefs:     opts.Prefs,
		prefsPath: opts.PrefsPath,
		theme:     theme,
		styles:    theme.Styles(),
		mode:      modeDatasets,
		table:     newTable(),
		input:     input,
		spinner:   sp,
		help:      help.New(),
		detail:    viewport.New(0, 0),
		windowIdx: defaultWindow,
	}
	m.applyTheme()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.spinner.Tick,
	}
	if m.sess != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.sess), loadDatasetsCmd(m.ctx, m.sess, m.prefs.Dataset))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.pollTick)}
		if m.sess != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.sess))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Str("action", msg.action).Msg("action failed")
			m.setNotice(msg.action+": "+msg.err.Error(), true)
		}
		if m.sess != nil {
			return m, fetchSnapshotCmd(m.sess)
		}
		return m, nil

	case resumeMsg:
		if msg.err != nil {
			m.setNotice("reopen "+msg.dataset+": "+msg.err.Error(), true)
		}
		m.mode = modeTable
		if m.sess != nil {
			return m, fetchSnapshotCmd(m.sess)
		}
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("path", m.prefsPath).Msg("save preferences")
		}
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.setNotice("export failed: "+msg.err.Error(), true)
		} else {
			m.setNotice("exported to "+msg.path, false)
		}
		if m.sess != nil {
			return m, fetchSnapshotCmd(m.sess)
		}
		return m, nil

	case copyMsg:
		if msg.err != nil {
			m.setNotice("copy failed: "+msg.err.Error(), true)
		} else {
			m.setNotice("copied row as JSON", false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applySnapshot stores the latest session state and rebuilds the table when
// a different result set has been published.
func (m *Model) applySnapshot(snap session.Snapshot) {
	m.snapshot = snap
	if m.datasetCursor >= len(snap.Datasets) {
		m.datasetCursor = max(len(snap.Datasets)-1, 0)
	}
	if snap.Result != m.rendered {
		m.rendered = snap.Result
		m.refreshTable()
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) applyTheme() {
	m.styles = m.theme.Styles()
	ts := table.DefaultStyles()
	ts.Header = m.styles.TableHeader
	ts.Cell = ts.Cell.Foreground(m.styles.Text.GetForeground())
	ts.Selected = m.styles.Selected.Bold(false)
	m.table.SetStyles(ts)
	m.input.PromptStyle = m.styles.AccentText
	m.spinner.Style = m.styles.AccentText
}

// persist writes the current preferences, or returns nil when persistence is
// disabled.
func (m Model) persist() tea.Cmd {
	if m.prefsPath == "" {
		return nil
	}
	return savePrefsCmd(m.prefsPath, m.prefs)
}

// currentWindow returns the span used for new searches.
func (m Model) currentWindow() time.Duration {
	return windows[m.windowIdx]
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, progOpts...)
	_, err := p.Run()
	return err
}
