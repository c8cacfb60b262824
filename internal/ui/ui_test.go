package ui

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/prefs"
	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/rows"
	"github.com/five82/plume/internal/session"
)

type stubBackend struct {
	mu    sync.Mutex
	specs []query.Spec
}

func (b *stubBackend) ListDatasets(context.Context) (parseable.DatasetList, error) {
	return parseable.DatasetList{Identity: "tester", Datasets: []string{"app", "web"}}, nil
}

func (b *stubBackend) FetchSchema(_ context.Context, dataset string) (parseable.Schema, error) {
	return parseable.Schema{Dataset: dataset}, nil
}

func (b *stubBackend) RunQuery(_ context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
	b.mu.Lock()
	b.specs = append(b.specs, spec)
	b.mu.Unlock()
	return []parseable.LogRecord{
		parseable.NewLogRecord("p_timestamp", "2024-01-01T12:00:00Z", "level", "error", "body", "boom"),
		parseable.NewLogRecord("p_timestamp", "2024-01-01T11:59:00Z", "level", "info", "body", "ok"),
	}, nil
}

func (b *stubBackend) ExportCSV(context.Context, string, string, query.TimeRange) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("a,b\n")), nil
}

func (b *stubBackend) lastSpec() query.Spec {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.specs) == 0 {
		return query.Spec{}
	}
	return b.specs[len(b.specs)-1]
}

func newTestModel(t *testing.T) (Model, *session.Session, *stubBackend) {
	t.Helper()
	backend := &stubBackend{}
	sess := session.New(backend, session.Options{PollInterval: time.Hour})
	t.Cleanup(func() { _ = sess.Close() })

	m := New(Options{Session: sess})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model), sess, backend
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Nightfox Kanagawa Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Nightfox"); got != "Kanagawa" {
		t.Fatalf("NextTheme(Nightfox) = %q, want Kanagawa", got)
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q, want Nightfox", got)
	}
	if got := NextTheme("Unknown"); got != "Nightfox" {
		t.Fatalf("NextTheme(Unknown) = %q, want Nightfox", got)
	}
}

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox", got)
	}
}

func TestLevelStyle_UnclassifiedUsesText(t *testing.T) {
	th := GetTheme("Slate")
	s := th.Styles()
	if got := s.LevelStyle(rows.LevelNone).GetForeground(); got != s.Text.GetForeground() {
		t.Fatalf("LevelStyle(none) foreground = %v, want text %v", got, s.Text.GetForeground())
	}
	if got := s.LevelStyle(rows.LevelError).GetForeground(); got != s.DangerText.GetForeground() {
		t.Fatalf("LevelStyle(error) foreground = %v, want danger %v", got, s.DangerText.GetForeground())
	}
}

func TestFitColumns(t *testing.T) {
	tests := []struct {
		name    string
		natural []int
		avail   int
		want    []int
	}{
		{"leftover goes to last", []int{10, 10}, 30, []int{10, 16}},
		{"shrinks first overflow", []int{10, 30}, 25, []int{10, 11}},
		{"hides what cannot fit", []int{19, 10, 30}, 40, []int{19, 10, 0}},
		{"no space", []int{10}, 4, []int{0}},
	}
	for _, tt := range tests {
		got := fitColumns(tt.natural, tt.avail)
		if len(got) != len(tt.want) {
			t.Fatalf("%s: fitColumns = %v, want %v", tt.name, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("%s: fitColumns = %v, want %v", tt.name, got, tt.want)
			}
		}
	}
}

func TestCellText_FlattensAndTruncates(t *testing.T) {
	if got := cellText("a\nb\tc", 10); got != "a b c" {
		t.Fatalf("cellText = %q, want %q", got, "a b c")
	}
	if got := cellText("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("cellText = %q, want %q", got, "abcd…")
	}
}

func TestRefreshTable_ShrinkingColumnsKeepsRowsAligned(t *testing.T) {
	m, _, _ := newTestModel(t)

	wide := rows.Normalize([]parseable.LogRecord{
		parseable.NewLogRecord("p_timestamp", "2024-01-01T12:00:00Z", "level", "info", "host", "a", "body", "x"),
	})
	m.applySnapshot(session.Snapshot{Result: &session.ResultSet{Table: wide}})
	if got := len(m.table.Columns()); got != len(wide.Columns)+1 {
		t.Fatalf("columns = %d, want %d", got, len(wide.Columns)+1)
	}

	narrow := rows.Normalize([]parseable.LogRecord{parseable.NewLogRecord("body", "y")})
	m.applySnapshot(session.Snapshot{Result: &session.ResultSet{Table: narrow}})
	cols := m.table.Columns()
	for _, r := range m.table.Rows() {
		if len(r) != len(cols) {
			t.Fatalf("row has %d cells, want %d", len(r), len(cols))
		}
	}
	_ = m.View()
}

func TestDatasetPicker_SelectsDataset(t *testing.T) {
	m, sess, backend := newTestModel(t)
	if err := sess.LoadDatasets(context.Background()); err != nil {
		t.Fatalf("LoadDatasets returned error: %v", err)
	}
	m.applySnapshot(sess.Snapshot())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeTable {
		t.Fatalf("mode = %v, want table", m.mode)
	}
	if cmd == nil {
		t.Fatalf("enter returned nil cmd, want select command")
	}
	if msg, ok := cmd().(actionMsg); !ok || msg.err != nil {
		t.Fatalf("select msg = %#v, want successful actionMsg", msg)
	}
	if got := sess.Snapshot().Dataset; got != "web" {
		t.Fatalf("Dataset = %q, want web", got)
	}
	if got := backend.lastSpec().Dataset; got != "web" {
		t.Fatalf("query dataset = %q, want web", got)
	}
}

func TestSearchPrompt_SubmitsFilter(t *testing.T) {
	m, sess, backend := newTestModel(t)
	if err := sess.SelectDataset(context.Background(), "app"); err != nil {
		t.Fatalf("SelectDataset returned error: %v", err)
	}
	m.applySnapshot(sess.Snapshot())
	m.mode = modeTable

	m, _ = press(t, m, runes("/"))
	if m.mode != modeSearch {
		t.Fatalf("mode = %v, want search", m.mode)
	}
	m, _ = press(t, m, runes("quota"))
	if got := m.input.Value(); got != "quota" {
		t.Fatalf("input = %q, want quota (q must not quit while typing)", got)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeTable {
		t.Fatalf("mode = %v, want table after submit", m.mode)
	}
	if msg, ok := cmd().(actionMsg); !ok || msg.err != nil {
		t.Fatalf("search msg = %#v, want successful actionMsg", msg)
	}
	if got := sess.Snapshot().Filter; got != "quota" {
		t.Fatalf("Filter = %q, want quota", got)
	}
	if q := backend.lastSpec().Query; !strings.Contains(q, "'%quota%'") {
		t.Fatalf("query = %q, want text predicate", q)
	}
}

func TestSearchPrompt_EscapeCancels(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.mode = modeTable

	m, _ = press(t, m, runes("/"))
	m, _ = press(t, m, runes("abc"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeTable || cmd != nil {
		t.Fatalf("mode/cmd = %v/%v, want table/nil", m.mode, cmd)
	}
}

func TestLiveTail_RequiresDataset(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.mode = modeTable

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !m.noticeErr || !strings.Contains(m.notice, "live tail") {
		t.Fatalf("notice = %q (err=%v), want live tail error", m.notice, m.noticeErr)
	}
}

func TestLiveTail_TogglesOnSession(t *testing.T) {
	m, sess, _ := newTestModel(t)
	if err := sess.SelectDataset(context.Background(), "app"); err != nil {
		t.Fatalf("SelectDataset returned error: %v", err)
	}
	m.applySnapshot(sess.Snapshot())
	m.mode = modeTable

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !sess.Snapshot().LiveTail {
		t.Fatalf("LiveTail = false, want true")
	}
	_, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if sess.Snapshot().LiveTail {
		t.Fatalf("LiveTail = true, want false after second toggle")
	}
}

func TestQuitKey(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.mode = modeTable
	_, cmd := press(t, m, runes("q"))
	if cmd == nil {
		t.Fatalf("q returned nil cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q cmd did not quit")
	}
}

func TestDetail_ShowsSelectedRecord(t *testing.T) {
	m, sess, _ := newTestModel(t)
	if err := sess.SelectDataset(context.Background(), "app"); err != nil {
		t.Fatalf("SelectDataset returned error: %v", err)
	}
	m.applySnapshot(sess.Snapshot())
	m.mode = modeTable

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != modeDetail {
		t.Fatalf("mode = %v, want detail", m.mode)
	}
	if view := m.detail.View(); !strings.Contains(view, `"body": "boom"`) {
		t.Fatalf("detail = %q, want first record JSON", view)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeTable {
		t.Fatalf("mode = %v, want table after esc", m.mode)
	}
}

func TestActionError_SetsNotice(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(actionMsg{action: "search", err: errors.New("nope")})
	m = next.(Model)
	if !m.noticeErr || m.notice != "search: nope" {
		t.Fatalf("notice = %q (err=%v), want search: nope", m.notice, m.noticeErr)
	}
}

func TestSaveTable_WithoutRowsIsRefused(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.mode = modeTable
	m, _ = press(t, m, runes("s"))
	if m.mode != modeTable || !m.noticeErr {
		t.Fatalf("mode/noticeErr = %v/%v, want table/true", m.mode, m.noticeErr)
	}
}

func TestHelpers(t *testing.T) {
	if got := defaultSaveName("web"); got != "web-rows.csv" {
		t.Fatalf("defaultSaveName = %q, want web-rows.csv", got)
	}
	for d, want := range map[time.Duration]string{
		5 * time.Minute:  "5m",
		time.Hour:        "1h",
		24 * time.Hour:   "24h",
		90 * time.Second: "1m30s",
	} {
		if got := formatWindow(d); got != want {
			t.Fatalf("formatWindow(%v) = %q, want %q", d, got, want)
		}
	}
	if start, end := visibleRange(100, 50, 10); start != 45 || end != 55 {
		t.Fatalf("visibleRange = %d..%d, want 45..55", start, end)
	}
	if start, end := visibleRange(5, 4, 10); start != 0 || end != 5 {
		t.Fatalf("visibleRange short = %d..%d, want 0..5", start, end)
	}
}

func TestLoadDatasets_ResumesRememberedDataset(t *testing.T) {
	m, sess, _ := newTestModel(t)

	msg := loadDatasetsCmd(context.Background(), sess, "web")()
	resume, ok := msg.(resumeMsg)
	if !ok || resume.err != nil || resume.dataset != "web" {
		t.Fatalf("msg = %#v, want successful resumeMsg for web", msg)
	}
	next, _ := m.Update(msg)
	if got := next.(Model).mode; got != modeTable {
		t.Fatalf("mode = %v, want table after resume", got)
	}
	if got := sess.Snapshot().Dataset; got != "web" {
		t.Fatalf("Dataset = %q, want web", got)
	}
}

func TestLoadDatasets_SkipsForgottenDataset(t *testing.T) {
	_, sess, backend := newTestModel(t)

	msg := loadDatasetsCmd(context.Background(), sess, "gone")()
	if action, ok := msg.(actionMsg); !ok || action.err != nil {
		t.Fatalf("msg = %#v, want successful actionMsg", msg)
	}
	if sess.Snapshot().HasDataset() {
		t.Fatalf("dataset selected, want none")
	}
	if got := backend.lastSpec(); got != (query.Spec{}) {
		t.Fatalf("query ran: %+v", got)
	}
}

func TestCycleTheme_PersistsPreference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	m := New(Options{Prefs: prefs.Prefs{Theme: "Slate"}, PrefsPath: path})
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate from prefs", m.theme.Name)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	m, cmd := press(t, m, runes("T"))
	if m.theme.Name != "Nightfox" {
		t.Fatalf("theme = %q, want Nightfox", m.theme.Name)
	}
	if cmd == nil {
		t.Fatalf("theme cycle returned nil cmd, want save")
	}
	if saved, ok := cmd().(prefsSavedMsg); !ok || saved.err != nil {
		t.Fatalf("save msg = %#v, want success", saved)
	}
	if got := prefs.Load(path).Theme; got != "Nightfox" {
		t.Fatalf("saved theme = %q, want Nightfox", got)
	}
}
