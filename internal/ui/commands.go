package ui

import (
	"context"
	"slices"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/plume/internal/prefs"
	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/session"
)

// Message types
type (
	tickMsg     time.Time
	snapshotMsg session.Snapshot

	actionMsg struct {
		action string
		err    error
	}

	exportMsg struct {
		path string
		err  error
	}

	copyMsg struct {
		err error
	}

	resumeMsg struct {
		dataset string
		err     error
	}

	prefsSavedMsg struct {
		err error
	}
)

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(s.Snapshot())
	}
}

// loadDatasetsCmd lists datasets and, when resume is still listed, selects it.
func loadDatasetsCmd(ctx context.Context, s *session.Session, resume string) tea.Cmd {
	return func() tea.Msg {
		if err := s.LoadDatasets(ctx); err != nil {
			return actionMsg{action: "load datasets", err: err}
		}
		snap := s.Snapshot()
		if resume == "" || snap.HasDataset() || !slices.Contains(snap.Datasets, resume) {
			return actionMsg{action: "load datasets"}
		}
		return resumeMsg{dataset: resume, err: s.SelectDataset(ctx, resume)}
	}
}

func selectDatasetCmd(ctx context.Context, s *session.Session, name string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: "select " + name, err: s.SelectDataset(ctx, name)}
	}
}

func searchCmd(ctx context.Context, s *session.Session, filter string, rng query.TimeRange) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: "search", err: s.Search(ctx, filter, rng)}
	}
}

func exportCmd(ctx context.Context, s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		written, err := s.Export(ctx, path)
		return exportMsg{path: written, err: err}
	}
}

func saveTableCmd(s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		written, err := s.ExportResult(path)
		return exportMsg{path: written, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copyMsg{err: clipboard.WriteAll(text)}
	}
}

func savePrefsCmd(path string, p prefs.Prefs) tea.Cmd {
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path, p)}
	}
}
