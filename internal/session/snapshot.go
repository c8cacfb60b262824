package session

import (
	"time"

	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/rows"
)

// Status is the fetch state of a session.
type Status int

const (
	// StatusIdle means no dataset has been fetched yet.
	StatusIdle Status = iota
	// StatusLoading means a fetch is outstanding.
	StatusLoading
	// StatusReady means the last fetch produced the current result.
	StatusReady
	// StatusError means the last fetch failed; LastError holds why.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// ResultSet is the outcome of one successful fetch. It is never modified after
// it is published.
type ResultSet struct {
	Table     rows.Table
	Spec      query.Spec
	Filter    string
	Range     query.TimeRange
	FetchedAt time.Time
	Took      time.Duration
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return r.Table.Len()
}

// Snapshot is a copy of the session state for presentation.
type Snapshot struct {
	ID       string
	Status   Status
	Identity string
	Datasets []string

	Dataset  string
	Filter   string
	Range    query.TimeRange
	LiveTail bool
	Fetching bool

	Result      *ResultSet
	Schema      *parseable.Schema
	SchemaError error
	LastError   error
	ExportError error
	LastExport  string

	LastUpdated time.Time
}

// HasDataset reports whether a dataset is selected.
func (s Snapshot) HasDataset() bool {
	return s.Dataset != ""
}

func (s Snapshot) clone() Snapshot {
	dup := s
	if len(s.Datasets) > 0 {
		dup.Datasets = make([]string, len(s.Datasets))
		copy(dup.Datasets, s.Datasets)
	} else {
		dup.Datasets = nil
	}
	return dup
}
