package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/query"
)

type fakeBackend struct {
	mu          sync.Mutex
	listCalls   int
	schemaCalls int
	queryCalls  int
	exportCalls int
	specs       []query.Spec
	exportArgs  exportCall

	list       parseable.DatasetList
	listErr    error
	schemaErr  error
	exportBody string
	exportErr  error
	queryFn    func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error)
}

type exportCall struct {
	dataset string
	filter  string
	rng     query.TimeRange
}

var _ parseable.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) ListDatasets(ctx context.Context) (parseable.DatasetList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeBackend) FetchSchema(ctx context.Context, dataset string) (parseable.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls++
	if f.schemaErr != nil {
		return parseable.Schema{}, f.schemaErr
	}
	return parseable.Schema{Dataset: dataset, Fields: []parseable.SchemaField{{Name: "body"}}}, nil
}

func (f *fakeBackend) RunQuery(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
	f.mu.Lock()
	f.queryCalls++
	f.specs = append(f.specs, spec)
	fn := f.queryFn
	f.mu.Unlock()
	if fn == nil {
		return []parseable.LogRecord{parseable.NewLogRecord("level", "info", "body", "ok")}, nil
	}
	return fn(ctx, spec)
}

func (f *fakeBackend) ExportCSV(ctx context.Context, dataset, filter string, rng query.TimeRange) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportCalls++
	f.exportArgs = exportCall{dataset: dataset, filter: filter, rng: rng}
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return io.NopCloser(strings.NewReader(f.exportBody)), nil
}

func (f *fakeBackend) setQuery(fn func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryFn = fn
}

func (f *fakeBackend) lastExport() exportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exportArgs
}

func (f *fakeBackend) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func (f *fakeBackend) lastSpec() query.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.specs) == 0 {
		return query.Spec{}
	}
	return f.specs[len(f.specs)-1]
}

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, backend *fakeBackend, interval time.Duration) *Session {
	t.Helper()
	s := New(backend, Options{
		PollInterval: interval,
		Now:          func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// blockingQuery blocks every call until release is closed or the call is cancelled.
func blockingQuery(release <-chan struct{}) func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
	return func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
		select {
		case <-release:
			return []parseable.LogRecord{parseable.NewLogRecord("body", "late")}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestLoadDatasets_AuthFailureEntersError(t *testing.T) {
	backend := &fakeBackend{listErr: &parseable.AuthError{Op: "list datasets", Path: "/api/v1/logstream", Status: 401}}
	s := newTestSession(t, backend, time.Hour)

	err := s.LoadDatasets(context.Background())
	var authErr *parseable.AuthError
	require.ErrorAs(t, err, &authErr)

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Empty(t, snap.Datasets)
	assert.False(t, snap.LiveTail)
	assert.ErrorAs(t, snap.LastError, &authErr)
	assert.Equal(t, 0, backend.queries())
}

func TestLoadDatasets_Success(t *testing.T) {
	backend := &fakeBackend{list: parseable.DatasetList{Identity: "admin", Datasets: []string{"web", "audit"}}}
	s := newTestSession(t, backend, time.Hour)

	require.NoError(t, s.LoadDatasets(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, "admin", snap.Identity)
	assert.Equal(t, []string{"web", "audit"}, snap.Datasets)

	snap.Datasets[0] = "mutated"
	assert.Equal(t, "web", s.Snapshot().Datasets[0], "snapshot must be a copy")
}

func TestSelectDataset_FetchesDefaultWindow(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)

	require.NoError(t, s.SelectDataset(context.Background(), "web-logs"))

	snap := s.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "web-logs", snap.Dataset)
	assert.Equal(t, "", snap.Filter)
	assert.False(t, snap.Fetching)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 1, snap.Result.Len())

	spec := backend.lastSpec()
	assert.Equal(t, "2024-01-01T11:30:00Z", spec.StartTime)
	assert.Equal(t, "2024-01-01T12:00:00Z", spec.EndTime)
	assert.True(t, strings.HasSuffix(spec.Query, "ORDER BY p_timestamp DESC LIMIT 100"))

	assert.Eventually(t, func() bool { return s.Snapshot().Schema != nil }, time.Second, 5*time.Millisecond)
}

func TestSelectDataset_FailureClearsResult(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	backend.setQuery(func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
		return nil, &parseable.TransportError{Op: "run query", Path: "/api/v1/query", Status: 500}
	})
	err := s.SelectDataset(context.Background(), "audit")
	var transportErr *parseable.TransportError
	require.ErrorAs(t, err, &transportErr)

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "audit", snap.Dataset)
}

func TestSelectDataset_SchemaFailureIsSeparate(t *testing.T) {
	backend := &fakeBackend{schemaErr: errors.New("schema unavailable")}
	s := newTestSession(t, backend, time.Hour)

	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	assert.Eventually(t, func() bool { return s.Snapshot().SchemaError != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusReady, s.Snapshot().Status)
}

func TestSearch_RequiresDatasetAndValidRange(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, time.Hour)
	assert.ErrorIs(t, s.Search(context.Background(), "x", query.TimeRange{}), ErrNoDataset)

	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	inverted := query.TimeRange{Start: fixedNow, End: fixedNow.Add(-time.Minute)}
	assert.ErrorIs(t, s.Search(context.Background(), "x", inverted), query.ErrInvalidRange)
	assert.Equal(t, "", s.Snapshot().Filter, "rejected search must not change state")
}

func TestSearch_StopsLiveTail(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Search(context.Background(), "status>=400", query.TimeRange{}))
	snap := s.Snapshot()
	assert.False(t, snap.LiveTail)
	assert.Equal(t, "status>=400", snap.Filter)
	assert.Contains(t, backend.lastSpec().Query, "WHERE status>=400 AND")
}

func TestSetLiveTail_RequiresDataset(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, time.Hour)
	assert.ErrorIs(t, s.SetLiveTail(true), ErrNoDataset)
	assert.NoError(t, s.SetLiveTail(false))
}

func TestLiveTail_DropsTicksWhileFetchOutstanding(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	release := make(chan struct{})
	backend.setQuery(blockingQuery(release))
	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() == 2 }, time.Second, 5*time.Millisecond)

	pollCtx := s.currentPollCtx()
	require.NotNil(t, pollCtx)
	const ticks = 5
	for i := 0; i < ticks; i++ {
		assert.False(t, s.tick(pollCtx), "tick %d should be dropped", i)
	}
	assert.Equal(t, 2, backend.queries(), "ticks while in flight must not reach the backend")

	close(release)
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.Fetching && snap.Status == StatusReady
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.tick(pollCtx), "tick after completion should fetch")
}

func TestLiveTail_SlidesWindow(t *testing.T) {
	now := fixedNow
	var mu sync.Mutex
	backend := &fakeBackend{}
	s := New(backend, Options{
		PollInterval: time.Hour,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	})
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()

	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2024-01-01T11:40:00Z", backend.lastSpec().StartTime)
	assert.Equal(t, "2024-01-01T12:10:00Z", backend.lastSpec().EndTime)
}

func TestLiveTail_ErrorStopsPolling(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, 5*time.Millisecond)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	backend.setQuery(func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
		return nil, &parseable.FormatError{Op: "run query", Expectation: "expected an array of records"}
	})
	require.NoError(t, s.SetLiveTail(true))

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.LiveTail && snap.Status == StatusError
	}, time.Second, 5*time.Millisecond)

	calls := backend.queries()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, backend.queries(), "polling must stop after a failure")

	var formatErr *parseable.FormatError
	assert.ErrorAs(t, s.Snapshot().LastError, &formatErr)
}

func TestLiveTailOff_InFlightFetchStillApplies(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	release := make(chan struct{})
	backend.setQuery(blockingQuery(release))
	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetLiveTail(false))
	close(release)

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		if snap.Result == nil || snap.Result.Len() != 1 {
			return false
		}
		return snap.Result.Table.Rows[0].Cells[snap.Result.Table.Index("body")] == "late"
	}, time.Second, 5*time.Millisecond)
	assert.False(t, s.Snapshot().LiveTail)
}

func TestSearch_SupersededResultIsDiscarded(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	slowRelease := make(chan struct{})
	backend.setQuery(func(ctx context.Context, spec query.Spec) ([]parseable.LogRecord, error) {
		if strings.Contains(spec.Query, "slow") {
			<-slowRelease
			return []parseable.LogRecord{parseable.NewLogRecord("body", "old")}, nil
		}
		return []parseable.LogRecord{parseable.NewLogRecord("body", "new")}, nil
	})

	slowDone := make(chan error, 1)
	go func() { slowDone <- s.Search(context.Background(), "slow", query.TimeRange{}) }()
	assert.Eventually(t, func() bool { return backend.queries() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Search(context.Background(), "fast", query.TimeRange{}))
	close(slowRelease)
	require.NoError(t, <-slowDone)

	snap := s.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, "fast", snap.Result.Filter)
	assert.Equal(t, "new", snap.Result.Table.Rows[0].Cells[snap.Result.Table.Index("body")])
	assert.Equal(t, StatusReady, snap.Status)
}

func TestClose_StopsPollingDeterministically(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, Options{PollInterval: 2 * time.Millisecond})
	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, s.Close())
	calls := backend.queries()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, backend.queries(), "no backend calls after teardown")

	assert.ErrorIs(t, s.SetLiveTail(true), ErrClosed)
	assert.ErrorIs(t, s.Search(context.Background(), "", query.TimeRange{}), ErrClosed)
	assert.ErrorIs(t, s.LoadDatasets(context.Background()), ErrClosed)
	_, err := s.Export(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close(), "Close is idempotent")
}

func TestClose_CancelsOutstandingFetch(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, Options{PollInterval: time.Hour})
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	backend.setQuery(blockingQuery(make(chan struct{})))
	require.NoError(t, s.SetLiveTail(true))
	assert.Eventually(t, func() bool { return backend.queries() == 2 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a fetch was outstanding")
	}
	assert.False(t, s.Snapshot().Fetching)
}

func TestExport_WritesFileAndKeepsState(t *testing.T) {
	backend := &fakeBackend{exportBody: "a,b\n1,2\n"}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	before := s.Snapshot()

	path := filepath.Join(t.TempDir(), "web-logs.csv")
	got, err := s.Export(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	after := s.Snapshot()
	assert.Equal(t, path, after.LastExport)
	assert.Same(t, before.Result, after.Result)
	assert.Equal(t, exportCall{dataset: "web", rng: before.Range}, backend.lastExport())
}

func TestExport_UsesSearchFilterAndRange(t *testing.T) {
	backend := &fakeBackend{exportBody: "a\n"}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	rng := query.TimeRange{
		Start: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Search(context.Background(), "timeout", rng))

	_, err := s.Export(context.Background(), filepath.Join(t.TempDir(), "web.csv"))
	require.NoError(t, err)
	assert.Equal(t, exportCall{dataset: "web", filter: "timeout", rng: rng}, backend.lastExport())
}

func TestExport_FailureLeavesResultAndLiveTail(t *testing.T) {
	backend := &fakeBackend{exportErr: &parseable.TransportError{Op: "export csv", Path: "/x", Status: 502}}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	require.NoError(t, s.SetLiveTail(true))
	before := s.Snapshot()

	_, err := s.Export(context.Background(), filepath.Join(t.TempDir(), "x.csv"))
	var transportErr *parseable.TransportError
	require.ErrorAs(t, err, &transportErr)

	after := s.Snapshot()
	assert.True(t, after.LiveTail)
	assert.NotNil(t, after.ExportError)
	assert.NotEqual(t, StatusError, after.Status)
	assert.Equal(t, before.Dataset, after.Dataset)
}

func TestExport_DefaultFileName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	backend := &fakeBackend{exportBody: "x\n"}
	s := newTestSession(t, backend, time.Hour)
	require.NoError(t, s.SelectDataset(context.Background(), "web"))

	path, err := s.Export(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "web-logs.csv", path)
	_, err = os.Stat(filepath.Join(dir, "web-logs.csv"))
	assert.NoError(t, err)
}

func TestExportResult(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, time.Hour)
	_, err := s.ExportResult(filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, ErrNoResult)

	require.NoError(t, s.SelectDataset(context.Background(), "web"))
	path := filepath.Join(t.TempDir(), "rows.json")
	_, err = s.ExportResult(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"level":"info","body":"ok"}`)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "error", StatusError.String())
}
