package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/five82/plume/internal/export"
	"github.com/five82/plume/internal/parseable"
	"github.com/five82/plume/internal/query"
)

var (
	// ErrClosed is returned by every method once Close has been called.
	ErrClosed = errors.New("session is closed")
	// ErrNoDataset is returned by operations that need a selected dataset.
	ErrNoDataset = errors.New("no dataset selected")
	// ErrNoResult is returned by ExportResult before any fetch succeeded.
	ErrNoResult = errors.New("no result set to export")
)

const (
	// DefaultPollInterval is the live-tail tick period.
	DefaultPollInterval = 3 * time.Second
	// DefaultLimit caps the rows fetched per query.
	DefaultLimit = 100
	// DefaultSelectWindow is the range set when a dataset is selected.
	DefaultSelectWindow = 30 * time.Minute
)

// Options configure a Session. Zero values use the defaults.
type Options struct {
	PollInterval time.Duration
	Limit        int
	SelectWindow time.Duration
	Logger       *zerolog.Logger
	Now          func() time.Time
}

// Session owns the dataset, filter, time range and live-tail state of one
// view and supervises every fetch made on its behalf. All methods are safe for
// concurrent use.
type Session struct {
	id       string
	backend  parseable.Backend
	interval time.Duration
	limit    int
	window   time.Duration
	now      func() time.Time
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	snap        Snapshot
	closed      bool
	gen         uint64
	cancelFetch context.CancelFunc
	pollCtx     context.Context
	stopPoll    context.CancelFunc
	schemaSeq   uint64
	stopSchema  context.CancelFunc
}

// New creates an idle session backed by backend.
func New(backend parseable.Backend, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.SelectWindow <= 0 {
		opts.SelectWindow = DefaultSelectWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		backend:  backend,
		interval: opts.PollInterval,
		limit:    opts.Limit,
		window:   opts.SelectWindow,
		now:      opts.Now,
		log:      logger.With().Str("session", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		snap:     Snapshot{ID: id, Status: StatusIdle},
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// LoadDatasets refreshes the dataset list and the caller identity. On failure
// the list is cleared and the session enters StatusError.
func (s *Session) LoadDatasets(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	opCtx, _, release := s.acquireLocked(ctx)
	s.mu.Unlock()
	defer release()

	list, err := s.backend.ListDatasets(opCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.snap.LastUpdated = s.now()
	if err != nil {
		s.snap.Datasets = nil
		s.snap.Status = StatusError
		s.snap.LastError = err
		s.log.Warn().Err(err).Msg("dataset list failed")
		return err
	}
	s.snap.Identity = list.Identity
	s.snap.Datasets = list.Datasets
	if s.snap.Dataset == "" {
		s.snap.Status = StatusIdle
		s.snap.LastError = nil
	}
	s.log.Debug().Int("datasets", len(list.Datasets)).Str("identity", list.Identity).Msg("datasets loaded")
	return nil
}

// SelectDataset makes name current, resets the filter to empty and the range
// to the selection window ending now, then fetches. Live tail is stopped. The
// schema is fetched in the background.
func (s *Session) SelectDataset(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoDataset
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopPollLocked()
	s.snap.Dataset = name
	s.snap.Filter = ""
	s.snap.Range = query.Last(s.now(), s.window)
	s.snap.Result = nil
	s.snap.LastError = nil
	s.snap.ExportError = nil
	s.startSchemaLocked(name)

	req := s.requestLocked()
	run, err := s.beginFetchLocked(ctx, req)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.log.Info().Str("dataset", name).Msg("dataset selected")
	return run()
}

// Search fetches with filter and rng on the current dataset. A zero rng keeps
// the current range. Live tail is stopped first.
func (s *Session) Search(ctx context.Context, filter string, rng query.TimeRange) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.snap.Dataset == "" {
		s.mu.Unlock()
		return ErrNoDataset
	}
	if rng.IsZero() {
		rng = s.snap.Range
	}
	rng = rng.OrDefault(s.now())
	if err := rng.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.stopPollLocked()
	s.snap.Filter = strings.TrimSpace(filter)
	s.snap.Range = rng

	req := s.requestLocked()
	run, err := s.beginFetchLocked(ctx, req)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return run()
}

// SetLiveTail starts or stops polling. Turning it on fetches immediately and
// then every poll interval; turning it off lets an in-flight fetch finish.
func (s *Session) SetLiveTail(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !on {
		if s.snap.LiveTail {
			s.log.Info().Str("dataset", s.snap.Dataset).Msg("live tail stopped")
		}
		s.stopPollLocked()
		return nil
	}
	if s.snap.Dataset == "" {
		return ErrNoDataset
	}
	if s.snap.LiveTail {
		return nil
	}

	pollCtx, stop := context.WithCancel(s.ctx)
	s.pollCtx = pollCtx
	s.stopPoll = stop
	s.snap.LiveTail = true
	s.wg.Add(1)
	go s.poll(pollCtx)
	s.log.Info().Str("dataset", s.snap.Dataset).Dur("interval", s.interval).Msg("live tail started")
	return nil
}

// ToggleLiveTail flips the live-tail flag.
func (s *Session) ToggleLiveTail() (bool, error) {
	on := !s.Snapshot().LiveTail
	if err := s.SetLiveTail(on); err != nil {
		return false, err
	}
	return on, nil
}

// Export streams the backend CSV for the current dataset, filter and time
// range into path.
// An empty path uses the default file name. Failures are recorded in
// ExportError and leave the result set and live tail untouched.
func (s *Session) Export(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	dataset, filter, rng := s.snap.Dataset, s.snap.Filter, s.snap.Range
	if dataset == "" {
		s.mu.Unlock()
		return "", ErrNoDataset
	}
	if strings.TrimSpace(path) == "" {
		path = export.DefaultFileName(dataset)
	}
	opCtx, _, release := s.acquireLocked(ctx)
	s.mu.Unlock()

	err := s.exportStream(opCtx, dataset, filter, rng, path)
	release()
	return path, s.finishExport(dataset, path, err)
}

// ExportResult writes the current result set to path as CSV, or JSON for a
// ".json" name, without contacting the backend.
func (s *Session) ExportResult(path string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	result, dataset := s.snap.Result, s.snap.Dataset
	s.mu.Unlock()

	if result == nil {
		return "", ErrNoResult
	}
	if strings.TrimSpace(path) == "" {
		path = export.DefaultFileName(dataset)
	}
	err := export.WriteTable(path, result.Table)
	return path, s.finishExport(dataset, path, err)
}

// Close stops polling, cancels outstanding work and waits for it to unwind.
// After Close returns no further backend calls are made.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopPollLocked()
	s.snap.Fetching = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Debug().Msg("session closed")
	return nil
}

func (s *Session) exportStream(ctx context.Context, dataset, filter string, rng query.TimeRange, path string) error {
	body, err := s.backend.ExportCSV(ctx, dataset, filter, rng)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	n, err := export.WriteStream(ctx, path, body)
	if err != nil {
		return err
	}
	s.log.Info().Str("dataset", dataset).Str("path", path).Int64("bytes", n).Msg("export written")
	return nil
}

func (s *Session) finishExport(dataset, path string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("export %s: %w", dataset, err)
		s.snap.ExportError = err
		s.log.Warn().Err(err).Str("path", path).Msg("export failed")
		return err
	}
	s.snap.ExportError = nil
	s.snap.LastExport = path
	return nil
}

func (s *Session) requestLocked() query.Request {
	return query.Request{
		Dataset: s.snap.Dataset,
		Filter:  s.snap.Filter,
		Range:   s.snap.Range,
		Limit:   s.limit,
	}
}

// acquireLocked registers an operation so Close can wait for it. cancel aborts
// the operation; release must be called exactly when it is done.
func (s *Session) acquireLocked(parent context.Context) (context.Context, context.CancelFunc, func()) {
	ctx, cancel := context.WithCancel(s.ctx)
	stop := func() bool { return false }
	if parent != nil {
		stop = context.AfterFunc(parent, cancel)
	}
	s.wg.Add(1)
	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			cancel()
			s.wg.Done()
		})
	}
	return ctx, cancel, release
}

func (s *Session) stopPollLocked() {
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
	s.pollCtx = nil
	s.snap.LiveTail = false
}

func (s *Session) startSchemaLocked(dataset string) {
	if s.stopSchema != nil {
		s.stopSchema()
	}
	s.schemaSeq++
	seq := s.schemaSeq
	s.snap.Schema = nil
	s.snap.SchemaError = nil

	ctx, cancel, release := s.acquireLocked(nil)
	s.stopSchema = cancel
	go func() {
		defer release()
		schema, err := s.backend.FetchSchema(ctx, dataset)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || seq != s.schemaSeq {
			return
		}
		s.stopSchema = nil
		if err != nil {
			s.snap.SchemaError = err
			s.log.Warn().Err(err).Str("dataset", dataset).Msg("schema fetch failed")
			return
		}
		s.snap.Schema = &schema
	}()
}
