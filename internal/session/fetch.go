package session

import (
	"context"
	"time"

	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/rows"
)

// beginFetchLocked supersedes any outstanding fetch and returns a function
// that performs the new one. Only the fetch matching the current generation
// may change the session when it completes.
func (s *Session) beginFetchLocked(parent context.Context, req query.Request) (func() error, error) {
	spec, err := query.Compile(req)
	if err != nil {
		return nil, err
	}

	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.gen++
	gen := s.gen

	ctx, cancel, release := s.acquireLocked(parent)
	s.cancelFetch = cancel
	s.snap.Status = StatusLoading
	s.snap.Fetching = true

	return func() error {
		defer release()
		return s.fetch(ctx, gen, req, spec)
	}, nil
}

func (s *Session) fetch(ctx context.Context, gen uint64, req query.Request, spec query.Spec) error {
	started := s.now()
	records, err := s.backend.RunQuery(ctx, spec)
	took := s.now().Sub(started)

	var table rows.Table
	if err == nil {
		table = rows.Normalize(records)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		s.log.Debug().Uint64("gen", gen).Uint64("current", s.gen).Msg("discarding superseded result")
		return nil
	}
	s.cancelFetch = nil
	s.snap.Fetching = false
	s.snap.LastUpdated = s.now()

	logger := s.log.With().Str("dataset", req.Dataset).Uint64("gen", gen).Dur("took", took).Logger()
	if err != nil {
		s.snap.Status = StatusError
		s.snap.LastError = err
		s.snap.Result = nil
		if s.snap.LiveTail {
			s.stopPollLocked()
			logger.Warn().Err(err).Msg("fetch failed; live tail stopped")
		} else {
			logger.Warn().Err(err).Msg("fetch failed")
		}
		return err
	}

	s.snap.Status = StatusReady
	s.snap.LastError = nil
	s.snap.Range = req.Range
	s.snap.Result = &ResultSet{
		Table:     table,
		Spec:      spec,
		Filter:    req.Filter,
		Range:     req.Range,
		FetchedAt: s.snap.LastUpdated,
		Took:      took,
	}
	logger.Debug().Int("rows", table.Len()).Msg("fetch applied")
	return nil
}

// poll drives live tail until ctx is cancelled. The first tick is immediate.
func (s *Session) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick starts one live-tail fetch over a window of the current span ending
// now. A tick that arrives while a fetch is outstanding is dropped. It reports
// whether a fetch was started.
func (s *Session) tick(pollCtx context.Context) bool {
	s.mu.Lock()
	if s.closed || pollCtx == nil || pollCtx != s.pollCtx || pollCtx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if s.snap.Fetching {
		s.mu.Unlock()
		s.log.Debug().Msg("live tail tick dropped; fetch in flight")
		return false
	}

	span := s.snap.Range.End.Sub(s.snap.Range.Start)
	if span <= 0 {
		span = s.window
	}
	req := s.requestLocked()
	req.Range = query.Last(s.now(), span)

	run, err := s.beginFetchLocked(nil, req)
	if err != nil {
		s.snap.Status = StatusError
		s.snap.LastError = err
		s.stopPollLocked()
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	go func() { _ = run() }()
	return true
}

func (s *Session) currentPollCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCtx
}
