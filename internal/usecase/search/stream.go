package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chemdex/internal/domain"
	"github.com/kailas-cloud/chemdex/internal/domain/record"
	"github.com/kailas-cloud/chemdex/internal/logger"
	"github.com/kailas-cloud/chemdex/internal/metrics"
)

// ErrNoCurrent is returned when the stream has not been advanced to a match.
var ErrNoCurrent = errors.New("stream has no current match")

// State is the match stream lifecycle state.
type State int

// Stream states.
const (
	StateOpen State = iota
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// source opens the cursor of one collection.
type source struct {
	collection string
	open       func(ctx context.Context) (Cursor, error)
}

// Stream is a finite, non-restartable sequence of verified matches.
// Collections are consumed in order. Safe for concurrent use.
type Stream struct {
	mu sync.Mutex

	state   State
	sources []source
	cursor  Cursor
	verify  *verifier
	kind    string
	logger  *zap.Logger

	buf     []record.Match
	cur     record.Match
	hasCur  bool
	limit   int
	yielded int
}

func newStream(v *verifier, sources []source, limit int, log *zap.Logger) *Stream {
	return &Stream{
		state:   StateOpen,
		sources: sources,
		verify:  v,
		kind:    v.kind,
		limit:   limit,
		logger:  log,
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next advances to the next verified match. It returns false once the stream
// is exhausted and domain.ErrClosedHandle after Close.
func (s *Stream) Next(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return false, domain.ErrClosedHandle
	case StateExhausted:
		return false, nil
	}

	ctx = logger.ContextWithLogger(ctx, s.logger)
	for {
		if s.limit > 0 && s.yielded >= s.limit {
			s.exhaust()
			return false, nil
		}
		if len(s.buf) > 0 {
			s.cur, s.buf = s.buf[0], s.buf[1:]
			s.hasCur = true
			s.yielded++
			return true, nil
		}
		more, err := s.fill(ctx)
		if err != nil {
			return false, err
		}
		if !more {
			s.exhaust()
			return false, nil
		}
	}
}

// fill loads the next non-empty verified page, opening collections as needed.
func (s *Stream) fill(ctx context.Context) (bool, error) {
	for {
		if s.cursor == nil {
			if len(s.sources) == 0 {
				return false, nil
			}
			if err := s.openNext(ctx); err != nil {
				return false, err
			}
		}

		start := time.Now()
		page, err := s.cursor.Next(ctx)
		metrics.BackendPageDuration.WithLabelValues(s.kind).Observe(time.Since(start).Seconds())
		if err != nil {
			return false, err
		}
		if len(page) == 0 {
			s.closeCursor()
			continue
		}
		metrics.CandidatesScreenedTotal.WithLabelValues(s.kind).Add(float64(len(page)))

		verified, err := s.verify.page(ctx, page)
		if err != nil {
			return false, err
		}
		s.logger.Debug("Page verified",
			zap.Int("screened", len(page)),
			zap.Int("verified", len(verified)),
		)
		if len(verified) > 0 {
			s.buf = verified
			return true, nil
		}
	}
}

// start opens the first collection so backend failures surface at search time.
func (s *Stream) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sources) == 0 {
		return nil
	}
	return s.openNext(logger.ContextWithLogger(ctx, s.logger))
}

func (s *Stream) openNext(ctx context.Context) error {
	src := s.sources[0]
	c, err := src.open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", src.collection, err)
	}
	s.sources = s.sources[1:]
	s.cursor = c
	return nil
}

func (s *Stream) exhaust() {
	s.state = StateExhausted
	s.buf = nil
	s.sources = nil
	s.closeCursor()
}

func (s *Stream) closeCursor() {
	if s.cursor == nil {
		return
	}
	if err := s.cursor.Close(); err != nil {
		s.logger.Warn("Close backend cursor", zap.Error(err))
	}
	s.cursor = nil
}

// Current returns the match the stream is positioned on.
func (s *Stream) Current() (record.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return record.Match{}, domain.ErrClosedHandle
	}
	if !s.hasCur {
		return record.Match{}, ErrNoCurrent
	}
	return s.cur, nil
}

// ID returns the current record identifier.
func (s *Stream) ID() (string, error) {
	m, err := s.Current()
	if err != nil {
		return "", err
	}
	return m.Record.ID(), nil
}

// Score returns the current backend score.
func (s *Stream) Score() (float64, error) {
	m, err := s.Current()
	if err != nil {
		return 0, err
	}
	return m.Score, nil
}

// Record returns the current verified record.
func (s *Stream) Record() (record.Record, error) {
	m, err := s.Current()
	if err != nil {
		return record.Record{}, err
	}
	return m.Record, nil
}

// Close releases backend resources. Calling it again has no effect.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.buf = nil
	s.sources = nil
	s.hasCur = false

	if s.cursor == nil {
		return nil
	}
	err := s.cursor.Close()
	s.cursor = nil
	if err != nil {
		return fmt.Errorf("close cursor: %w", err)
	}
	return nil
}

// All adapts the stream for range-over-func. The stream is closed when the
// loop ends for any reason.
func (s *Stream) All(ctx context.Context) iter.Seq2[record.Match, error] {
	return func(yield func(record.Match, error) bool) {
		defer func() { _ = s.Close() }()
		for {
			ok, err := s.Next(ctx)
			if err != nil {
				yield(record.Match{}, err)
				return
			}
			if !ok {
				return
			}
			m, err := s.Current()
			if !yield(m, err) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice and closes it.
func (s *Stream) Collect(ctx context.Context) ([]record.Match, error) {
	var out []record.Match
	for m, err := range s.All(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Each calls fn for every match and always closes the stream.
func Each(ctx context.Context, s *Stream, fn func(record.Match) error) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		ok, nerr := s.Next(ctx)
		if nerr != nil {
			return nerr
		}
		if !ok {
			return nil
		}
		m, cerr := s.Current()
		if cerr != nil {
			return cerr
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}
