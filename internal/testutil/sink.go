package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/stratosim/internal/report"
)

// MemorySink collects result rows in memory. It is safe for concurrent
// writers, so it can stand in for the SQLite store under a worker pool.
type MemorySink struct {
	mu   sync.Mutex
	runs []uuid.UUID
	rows map[uuid.UUID][]report.Result

	// FailWrites makes every WriteResults call return an error, for
	// exercising trial failure paths.
	FailWrites bool
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{rows: make(map[uuid.UUID][]report.Result)}
}

// BeginRun mints and records a run token.
func (s *MemorySink) BeginRun(ctx context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runID := uuid.New()
	s.runs = append(s.runs, runID)
	return runID, nil
}

// WriteResults appends rows under the run token.
func (s *MemorySink) WriteResults(ctx context.Context, runID uuid.UUID, rows []report.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("sink write refused")
	}
	s.rows[runID] = append(s.rows[runID], rows...)
	return nil
}

// Rows returns a copy of everything written under the run token.
func (s *MemorySink) Rows(runID uuid.UUID) []report.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.Result, len(s.rows[runID]))
	copy(out, s.rows[runID])
	return out
}

// Runs returns every token minted so far.
func (s *MemorySink) Runs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, len(s.runs))
	copy(out, s.runs)
	return out
}
