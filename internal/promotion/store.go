package promotion

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Store persists run observations and the promoted run per instrument.
type Store interface {
	// Best returns the promoted run of an instrument; found is false when the
	// instrument has no promoted run yet.
	Best(ctx context.Context, instrument string) (state State, found bool, err error)
	// Record stores an observation. Recording the same run again updates its loss.
	Record(ctx context.Context, obs Observation) error
	// Promote makes runID the instrument's only promoted run and points the
	// best run at it, as one change.
	Promote(ctx context.Context, instrument, runID string, loss float64) error
	// Runs lists an instrument's runs ordered by loss ascending, missing losses last.
	Runs(ctx context.Context, instrument string) ([]Run, error)
}

type instrumentRuns struct {
	runs    map[string]*Run
	best    State
	hasBest bool
}

// MemStore is an in-memory Store. It is safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	instruments map[string]*instrumentRuns
	now         func() time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		instruments: make(map[string]*instrumentRuns),
		now:         time.Now,
	}
}

func (s *MemStore) instrument(name string) *instrumentRuns {
	ir, ok := s.instruments[name]
	if !ok {
		ir = &instrumentRuns{runs: make(map[string]*Run)}
		s.instruments[name] = ir
	}
	return ir
}

// Best returns the promoted run of an instrument.
func (s *MemStore) Best(ctx context.Context, instrument string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ir, ok := s.instruments[instrument]
	if !ok || !ir.hasBest {
		return State{}, false, nil
	}
	return ir.best, true, nil
}

// Record upserts an observation.
func (s *MemStore) Record(ctx context.Context, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ir := s.instrument(obs.Instrument)
	if run, ok := ir.runs[obs.RunID]; ok {
		run.Loss = obs.Loss
		return nil
	}
	ir.runs[obs.RunID] = &Run{
		Instrument: obs.Instrument,
		RunID:      obs.RunID,
		Loss:       obs.Loss,
		RecordedAt: s.now(),
	}
	return nil
}

// Promote moves the promotion flag to runID.
func (s *MemStore) Promote(ctx context.Context, instrument, runID string, loss float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ir := s.instrument(instrument)
	for id, run := range ir.runs {
		if id != runID {
			run.Promoted = false
		}
	}
	run, ok := ir.runs[runID]
	if !ok {
		run = &Run{Instrument: instrument, RunID: runID, Loss: loss, RecordedAt: s.now()}
		ir.runs[runID] = run
	}
	run.Promoted = true
	ir.best = State{Instrument: instrument, BestRunID: runID, BestLoss: loss}
	ir.hasBest = true
	return nil
}

// Runs lists runs lowest loss first; ties keep recording order.
func (s *MemStore) Runs(ctx context.Context, instrument string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ir, ok := s.instruments[instrument]
	if !ok {
		return []Run{}, nil
	}
	runs := make([]Run, 0, len(ir.runs))
	for _, r := range ir.runs {
		runs = append(runs, *r)
	}
	sortRuns(runs)
	return runs, nil
}

func sortRuns(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		an, bn := math.IsNaN(a.Loss), math.IsNaN(b.Loss)
		switch {
		case an != bn:
			return bn
		case !an && a.Loss != b.Loss:
			return a.Loss < b.Loss
		case !a.RecordedAt.Equal(b.RecordedAt):
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.RunID < b.RunID
	})
}
