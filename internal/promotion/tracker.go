// Package promotion keeps track of the best training run per instrument and
// moves the promotion flag when a run with a strictly lower loss arrives.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPromotionStore wraps every failure to read or write promotion history.
	ErrPromotionStore = errors.New("promotion: store failure")
	// ErrInvalidObservation is returned for observations without an instrument or run id.
	ErrInvalidObservation = errors.New("promotion: invalid observation")
)

// Observation is a finished training run submitted for promotion.
type Observation struct {
	Instrument string  `json:"instrument"`
	RunID      string  `json:"run_id"`
	Loss       float64 `json:"loss"`
}

// State is the promoted run of one instrument. BestLoss is NaN when the
// promoted run reported no loss.
type State struct {
	Instrument string  `json:"instrument"`
	BestRunID  string  `json:"best_run_id"`
	BestLoss   float64 `json:"best_loss"`
}

// Run is one recorded observation with its current promotion flag.
type Run struct {
	Instrument string    `json:"instrument"`
	RunID      string    `json:"run_id"`
	Loss       float64   `json:"loss"`
	Promoted   bool      `json:"promoted"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Reason explains a Decision.
type Reason string

const (
	ReasonFirstRun    Reason = "first_run"
	ReasonImproved    Reason = "improved"
	ReasonAlreadyBest Reason = "already_best"
	ReasonNotBetter   Reason = "not_better"
)

// Decision is the outcome of evaluating one observation.
type Decision struct {
	Instrument string `json:"instrument"`
	RunID      string `json:"run_id"`
	// Promoted reports whether RunID is the promoted run after evaluation.
	Promoted bool   `json:"promoted"`
	Reason   Reason `json:"reason"`
	// Demoted is the run that lost its promotion, if any.
	Demoted string `json:"demoted,omitempty"`
}

// StoreErrorPolicy decides what happens when the best run cannot be looked up.
type StoreErrorPolicy string

const (
	// PolicyAbort surfaces the lookup failure and leaves state untouched.
	PolicyAbort StoreErrorPolicy = "abort"
	// PolicyTreatAsFirst promotes the observation as if the instrument had no history.
	PolicyTreatAsFirst StoreErrorPolicy = "treat_as_first"
)

// ParseStoreErrorPolicy converts a configuration value. Empty means PolicyAbort.
func ParseStoreErrorPolicy(s string) (StoreErrorPolicy, error) {
	switch StoreErrorPolicy(s) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyTreatAsFirst:
		return PolicyTreatAsFirst, nil
	}
	return "", fmt.Errorf("unknown store error policy %q", s)
}

// Tracker evaluates observations against the stored best run. Evaluations of
// the same instrument are serialised through the Locker; different
// instruments proceed independently.
type Tracker struct {
	store  Store
	locker Locker
	policy StoreErrorPolicy
	logger *zap.Logger
}

// NewTracker creates a Tracker. A nil locker defaults to an in-process LocalLocker.
func NewTracker(store Store, locker Locker, policy StoreErrorPolicy, logger *zap.Logger) *Tracker {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if policy == "" {
		policy = PolicyAbort
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		locker: locker,
		policy: policy,
		logger: logger,
	}
}

// Evaluate records obs and promotes it when it is the instrument's first run
// or its loss is strictly lower than the promoted run's loss. An equal loss
// keeps the existing run promoted. Re-evaluating the promoted run changes nothing.
func (t *Tracker) Evaluate(ctx context.Context, obs Observation) (Decision, error) {
	if obs.Instrument == "" || obs.RunID == "" {
		return Decision{}, fmt.Errorf("%w: instrument %q run %q", ErrInvalidObservation, obs.Instrument, obs.RunID)
	}

	unlock, err := t.locker.Lock(ctx, obs.Instrument)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: lock %s: %w", ErrPromotionStore, obs.Instrument, err)
	}
	defer unlock()

	log := t.logger.With(zap.String("instrument", obs.Instrument), zap.String("runID", obs.RunID), zap.Float64("loss", obs.Loss))

	state, found, err := t.store.Best(ctx, obs.Instrument)
	if err != nil {
		if t.policy != PolicyTreatAsFirst {
			return Decision{}, fmt.Errorf("%w: look up best run for %s: %w", ErrPromotionStore, obs.Instrument, err)
		}
		log.Warn("Best run lookup failed, evaluating as first run", zap.Error(err))
		found = false
	}

	decision := Decision{Instrument: obs.Instrument, RunID: obs.RunID}
	if found && state.BestRunID == obs.RunID {
		// 昇格済みの実行は損失も含めて変更しない
		decision.Promoted = true
		decision.Reason = ReasonAlreadyBest
		log.Info("Run is already the promoted run", zap.Float64("bestLoss", state.BestLoss))
		return decision, nil
	}

	if err := t.store.Record(ctx, obs); err != nil {
		return Decision{}, fmt.Errorf("%w: record run %s: %w", ErrPromotionStore, obs.RunID, err)
	}

	switch {
	case !found:
		decision.Promoted = true
		decision.Reason = ReasonFirstRun
	case improves(obs.Loss, state.BestLoss):
		decision.Promoted = true
		decision.Reason = ReasonImproved
		decision.Demoted = state.BestRunID
	default:
		decision.Reason = ReasonNotBetter
		log.Info("Run not promoted", zap.String("bestRunID", state.BestRunID), zap.Float64("bestLoss", state.BestLoss))
		return decision, nil
	}

	if err := t.store.Promote(ctx, obs.Instrument, obs.RunID, obs.Loss); err != nil {
		return Decision{}, fmt.Errorf("%w: promote run %s: %w", ErrPromotionStore, obs.RunID, err)
	}
	log.Info("Run promoted", zap.String("reason", string(decision.Reason)), zap.String("demoted", decision.Demoted))
	return decision, nil
}

// Current returns the promoted run of an instrument.
func (t *Tracker) Current(ctx context.Context, instrument string) (State, bool, error) {
	state, found, err := t.store.Best(ctx, instrument)
	if err != nil {
		return State{}, false, fmt.Errorf("%w: look up best run for %s: %w", ErrPromotionStore, instrument, err)
	}
	return state, found, nil
}

// Runs lists the recorded runs of an instrument, lowest loss first.
func (t *Tracker) Runs(ctx context.Context, instrument string) ([]Run, error) {
	runs, err := t.store.Runs(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs for %s: %w", ErrPromotionStore, instrument, err)
	}
	return runs, nil
}

// improves reports whether loss beats best. A missing loss never wins; a
// missing best loses to any defined loss.
func improves(loss, best float64) bool {
	if math.IsNaN(loss) {
		return false
	}
	return math.IsNaN(best) || loss < best
}
