package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/store"
)

// DefaultRunTimeout bounds a whole run.
const DefaultRunTimeout = 30 * time.Second

// joinGrace is how long the runner waits for workers to notice cancellation
// after the run deadline before giving up on them.
const joinGrace = 2 * time.Second

// RunnerConfig holds the timeouts of a Runner.
type RunnerConfig struct {
	SignalTimeout time.Duration
	RunTimeout    time.Duration
}

// DefaultRunnerConfig returns the default timeouts.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		SignalTimeout: DefaultSignalTimeout,
		RunTimeout:    DefaultRunTimeout,
	}
}

// Runner executes scenarios against a store. Runs against the same rows must
// not overlap; each run resets the baseline first.
type Runner struct {
	store  store.TxStore
	config RunnerConfig
	logger *slog.Logger
	now    func() time.Time
	grace  time.Duration
}

// NewRunner creates a Runner. Zero timeouts in config fall back to the defaults.
func NewRunner(st store.TxStore, config RunnerConfig, log *slog.Logger) (*Runner, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if config.SignalTimeout <= 0 {
		config.SignalTimeout = DefaultSignalTimeout
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		store:  st,
		config: config,
		logger: log.With(slog.String("component", "scenario_runner")),
		now:    time.Now,
		grace:  joinGrace,
	}, nil
}

// Run executes sc at level and classifies the result.
//
// It returns exactly one of a VerificationResult or a harness error. A
// malformed scenario is rejected before the store is touched. Connection and
// query errors, signal timeouts and the run timeout abort the run; a
// serialization failure is an outcome and never an error.
//
// Run waits for every worker except one stuck in a store call that ignores
// cancellation. Such a worker outlives the RunTimeoutError by at most the
// duration of that call; its transaction is rolled back as soon as the call
// returns, and the worker is logged as still running.
func (r *Runner) Run(ctx context.Context, sc *Scenario, level domain.IsolationLevel) (*domain.VerificationResult, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownIsolationLevel, uint8(level))
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := r.logger.With(
		slog.String("run_id", runID.String()),
		slog.String("scenario", sc.Name),
		slog.String("isolation", level.Slug()),
	)
	ctx = logger.WithLogger(ctx, log)

	if len(sc.Seed) > 0 {
		if err := r.store.Reset(ctx, sc.Seed); err != nil {
			log.Error("failed to reset baseline", "error", err)
			return nil, fmt.Errorf("reset baseline for %s: %w", sc.Name, err)
		}
	}

	started := r.now()
	log.Info("run started", "workers", len(sc.Workers))

	runCtx, cancel := context.WithTimeout(ctx, r.config.RunTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	observations := NewObservationLog()
	signals := NewSignals()
	handles := make([]*TransactionHandle, len(sc.Workers))

	for i, spec := range sc.Workers {
		h := NewTransactionHandle(spec.ID, spec.levelFor(level), r.store, observations)
		handles[i] = h
		w := newWorker(spec, h, signals, r.config.SignalTimeout)
		g.Go(func() error { return w.run(gctx) })
	}

	err := r.join(runCtx, g, handles)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &RunTimeoutError{Scenario: sc.Name, Pending: pending(handles), Timeout: r.config.RunTimeout}
		}
		log.Error("run aborted", "error", err)
		return nil, err
	}

	outcomes := make(map[string]domain.Outcome, len(handles))
	for _, h := range handles {
		out, _ := h.Outcome()
		outcomes[h.ID()] = out
	}
	entries := observations.Snapshot()

	verdict, why := Classify(sc, entries, outcomes)
	expected := sc.Expect(level)

	result := &domain.VerificationResult{
		RunID:              runID,
		Scenario:           sc.Name,
		Anomaly:            sc.Anomaly,
		Isolation:          level,
		EffectiveIsolation: r.store.Effective(level),
		Verdict:            verdict,
		Expected:           expected,
		Passed:             verdict == expected,
		Explanation:        why,
		Log:                entries,
		Outcomes:           outcomes,
		StartedAt:          started,
		Duration:           r.now().Sub(started),
	}

	log.Info("run finished",
		"verdict", verdict,
		"expected", expected,
		"status", result.Status(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// join waits for the worker group. After the run deadline it allows a short
// grace period for workers blocked in the store to observe cancellation.
func (r *Runner) join(runCtx context.Context, g *errgroup.Group, handles []*TransactionHandle) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case err := <-done:
		return err
	case <-grace.C:
		logger.FromContext(runCtx).Warn("workers still inside the store after the run deadline",
			"workers", active(handles),
			"grace", r.grace)
		return runCtx.Err()
	}
}

// active lists the workers whose transaction is still open.
func active(handles []*TransactionHandle) []string {
	var ids []string
	for _, h := range handles {
		if h.State() == StateActive {
			ids = append(ids, h.ID())
		}
	}
	return ids
}

// pending lists the workers that never reached a terminal outcome.
func pending(handles []*TransactionHandle) []string {
	var ids []string
	for _, h := range handles {
		if _, ok := h.Outcome(); !ok {
			ids = append(ids, h.ID())
		}
	}
	return ids
}
