package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
)

func slogWorker(id string) slog.Attr {
	return slog.String("worker", id)
}

// worker executes the steps of one Worker against its handle.
type worker struct {
	spec          Worker
	handle        *TransactionHandle
	signals       *Signals
	signalTimeout time.Duration

	reads map[string]domain.Value
}

func newWorker(spec Worker, handle *TransactionHandle, signals *Signals, signalTimeout time.Duration) *worker {
	return &worker{
		spec:          spec,
		handle:        handle,
		signals:       signals,
		signalTimeout: signalTimeout,
		reads:         make(map[string]domain.Value),
	}
}

// run executes every step in order. The handle is released on every exit
// path, including a panic in a step, so no transaction outlives the run.
func (w *worker) run(ctx context.Context) (err error) {
	ctx, log := logger.With(ctx, slogWorker(w.spec.ID), "level", w.handle.Level().Slug())
	current := -1

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panicked", "step", current, "panic", r)
			err = &WorkerError{Worker: w.spec.ID, Step: current, Err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
		}
		w.handle.Release(ctx)
	}()

	if err := w.handle.Begin(ctx); err != nil {
		return &WorkerError{Worker: w.spec.ID, Step: -1, Err: err}
	}
	log.Debug("transaction started")

	for i, step := range w.spec.Steps {
		current = i

		if w.handle.State() == StateSerializationFailure {
			w.raiseRemaining(log, i)
			return nil
		}

		log.Debug("executing step", "step", i, "action", step.String())
		if err := w.exec(ctx, i, step); err != nil {
			return &WorkerError{Worker: w.spec.ID, Step: i, Err: err}
		}
	}

	if !w.handle.State().Terminal() {
		// No explicit commit or rollback: the transaction is discarded.
		if _, err := w.handle.Rollback(ctx, len(w.spec.Steps)); err != nil {
			return &WorkerError{Worker: w.spec.ID, Step: len(w.spec.Steps), Err: err}
		}
	}

	out, _ := w.handle.Outcome()
	log.Debug("worker finished", "outcome", out.Kind)
	return nil
}

func (w *worker) exec(ctx context.Context, i int, step Step) error {
	switch st := step.(type) {
	case ReadStep:
		v, err := w.handle.Read(ctx, i, st.Label, st.Target)
		if err != nil {
			return err
		}
		w.reads[st.Label] = v
		return nil

	case WriteStep:
		m := st.Mutation
		if st.FromRead != "" {
			base, ok := w.reads[st.FromRead]
			if !ok {
				return fmt.Errorf("%w: read %q has no value", ErrIllegalState, st.FromRead)
			}
			m.Value = base.Int + st.Delta
		}
		return w.handle.Write(ctx, i, m)

	case WaitStep:
		timeout := st.Timeout
		if timeout <= 0 {
			timeout = w.signalTimeout
		}
		return w.signals.WaitFor(ctx, w.spec.ID, st.Signal, timeout)

	case RaiseStep:
		w.signals.Raise(st.Signal)
		return nil

	case SleepStep:
		timer := time.NewTimer(st.Duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}

	case CommitStep:
		_, err := w.handle.Commit(ctx, i)
		return err

	case RollbackStep:
		_, err := w.handle.Rollback(ctx, i)
		return err
	}

	return fmt.Errorf("unknown step type %T", step)
}

// raiseRemaining raises every signal from step from onwards. A worker whose
// transaction was aborted stops early; its peers must not wait for it.
func (w *worker) raiseRemaining(log *slog.Logger, from int) {
	for _, step := range w.spec.Steps[from:] {
		rs, ok := step.(RaiseStep)
		if !ok || w.signals.Raised(rs.Signal) {
			continue
		}
		log.Debug("raising signal of aborted transaction", "signal", rs.Signal)
		w.signals.Raise(rs.Signal)
	}
}
