package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/store"
)

// cleanupTimeout bounds the rollback issued when a handle is released after
// its run context was cancelled.
const cleanupTimeout = 5 * time.Second

// TxState is a state of the TransactionHandle state machine:
// Initialized -> Active -> {Committed, RolledBack, SerializationFailure}.
type TxState int

const (
	StateInitialized TxState = iota
	StateActive
	StateCommitted
	StateRolledBack
	StateSerializationFailure
)

func (s TxState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateSerializationFailure:
		return "serialization_failure"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s TxState) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack || s == StateSerializationFailure
}

// TransactionHandle wraps the single store transaction of one worker. It
// records every read and the terminal outcome into the run's observation log.
//
// A handle is driven by one goroutine. State and Outcome may be read from
// others.
type TransactionHandle struct {
	id    string
	level domain.IsolationLevel
	store store.TxStore
	log   *ObservationLog

	tx store.Tx

	mu      sync.Mutex
	state   TxState
	outcome *domain.Outcome
}

// NewTransactionHandle creates a handle for worker id at level. Nothing is
// opened until Begin.
func NewTransactionHandle(id string, level domain.IsolationLevel, st store.TxStore, log *ObservationLog) *TransactionHandle {
	return &TransactionHandle{
		id:    id,
		level: level,
		store: st,
		log:   log,
		state: StateInitialized,
	}
}

// ID returns the worker ID the handle belongs to.
func (h *TransactionHandle) ID() string { return h.id }

// Level returns the isolation level requested at Begin.
func (h *TransactionHandle) Level() domain.IsolationLevel { return h.level }

// State returns the current state.
func (h *TransactionHandle) State() TxState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Outcome returns the terminal outcome, if the handle reached one.
func (h *TransactionHandle) Outcome() (domain.Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == nil {
		return domain.Outcome{}, false
	}
	return *h.outcome, true
}

func (h *TransactionHandle) setState(s TxState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// finish moves the handle to a terminal state and records the outcome.
func (h *TransactionHandle) finish(step int, s TxState, outcome domain.Outcome) domain.Outcome {
	h.mu.Lock()
	h.state = s
	h.outcome = &outcome
	h.mu.Unlock()

	h.log.Append(domain.Observation{
		Worker:  h.id,
		Step:    step,
		Kind:    domain.ObservationCommitResult,
		Outcome: &outcome,
	})
	return outcome
}

func (h *TransactionHandle) illegal(op string) error {
	return fmt.Errorf("%w: %s on %s transaction %s", ErrIllegalState, op, h.State(), h.id)
}

// Begin opens the underlying transaction. Errors from the store are returned
// as-is; an unreachable store wraps store.ErrConnection.
func (h *TransactionHandle) Begin(ctx context.Context) error {
	if h.State() != StateInitialized {
		return h.illegal("begin")
	}

	tx, err := h.store.Begin(ctx, h.level)
	if err != nil {
		return fmt.Errorf("begin %s at %s: %w", h.id, h.level, err)
	}

	h.tx = tx
	h.setState(StateActive)
	return nil
}

// Read reads target, records the value under label and returns it.
//
// When the store aborts the transaction with a serialization failure the
// handle moves to StateSerializationFailure and Read returns a zero Value and
// nil error; callers check State before continuing.
func (h *TransactionHandle) Read(ctx context.Context, step int, label string, target domain.Target) (domain.Value, error) {
	if h.State() != StateActive {
		return domain.Value{}, h.illegal("read")
	}

	v, err := h.tx.Read(ctx, target)
	if err != nil {
		if store.IsSerializationFailure(err) {
			h.abort(ctx, step, err)
			return domain.Value{}, nil
		}
		return domain.Value{}, err
	}

	t, val := target, v
	h.log.Append(domain.Observation{
		Worker: h.id,
		Step:   step,
		Kind:   domain.ObservationRead,
		Label:  label,
		Target: &t,
		Value:  &val,
	})
	return v, nil
}

// Write applies m without committing. A serialization failure is handled as
// in Read.
func (h *TransactionHandle) Write(ctx context.Context, step int, m domain.Mutation) error {
	if h.State() != StateActive {
		return h.illegal("write")
	}

	if err := h.tx.Write(ctx, m); err != nil {
		if store.IsSerializationFailure(err) {
			h.abort(ctx, step, err)
			return nil
		}
		return err
	}
	return nil
}

// Commit finalizes the transaction. A serialization failure becomes the
// SerializationFailure outcome and is not returned as an error.
func (h *TransactionHandle) Commit(ctx context.Context, step int) (domain.Outcome, error) {
	if h.State() != StateActive {
		return domain.Outcome{}, h.illegal("commit")
	}

	if err := h.tx.Commit(ctx); err != nil {
		if store.IsSerializationFailure(err) {
			return h.abort(ctx, step, err), nil
		}
		return domain.Outcome{}, err
	}

	return h.finish(step, StateCommitted, domain.Outcome{Kind: domain.OutcomeCommitted}), nil
}

// Rollback discards the transaction. It is a no-op returning the existing
// outcome once the handle is terminal. A handle that never began moves
// straight to RolledBack.
func (h *TransactionHandle) Rollback(ctx context.Context, step int) (domain.Outcome, error) {
	switch st := h.State(); {
	case st.Terminal():
		out, _ := h.Outcome()
		return out, nil
	case st == StateInitialized:
		return h.finish(step, StateRolledBack, domain.Outcome{Kind: domain.OutcomeRolledBack}), nil
	}

	err := h.tx.Rollback(ctx)
	out := h.finish(step, StateRolledBack, domain.Outcome{Kind: domain.OutcomeRolledBack})
	if err != nil && !errors.Is(err, store.ErrTxDone) {
		return out, fmt.Errorf("rollback %s: %w", h.id, err)
	}
	return out, nil
}

// abort records a store-reported serialization failure and releases the
// underlying transaction.
func (h *TransactionHandle) abort(ctx context.Context, step int, cause error) domain.Outcome {
	if err := h.rollbackDetached(ctx); err != nil {
		logger.FromContext(ctx).Warn("rollback after serialization failure failed",
			slogWorker(h.id), "error", err)
	}
	return h.finish(step, StateSerializationFailure, domain.Outcome{
		Kind:   domain.OutcomeSerializationFailure,
		Detail: cause.Error(),
	})
}

// Release rolls back a transaction that is still active without recording an
// outcome. It runs on every worker exit path and uses a detached context so
// it still reaches the store after the run context was cancelled.
func (h *TransactionHandle) Release(ctx context.Context) {
	if h.State() != StateActive {
		return
	}
	if err := h.rollbackDetached(ctx); err != nil {
		logger.FromContext(ctx).Error("failed to release transaction",
			slogWorker(h.id), "error", err)
	}
	h.setState(StateRolledBack)
}

func (h *TransactionHandle) rollbackDetached(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	err := h.tx.Rollback(cctx)
	if err != nil && !errors.Is(err, store.ErrTxDone) {
		return err
	}
	return nil
}
