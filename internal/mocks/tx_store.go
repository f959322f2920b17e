package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/store"
)

// MockTxStore implements store.TxStore for testing.
type MockTxStore struct {
	BeginFn     func(ctx context.Context, level domain.IsolationLevel) (store.Tx, error)
	ResetFn     func(ctx context.Context, rows []domain.SeedRow) error
	EffectiveFn func(level domain.IsolationLevel) domain.IsolationLevel

	// Tx is returned by Begin when BeginFn is nil. A nil Tx returns a fresh
	// MockTx per call.
	Tx  store.Tx
	Err error

	mu         sync.Mutex
	BeginCalls []domain.IsolationLevel
	ResetCalls [][]domain.SeedRow
	Begun      []*MockTx
}

var _ store.TxStore = (*MockTxStore)(nil)

// Begin implements store.TxStore.
func (m *MockTxStore) Begin(ctx context.Context, level domain.IsolationLevel) (store.Tx, error) {
	m.mu.Lock()
	m.BeginCalls = append(m.BeginCalls, level)
	m.mu.Unlock()

	if m.BeginFn != nil {
		return m.BeginFn(ctx, level)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Tx != nil {
		return m.Tx, nil
	}

	tx := &MockTx{}
	m.mu.Lock()
	m.Begun = append(m.Begun, tx)
	m.mu.Unlock()
	return tx, nil
}

// Reset implements store.TxStore.
func (m *MockTxStore) Reset(ctx context.Context, rows []domain.SeedRow) error {
	m.mu.Lock()
	m.ResetCalls = append(m.ResetCalls, rows)
	m.mu.Unlock()

	if m.ResetFn != nil {
		return m.ResetFn(ctx, rows)
	}
	return nil
}

// Effective implements store.TxStore. The default is the identity.
func (m *MockTxStore) Effective(level domain.IsolationLevel) domain.IsolationLevel {
	if m.EffectiveFn != nil {
		return m.EffectiveFn(level)
	}
	return level
}

// BeginCount returns the number of Begin calls.
func (m *MockTxStore) BeginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.BeginCalls)
}

// ResetCount returns the number of Reset calls.
func (m *MockTxStore) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ResetCalls)
}

// MockTx implements store.Tx for testing. Nil functions succeed and reads
// return Value.
type MockTx struct {
	ReadFn     func(ctx context.Context, target domain.Target) (domain.Value, error)
	WriteFn    func(ctx context.Context, m domain.Mutation) error
	CommitFn   func(ctx context.Context) error
	RollbackFn func(ctx context.Context) error

	Value domain.Value

	mu            sync.Mutex
	Reads         []domain.Target
	Writes        []domain.Mutation
	CommitCalls   int
	RollbackCalls int
}

var _ store.Tx = (*MockTx)(nil)

// Read implements store.Tx.
func (m *MockTx) Read(ctx context.Context, target domain.Target) (domain.Value, error) {
	m.mu.Lock()
	m.Reads = append(m.Reads, target)
	m.mu.Unlock()

	if m.ReadFn != nil {
		return m.ReadFn(ctx, target)
	}
	return m.Value, nil
}

// Write implements store.Tx.
func (m *MockTx) Write(ctx context.Context, mut domain.Mutation) error {
	m.mu.Lock()
	m.Writes = append(m.Writes, mut)
	m.mu.Unlock()

	if m.WriteFn != nil {
		return m.WriteFn(ctx, mut)
	}
	return nil
}

// Commit implements store.Tx.
func (m *MockTx) Commit(ctx context.Context) error {
	m.mu.Lock()
	m.CommitCalls++
	m.mu.Unlock()

	if m.CommitFn != nil {
		return m.CommitFn(ctx)
	}
	return nil
}

// Rollback implements store.Tx.
func (m *MockTx) Rollback(ctx context.Context) error {
	m.mu.Lock()
	m.RollbackCalls++
	m.mu.Unlock()

	if m.RollbackFn != nil {
		return m.RollbackFn(ctx)
	}
	return nil
}

// Rollbacks returns the number of Rollback calls.
func (m *MockTx) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RollbackCalls
}

// Commits returns the number of Commit calls.
func (m *MockTx) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CommitCalls
}
