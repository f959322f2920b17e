package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/store"
)

func seeded(t *testing.T, rows ...domain.SeedRow) *Store {
	t.Helper()
	s := New(nil)
	require.NoError(t, s.Reset(context.Background(), rows))
	return s
}

func begin(t *testing.T, s *Store, level domain.IsolationLevel) store.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background(), level)
	require.NoError(t, err)
	return tx
}

func readInt(t *testing.T, tx store.Tx, target domain.Target) int64 {
	t.Helper()
	v, err := tx.Read(context.Background(), target)
	require.NoError(t, err)
	return v.Int
}

func TestStore_Effective(t *testing.T) {
	s := New(nil)
	assert.Equal(t, domain.ReadCommitted, s.Effective(domain.ReadUncommitted))
	assert.Equal(t, domain.ReadCommitted, s.Effective(domain.ReadCommitted))
	assert.Equal(t, domain.RepeatableRead, s.Effective(domain.RepeatableRead))
	assert.Equal(t, domain.Serializable, s.Effective(domain.Serializable))
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "b", Group: "g", Value: 2}, domain.SeedRow{Key: "a", Group: "g", Value: 1})

	assert.Equal(t, []domain.SeedRow{
		{Key: "a", Group: "g", Value: 1},
		{Key: "b", Group: "g", Value: 2},
	}, s.Rows())

	err := s.Reset(ctx, []domain.SeedRow{{Key: "a", Group: "g"}, {Key: "a", Group: "g"}})
	assert.ErrorIs(t, err, store.ErrQuery)

	require.NoError(t, s.Reset(ctx, nil))
	assert.Empty(t, s.Rows())
}

func TestTx_Reads(t *testing.T) {
	s := seeded(t,
		domain.SeedRow{Key: "a", Group: "g", Value: 10},
		domain.SeedRow{Key: "b", Group: "g", Value: 5},
		domain.SeedRow{Key: "c", Group: "h", Value: 7},
	)
	tx := begin(t, s, domain.ReadCommitted)
	ctx := context.Background()

	tests := []struct {
		name   string
		target domain.Target
		want   domain.Value
	}{
		{"row", domain.Row("a"), domain.Value{Int: 10, Found: true}},
		{"missing row", domain.Row("zz"), domain.Value{}},
		{"count", domain.Count("g"), domain.Value{Int: 2, Found: true}},
		{"sum", domain.Sum("g"), domain.Value{Int: 15, Found: true}},
		{"empty group", domain.Count("none"), domain.Value{Int: 0, Found: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tx.Read(ctx, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := tx.Read(ctx, domain.Target{Kind: domain.TargetRow})
	assert.ErrorIs(t, err, store.ErrQuery)
}

func TestTx_OwnWritesVisible(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 1})
	tx := begin(t, s, domain.RepeatableRead)

	require.NoError(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 5}))
	require.NoError(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationInsert, Key: "b", Group: "g", Value: 3}))

	assert.Equal(t, int64(5), readInt(t, tx, domain.Row("a")))
	assert.Equal(t, int64(2), readInt(t, tx, domain.Count("g")))
	assert.Equal(t, int64(8), readInt(t, tx, domain.Sum("g")))

	require.NoError(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationDelete, Key: "a"}))
	assert.Equal(t, int64(1), readInt(t, tx, domain.Count("g")))

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []domain.SeedRow{{Key: "b", Group: "g", Value: 3}}, s.Rows())
}

func TestTx_WriteErrors(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 1})
	tx := begin(t, s, domain.ReadCommitted)

	tests := []struct {
		name string
		m    domain.Mutation
	}{
		{"set missing row", domain.Mutation{Kind: domain.MutationSet, Key: "nope", Value: 1}},
		{"delete missing row", domain.Mutation{Kind: domain.MutationDelete, Key: "nope"}},
		{"duplicate insert", domain.Mutation{Kind: domain.MutationInsert, Key: "a", Group: "g"}},
		{"malformed", domain.Mutation{Kind: domain.MutationInsert, Key: "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tx.Write(ctx, tc.m), store.ErrQuery)
		})
	}
}

func TestTx_ReadCommittedSeesOnlyCommitted(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 100})

	writer := begin(t, s, domain.ReadCommitted)
	reader := begin(t, s, domain.ReadUncommitted)

	require.NoError(t, writer.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 999}))
	assert.Equal(t, int64(100), readInt(t, reader, domain.Row("a")), "uncommitted write must be invisible")

	require.NoError(t, writer.Commit(ctx))
	assert.Equal(t, int64(999), readInt(t, reader, domain.Row("a")), "read committed takes a new snapshot per statement")
}

func TestTx_RepeatableReadKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 100})

	for _, level := range []domain.IsolationLevel{domain.RepeatableRead, domain.Serializable} {
		t.Run(level.Slug(), func(t *testing.T) {
			require.NoError(t, s.Reset(ctx, []domain.SeedRow{{Key: "a", Group: "g", Value: 100}}))
			reader := begin(t, s, level)
			assert.Equal(t, int64(100), readInt(t, reader, domain.Row("a")))
			assert.Equal(t, int64(1), readInt(t, reader, domain.Count("g")))

			writer := begin(t, s, domain.ReadCommitted)
			require.NoError(t, writer.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 101}))
			require.NoError(t, writer.Write(ctx, domain.Mutation{Kind: domain.MutationInsert, Key: "b", Group: "g", Value: 1}))
			require.NoError(t, writer.Commit(ctx))

			assert.Equal(t, int64(100), readInt(t, reader, domain.Row("a")))
			assert.Equal(t, int64(1), readInt(t, reader, domain.Count("g")))
			require.NoError(t, reader.Commit(ctx))
		})
	}
}

func TestTx_FirstUpdaterWins(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 0})

	t1 := begin(t, s, domain.RepeatableRead)
	t2 := begin(t, s, domain.RepeatableRead)
	readInt(t, t2, domain.Row("a"))

	require.NoError(t, t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 1}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 2})
	}()

	select {
	case err := <-errCh:
		t.Fatalf("write should block on the row lock, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, t1.Commit(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, store.ErrSerialization)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked writer was not released")
	}
	require.NoError(t, t2.Rollback(ctx))
	assert.Equal(t, int64(1), s.Rows()[0].Value)
}

func TestTx_BlockedFirstWriteKeepsStartSnapshot(t *testing.T) {
	for _, level := range []domain.IsolationLevel{domain.RepeatableRead, domain.Serializable} {
		t.Run(level.Slug(), func(t *testing.T) {
			ctx := context.Background()
			s := seeded(t, domain.SeedRow{Key: "seat", Group: "g", Value: 0})

			t1 := begin(t, s, domain.RepeatableRead)
			t2 := begin(t, s, level)
			require.NoError(t, t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "seat", Value: 1}))

			errCh := make(chan error, 1)
			go func() {
				errCh <- t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "seat", Value: 2})
			}()

			select {
			case err := <-errCh:
				t.Fatalf("write should block on the row lock, returned %v", err)
			case <-time.After(50 * time.Millisecond):
			}

			require.NoError(t, t1.Commit(ctx))

			select {
			case err := <-errCh:
				assert.ErrorIs(t, err, store.ErrSerialization)
			case <-time.After(2 * time.Second):
				t.Fatal("blocked writer was not released")
			}
			require.NoError(t, t2.Rollback(ctx))
			assert.Equal(t, int64(1), s.Rows()[0].Value)
		})
	}
}

func TestTx_InsertAfterOwnDelete(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "old", Value: 1})

	for _, level := range []domain.IsolationLevel{domain.ReadCommitted, domain.RepeatableRead} {
		t.Run(level.Slug(), func(t *testing.T) {
			require.NoError(t, s.Reset(ctx, []domain.SeedRow{{Key: "a", Group: "old", Value: 1}}))
			tx := begin(t, s, level)

			require.NoError(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationDelete, Key: "a"}))
			require.NoError(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationInsert, Key: "a", Group: "new", Value: 7}))
			assert.ErrorIs(t, tx.Write(ctx, domain.Mutation{Kind: domain.MutationInsert, Key: "a", Group: "new", Value: 8}), store.ErrQuery)

			assert.Equal(t, int64(7), readInt(t, tx, domain.Row("a")))
			require.NoError(t, tx.Commit(ctx))
			assert.Equal(t, []domain.SeedRow{{Key: "a", Group: "new", Value: 7}}, s.Rows())
		})
	}
}

func TestTx_ReadCommittedWriterProceedsAfterLock(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 0})

	t1 := begin(t, s, domain.ReadCommitted)
	t2 := begin(t, s, domain.ReadCommitted)

	require.NoError(t, t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 1}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 2})
	}()

	require.NoError(t, t1.Commit(ctx))
	require.NoError(t, <-errCh)
	require.NoError(t, t2.Commit(ctx))
	assert.Equal(t, int64(2), s.Rows()[0].Value)
}

func TestTx_LockWaitHonoursContext(t *testing.T) {
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 0})

	t1 := begin(t, s, domain.ReadCommitted)
	t2 := begin(t, s, domain.ReadCommitted)
	require.NoError(t, t1.Write(context.Background(), domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTx_DeadlockDetected(t *testing.T) {
	ctx := context.Background()
	s := seeded(t,
		domain.SeedRow{Key: "a", Group: "g", Value: 0},
		domain.SeedRow{Key: "b", Group: "g", Value: 0},
	)

	t1 := begin(t, s, domain.ReadCommitted)
	t2 := begin(t, s, domain.ReadCommitted)
	require.NoError(t, t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 1}))
	require.NoError(t, t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "b", Value: 1}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "b", Value: 2})
	}()

	// Wait until t1 is queued behind t2.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return t1.(*Tx).waitingFor != nil
	}, time.Second, 5*time.Millisecond)

	err := t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "a", Value: 2})
	assert.ErrorIs(t, err, store.ErrSerialization)

	require.NoError(t, t2.Rollback(ctx))
	require.NoError(t, <-errCh)
	require.NoError(t, t1.Commit(ctx))
}

func TestTx_SerializableWriteSkew(t *testing.T) {
	ctx := context.Background()
	rows := []domain.SeedRow{
		{Key: "alice", Group: "on-call", Value: 1},
		{Key: "bob", Group: "on-call", Value: 1},
	}

	tests := []struct {
		level      domain.IsolationLevel
		wantAbort  bool
		wantOnCall int64
	}{
		{domain.RepeatableRead, false, 0},
		{domain.Serializable, true, 1},
	}
	for _, tc := range tests {
		t.Run(tc.level.Slug(), func(t *testing.T) {
			s := seeded(t, rows...)
			t1 := begin(t, s, tc.level)
			t2 := begin(t, s, tc.level)

			assert.Equal(t, int64(2), readInt(t, t1, domain.Sum("on-call")))
			assert.Equal(t, int64(2), readInt(t, t2, domain.Sum("on-call")))
			require.NoError(t, t1.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "alice", Value: 0}))
			require.NoError(t, t2.Write(ctx, domain.Mutation{Kind: domain.MutationSet, Key: "bob", Value: 0}))
			require.NoError(t, t2.Commit(ctx))

			err := t1.Commit(ctx)
			if tc.wantAbort {
				assert.ErrorIs(t, err, store.ErrSerialization)
			} else {
				assert.NoError(t, err)
			}

			var sum int64
			for _, r := range s.Rows() {
				sum += r.Value
			}
			assert.Equal(t, tc.wantOnCall, sum)
		})
	}
}

func TestTx_SerializableReadOnlyCommits(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "catalog", Value: 1})

	reader := begin(t, s, domain.Serializable)
	assert.Equal(t, int64(1), readInt(t, reader, domain.Count("catalog")))

	writer := begin(t, s, domain.Serializable)
	require.NoError(t, writer.Write(ctx, domain.Mutation{Kind: domain.MutationInsert, Key: "b", Group: "catalog", Value: 1}))
	require.NoError(t, writer.Commit(ctx))

	assert.Equal(t, int64(1), readInt(t, reader, domain.Count("catalog")))
	assert.NoError(t, reader.Commit(ctx))
}

func TestTx_FinishedAndClosed(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, domain.SeedRow{Key: "a", Group: "g", Value: 1})

	tx := begin(t, s, domain.ReadCommitted)
	require.NoError(t, tx.Commit(ctx))
	_, err := tx.Read(ctx, domain.Row("a"))
	assert.ErrorIs(t, err, store.ErrTxDone)
	assert.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)
	assert.NoError(t, tx.Rollback(ctx), "rollback is always safe")

	live := begin(t, s, domain.ReadCommitted)
	require.NoError(t, s.Close())

	_, err = s.Begin(ctx, domain.ReadCommitted)
	assert.ErrorIs(t, err, store.ErrConnection)
	_, err = live.Read(ctx, domain.Row("a"))
	assert.ErrorIs(t, err, store.ErrConnection)
	assert.NoError(t, live.Rollback(ctx))
}
