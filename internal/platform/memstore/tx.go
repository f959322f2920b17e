package memstore

import (
	"context"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/store"
)

// Tx is a transaction on a Store. Pending writes live in the transaction
// until commit; the rows they touch stay write-locked until it finishes.
type Tx struct {
	store *Store
	id    uint64
	level domain.IsolationLevel

	snapshot    uint64
	hasSnapshot bool

	writes *btree.Map[string, version]
	reads  *btree.Set[string]
	wrote  *btree.Set[string]

	waitingFor *Tx
	finished   bool
	done       chan struct{}
}

var _ store.Tx = (*Tx)(nil)

// statementSnapshot returns the snapshot the next statement reads from.
// Caller holds the store lock.
func (t *Tx) statementSnapshot() uint64 {
	if t.level == domain.ReadCommitted {
		return t.store.seq
	}
	if !t.hasSnapshot {
		t.snapshot = t.store.seq
		t.hasSnapshot = true
	}
	return t.snapshot
}

// check fails a statement on a finished transaction or a closed store.
// Caller holds the store lock.
func (t *Tx) check(op, subject string) error {
	if t.finished {
		return store.NewStoreError(op, subject, "transaction is finished", store.ErrTxDone)
	}
	if t.store.closed {
		return store.NewStoreError(op, subject, "store is closed", store.ErrConnection)
	}
	return nil
}

// visible returns the row state this transaction sees at snap, its own
// pending write first.
func (t *Tx) visible(key string, c *chain, snap uint64) (version, bool) {
	if v, ok := t.writes.Get(key); ok {
		return v, !v.deleted
	}
	if c == nil {
		return version{}, false
	}
	v, ok := c.at(snap)
	return v, ok && !v.deleted
}

// Read evaluates target against the transaction's snapshot.
func (t *Tx) Read(ctx context.Context, target domain.Target) (domain.Value, error) {
	if err := ctx.Err(); err != nil {
		return domain.Value{}, err
	}
	if err := target.Validate(); err != nil {
		return domain.Value{}, store.NewStoreError("read", target.String(), "malformed target", fmt.Errorf("%w: %v", store.ErrQuery, err))
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.check("read", target.String()); err != nil {
		return domain.Value{}, err
	}
	snap := t.statementSnapshot()

	if target.Kind == domain.TargetRow {
		t.reads.Insert(rowKey(target.Key))
		c, _ := s.rows.Get(target.Key)
		v, ok := t.visible(target.Key, c, snap)
		if !ok {
			return domain.Value{}, nil
		}
		return domain.Value{Int: v.value, Found: true}, nil
	}

	t.reads.Insert(groupKey(target.Group))
	var count, sum int64
	match := func(v version) {
		if v.group == target.Group {
			count++
			sum += v.value
		}
	}
	s.rows.Scan(func(key string, c *chain) bool {
		if v, ok := t.visible(key, c, snap); ok {
			match(v)
		}
		return true
	})
	// Rows this transaction inserted that no committed chain knows yet.
	t.writes.Scan(func(key string, v version) bool {
		if _, ok := s.rows.Get(key); !ok && !v.deleted {
			match(v)
		}
		return true
	})

	if target.Kind == domain.TargetCount {
		return domain.Value{Int: count, Found: true}, nil
	}
	return domain.Value{Int: sum, Found: true}, nil
}

// Write applies m as a pending change, waiting for the row lock if another
// transaction holds it.
func (t *Tx) Write(ctx context.Context, m domain.Mutation) error {
	if err := m.Validate(); err != nil {
		return store.NewStoreError("write", m.Key, "malformed mutation", fmt.Errorf("%w: %v", store.ErrQuery, err))
	}

	s := t.store
	c, err := t.lock(ctx, m.Key)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	snap := t.statementSnapshot()

	if t.level != domain.ReadCommitted && c != nil {
		if _, own := t.writes.Get(m.Key); !own {
			if latest, ok := c.latest(); ok && latest.seq > snap {
				return store.NewStoreError("write", m.Key, msgConcurrentUpdate, store.ErrSerialization)
			}
		}
	}

	current, exists := t.visible(m.Key, c, snap)
	next := version{value: m.Value}

	switch m.Kind {
	case domain.MutationSet:
		if !exists {
			return store.NewStoreError("write", m.Key, "no such row", store.ErrQuery)
		}
		next.group = current.group
	case domain.MutationDelete:
		if !exists {
			return store.NewStoreError("write", m.Key, "no such row", store.ErrQuery)
		}
		next.group = current.group
		next.value = current.value
		next.deleted = true
	case domain.MutationInsert:
		// An own pending write decides alone; otherwise a row committed
		// after the snapshot still counts.
		latestExists := exists
		if _, own := t.writes.Get(m.Key); !own && c != nil {
			if latest, ok := c.latest(); ok && !latest.deleted {
				latestExists = true
			}
		}
		if latestExists {
			return store.NewStoreError("write", m.Key, "duplicate key value violates unique constraint", store.ErrQuery)
		}
		next.group = m.Group
	}

	if c == nil {
		c = &chain{}
		s.rows.Set(m.Key, c)
	}
	c.holder = t
	t.writes.Set(m.Key, next)
	t.wrote.Insert(rowKey(m.Key))
	t.wrote.Insert(groupKey(next.group))
	if exists {
		t.wrote.Insert(groupKey(current.group))
	}
	return nil
}

// lock waits until no other transaction holds the write lock on key and
// returns with the store lock held. A wait that would close a cycle fails
// with a deadlock serialization error.
func (t *Tx) lock(ctx context.Context, key string) (*chain, error) {
	s := t.store
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		if err := t.check("write", key); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		// A write that waits still sees the data as of its statement start.
		t.statementSnapshot()

		c, _ := s.rows.Get(key)
		if c == nil || c.holder == nil || c.holder == t {
			t.waitingFor = nil
			return c, nil
		}

		holder := c.holder
		for x := holder; x != nil; x = x.waitingFor {
			if x == t {
				t.waitingFor = nil
				s.mu.Unlock()
				return nil, store.NewStoreError("write", key, msgDeadlock, store.ErrSerialization)
			}
		}
		t.waitingFor = holder
		s.mu.Unlock()

		select {
		case <-holder.done:
		case <-ctx.Done():
			s.mu.Lock()
			t.waitingFor = nil
			s.mu.Unlock()
			return nil, ctx.Err()
		}
	}
}

// Commit publishes the pending writes atomically.
func (t *Tx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.check("commit", ""); err != nil {
		return err
	}

	if t.level == domain.Serializable && t.hasSnapshot && t.pivot() {
		s.logger.Debug("aborting dangerous structure", "tx", t.id)
		s.finish(t)
		return store.NewStoreError("commit", "", msgReadWriteDeps, store.ErrSerialization)
	}

	if t.writes.Len() > 0 {
		s.seq++
		t.writes.Scan(func(key string, v version) bool {
			c, ok := s.rows.Get(key)
			if !ok {
				c = &chain{}
				s.rows.Set(key, c)
			}
			v.seq = s.seq
			c.versions = append(c.versions, v)
			return true
		})
	}

	if t.level == domain.Serializable {
		s.committed = append(s.committed, commitRecord{seq: s.seq, reads: t.reads, writes: t.wrote})
	}

	s.logger.Debug("transaction committed", "tx", t.id, "writes", t.writes.Len(), "seq", s.seq)
	s.finish(t)
	return nil
}

// pivot reports whether committing t would complete a dangerous structure:
// a concurrent committed transaction read something t writes, and t read
// something a concurrent committed transaction wrote. Caller holds the store
// lock.
func (t *Tx) pivot() bool {
	var in, out bool
	for _, rec := range t.store.committed {
		if rec.seq <= t.snapshot {
			continue
		}
		if !in && intersects(rec.reads, t.wrote) {
			in = true
		}
		if !out && intersects(t.reads, rec.writes) {
			out = true
		}
		if in && out {
			return true
		}
	}
	return false
}

// Rollback discards the pending writes. Rolling back a finished transaction
// is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.finished {
		return nil
	}
	s.finish(t)
	return nil
}
