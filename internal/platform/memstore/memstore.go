package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/btree"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/store"
)

// Conflict messages, worded as PostgreSQL reports them.
const (
	msgConcurrentUpdate = "could not serialize access due to concurrent update"
	msgReadWriteDeps    = "could not serialize access due to read/write dependencies among transactions"
	msgDeadlock         = "deadlock detected"
)

// version is one committed state of a row.
type version struct {
	seq     uint64
	group   string
	value   int64
	deleted bool
}

// chain holds the committed versions of a row, oldest first, and the
// transaction currently holding its write lock.
type chain struct {
	versions []version
	holder   *Tx
}

func (c *chain) latest() (version, bool) {
	if len(c.versions) == 0 {
		return version{}, false
	}
	return c.versions[len(c.versions)-1], true
}

// at returns the newest version committed at or before seq.
func (c *chain) at(seq uint64) (version, bool) {
	for i := len(c.versions) - 1; i >= 0; i-- {
		if c.versions[i].seq <= seq {
			return c.versions[i], true
		}
	}
	return version{}, false
}

// commitRecord remembers what a committed serializable transaction read and
// wrote while any transaction it overlapped with may still commit.
type commitRecord struct {
	seq    uint64
	reads  *btree.Set[string]
	writes *btree.Set[string]
}

// Store is a store.TxStore kept entirely in memory. The zero value is not
// usable; call New.
type Store struct {
	mu        sync.Mutex
	rows      *btree.Map[string, *chain]
	seq       uint64
	nextID    uint64
	active    map[*Tx]struct{}
	committed []commitRecord
	closed    bool
	logger    *slog.Logger
}

var _ store.TxStore = (*Store)(nil)

// New returns an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		rows:   new(btree.Map[string, *chain]),
		active: make(map[*Tx]struct{}),
		logger: logger.With(slog.String("component", "memstore")),
	}
}

// Effective reports the level the store enforces for level.
func (s *Store) Effective(level domain.IsolationLevel) domain.IsolationLevel {
	if level == domain.ReadUncommitted {
		return domain.ReadCommitted
	}
	return level
}

// Begin starts a transaction at level.
func (s *Store) Begin(ctx context.Context, level domain.IsolationLevel) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, store.NewStoreError("begin", "", fmt.Sprintf("unsupported isolation level %d", uint8(level)), store.ErrQuery)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.NewStoreError("begin", "", "store is closed", store.ErrConnection)
	}

	s.nextID++
	tx := &Tx{
		store:  s,
		id:     s.nextID,
		level:  s.Effective(level),
		writes: new(btree.Map[string, version]),
		reads:  new(btree.Set[string]),
		wrote:  new(btree.Set[string]),
		done:   make(chan struct{}),
	}
	s.active[tx] = struct{}{}
	return tx, nil
}

// Reset replaces every row with rows as a single committed change.
func (s *Store) Reset(ctx context.Context, rows []domain.SeedRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fresh := new(btree.Map[string, *chain])

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.NewStoreError("reset", "", "store is closed", store.ErrConnection)
	}

	s.seq++
	for _, r := range rows {
		if r.Key == "" || r.Group == "" {
			return store.NewStoreError("reset", r.Key, "seed row needs a key and a group", store.ErrQuery)
		}
		if _, ok := fresh.Get(r.Key); ok {
			return store.NewStoreError("reset", r.Key, "duplicate key", store.ErrQuery)
		}
		fresh.Set(r.Key, &chain{versions: []version{{seq: s.seq, group: r.Group, value: r.Value}}})
	}

	s.rows = fresh
	s.committed = nil
	s.logger.Debug("store reset", "rows", len(rows), "seq", s.seq)
	return nil
}

// Rows returns the latest committed rows ordered by key.
func (s *Store) Rows() []domain.SeedRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SeedRow
	s.rows.Scan(func(key string, c *chain) bool {
		if v, ok := c.latest(); ok && !v.deleted {
			out = append(out, domain.SeedRow{Key: key, Group: v.group, Value: v.value})
		}
		return true
	})
	return out
}

// Close makes the store unreachable: Begin and every statement of a live
// transaction fail with store.ErrConnection afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// finish releases tx's locks and bookkeeping. Caller holds s.mu.
func (s *Store) finish(tx *Tx) {
	tx.writes.Scan(func(key string, _ version) bool {
		if c, ok := s.rows.Get(key); ok && c.holder == tx {
			c.holder = nil
		}
		return true
	})
	tx.finished = true
	delete(s.active, tx)
	close(tx.done)
	s.prune()
}

// prune drops commit records no active serializable transaction overlaps.
// Caller holds s.mu.
func (s *Store) prune() {
	if len(s.committed) == 0 {
		return
	}

	horizon := s.seq
	for tx := range s.active {
		if tx.level == domain.Serializable && tx.hasSnapshot && tx.snapshot < horizon {
			horizon = tx.snapshot
		}
	}

	kept := s.committed[:0]
	for _, rec := range s.committed {
		if rec.seq > horizon {
			kept = append(kept, rec)
		}
	}
	s.committed = kept
}

func rowKey(key string) string     { return "row:" + key }
func groupKey(group string) string { return "group:" + group }

// intersects reports whether a and b share an element.
func intersects(a, b *btree.Set[string]) bool {
	found := false
	a.Scan(func(k string) bool {
		if b.Contains(k) {
			found = true
			return false
		}
		return true
	})
	return found
}
