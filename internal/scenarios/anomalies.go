package scenarios

import (
	"fmt"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/harness"
)

// Scenario names.
const (
	NameDirtyRead         = "dirty-read"
	NameNonRepeatableRead = "non-repeatable-read"
	NamePhantomRead       = "phantom-read"
	NameLostUpdate        = "lost-update"
	NameWriteSkew         = "write-skew"
	NameWriteConflict     = "write-conflict"
)

// DirtyRead checks whether T2 can see T1's uncommitted write. PostgreSQL runs
// READ UNCOMMITTED as READ COMMITTED, so the anomaly is prevented everywhere.
func DirtyRead() *harness.Scenario {
	return &harness.Scenario{
		Name:        NameDirtyRead,
		Anomaly:     "dirty read",
		Description: "T2 reads a row T1 has updated but not committed; T1 then rolls back.",
		Seed:        []domain.SeedRow{{Key: "acct", Group: "accounts", Value: 100}},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Set("acct", 999),
				harness.Raise("t1-written"),
				harness.WaitFor("t1-rollback-ok"),
				harness.Rollback(),
			}},
			{ID: "T2", Steps: []harness.Step{
				harness.WaitFor("t1-written"),
				harness.Read("value", domain.Row("acct")),
				harness.Raise("t1-rollback-ok"),
				harness.Commit(),
			}},
		},
		Predicate: harness.ValueEquals("T2", "value", 999),
		Expect:    preventedFrom(domain.ReadUncommitted),
	}
}

// NonRepeatableRead reads the same row twice in T1 while T2 commits an update
// in between. The writer always runs at READ COMMITTED.
func NonRepeatableRead() *harness.Scenario {
	return &harness.Scenario{
		Name:        NameNonRepeatableRead,
		Anomaly:     "non-repeatable read",
		Description: "T1 reads a row twice; between the reads T2 commits a new value for it.",
		Seed:        []domain.SeedRow{{Key: "acct", Group: "accounts", Value: 10}},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Read("first", domain.Row("acct")),
				harness.Raise("t1-first-read"),
				harness.WaitFor("t2-committed"),
				harness.Read("second", domain.Row("acct")),
				harness.Commit(),
			}},
			{ID: "T2", Isolation: harness.At(domain.ReadCommitted), Steps: []harness.Step{
				harness.WaitFor("t1-first-read"),
				harness.Set("acct", 777),
				harness.Commit(),
				harness.Raise("t2-committed"),
			}},
		},
		Predicate: harness.ValuesDiffer("T1", "first", "second"),
		Expect:    preventedFrom(domain.RepeatableRead),
	}
}

// PhantomRead counts a group twice in T1 while T2 inserts a matching row and
// commits in between.
func PhantomRead() *harness.Scenario {
	return &harness.Scenario{
		Name:        NamePhantomRead,
		Anomaly:     "phantom read",
		Description: "T1 counts the rows of a group twice; between the counts T2 inserts a row into it.",
		Seed:        []domain.SeedRow{{Key: "note-1", Group: "demo", Value: 10}},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Read("first", domain.Count("demo")),
				harness.Raise("t1-first-count"),
				harness.WaitFor("t2-inserted"),
				harness.Read("second", domain.Count("demo")),
				harness.Commit(),
			}},
			{ID: "T2", Steps: []harness.Step{
				harness.WaitFor("t1-first-count"),
				harness.Insert("note-2", "demo", 30),
				harness.Commit(),
				harness.Raise("t2-inserted"),
			}},
		},
		Predicate: harness.ValuesDiffer("T1", "first", "second"),
		Expect:    preventedFrom(domain.RepeatableRead),
	}
}

const (
	lostUpdateBalance = 1000
	lostUpdateDeposit = 50
)

// LostUpdate has T1 and T2 both read a balance and write back read+deposit.
// T2 writes after T1 committed, so at READ COMMITTED T1's deposit vanishes.
// An auditor reads the final balance.
func LostUpdate() *harness.Scenario {
	return &harness.Scenario{
		Name:        NameLostUpdate,
		Anomaly:     "lost update",
		Description: "Two read-modify-write deposits race on one balance; an auditor checks the final balance.",
		Seed:        []domain.SeedRow{{Key: "balance", Group: "accounts", Value: lostUpdateBalance}},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Read("before", domain.Row("balance")),
				harness.Raise("t1-read"),
				harness.WaitFor("t2-read"),
				harness.SetFrom("balance", "before", lostUpdateDeposit),
				harness.Commit(),
				harness.Raise("t1-committed"),
			}},
			{ID: "T2", Steps: []harness.Step{
				harness.Read("before", domain.Row("balance")),
				harness.Raise("t2-read"),
				harness.WaitFor("t1-read"),
				harness.WaitFor("t1-committed"),
				harness.SetFrom("balance", "before", lostUpdateDeposit),
				harness.Commit(),
				harness.Raise("t2-done"),
			}},
			{ID: "auditor", Isolation: harness.At(domain.ReadCommitted), Steps: []harness.Step{
				harness.WaitFor("t2-done"),
				harness.Read("final", domain.Row("balance")),
				harness.Commit(),
			}},
		},
		Predicate: lostUpdate,
		Expect:    preventedFrom(domain.RepeatableRead),
	}
}

func lostUpdate(ev harness.Evidence) (domain.Verdict, string) {
	for _, id := range []string{"T1", "T2"} {
		if !ev.Committed(id) {
			out, _ := ev.Outcome(id)
			return domain.AnomalyPrevented, fmt.Sprintf("%s ended %s, so only one deposit was applied", id, out.Kind)
		}
	}
	final, ok := ev.Read("auditor", "final")
	if !ok {
		return domain.AnomalyPrevented, "auditor did not record the final balance"
	}
	want := int64(lostUpdateBalance + 2*lostUpdateDeposit)
	if final.Int != want {
		return domain.AnomalyObserved, fmt.Sprintf("both deposits committed but the balance is %d, not %d", final.Int, want)
	}
	return domain.AnomalyPrevented, fmt.Sprintf("both deposits committed and the balance is %d", final.Int)
}

// WriteSkew is the on-call doctors case: both doctors check that someone else
// is on call, then each takes themselves off. Only SERIALIZABLE keeps at least
// one doctor on call.
func WriteSkew() *harness.Scenario {
	return &harness.Scenario{
		Name:        NameWriteSkew,
		Anomaly:     "write skew",
		Description: "Two doctors each see two on call and go off call; an auditor counts who is left.",
		Seed: []domain.SeedRow{
			{Key: "alice", Group: "on-call", Value: 1},
			{Key: "bob", Group: "on-call", Value: 1},
		},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Read("on-call", domain.Sum("on-call")),
				harness.Raise("t1-read"),
				harness.WaitFor("t2-read"),
				harness.Set("alice", 0),
				harness.Raise("t1-wrote"),
				harness.WaitFor("t2-committed"),
				harness.Commit(),
				harness.Raise("t1-done"),
			}},
			{ID: "T2", Steps: []harness.Step{
				harness.Read("on-call", domain.Sum("on-call")),
				harness.Raise("t2-read"),
				harness.WaitFor("t1-read"),
				harness.Set("bob", 0),
				harness.WaitFor("t1-wrote"),
				harness.Commit(),
				harness.Raise("t2-committed"),
			}},
			{ID: "auditor", Isolation: harness.At(domain.ReadCommitted), Steps: []harness.Step{
				harness.WaitFor("t1-done"),
				harness.Read("final", domain.Sum("on-call")),
				harness.Commit(),
			}},
		},
		Predicate: writeSkew,
		Expect:    preventedFrom(domain.Serializable),
	}
}

func writeSkew(ev harness.Evidence) (domain.Verdict, string) {
	final, ok := ev.Read("auditor", "final")
	if !ok {
		return domain.AnomalyPrevented, "auditor did not record who is on call"
	}
	if final.Int == 0 {
		return domain.AnomalyObserved, "both doctors went off call after each saw the other on call"
	}
	if failed := ev.SerializationFailures(); len(failed) > 0 {
		return domain.AnomalyPrevented, fmt.Sprintf("%d still on call; %s aborted with a serialization failure", final.Int, failed[0])
	}
	return domain.AnomalyPrevented, fmt.Sprintf("%d still on call", final.Int)
}

// WriteConflict has T2 update a row T1 has updated but not yet committed.
// From REPEATABLE READ on, PostgreSQL aborts T2 once T1 commits.
func WriteConflict() *harness.Scenario {
	return &harness.Scenario{
		Name:        NameWriteConflict,
		Anomaly:     "concurrent update",
		Description: "T1 and T2 update the same row; T1 commits while T2 waits on its row lock.",
		Seed:        []domain.SeedRow{{Key: "seat", Group: "seats", Value: 0}},
		Workers: []harness.Worker{
			{ID: "T1", Steps: []harness.Step{
				harness.Set("seat", 1),
				harness.Raise("t1-wrote"),
				harness.WaitFor("t2-read"),
				harness.Commit(),
			}},
			{ID: "T2", Steps: []harness.Step{
				harness.WaitFor("t1-wrote"),
				harness.Read("before", domain.Row("seat")),
				harness.Raise("t2-read"),
				harness.Set("seat", 2),
				harness.Commit(),
			}},
		},
		Predicate: harness.AllCommitted("T1", "T2"),
		Expect:    preventedFrom(domain.RepeatableRead),
	}
}
