package harness

import (
	"github.com/phrazzld/isocheck/internal/domain"
)

func always(v domain.Verdict) func(domain.IsolationLevel) domain.Verdict {
	return func(domain.IsolationLevel) domain.Verdict { return v }
}

func preventedAt(levels ...domain.IsolationLevel) func(domain.IsolationLevel) domain.Verdict {
	return func(level domain.IsolationLevel) domain.Verdict {
		for _, l := range levels {
			if l == level {
				return domain.AnomalyPrevented
			}
		}
		return domain.AnomalyObserved
	}
}

func dirtyReadScenario() *Scenario {
	return &Scenario{
		Name:    "dirty-read",
		Anomaly: "dirty read",
		Seed:    []domain.SeedRow{{Key: "acct", Group: "accounts", Value: 100}},
		Workers: []Worker{
			{ID: "T1", Steps: []Step{
				Set("acct", 999),
				Raise("t1-written"),
				WaitFor("t1-rollback-ok"),
				Rollback(),
			}},
			{ID: "T2", Steps: []Step{
				WaitFor("t1-written"),
				Read("value", domain.Row("acct")),
				Raise("t1-rollback-ok"),
				Commit(),
			}},
		},
		Predicate: ValueEquals("T2", "value", 999),
		Expect:    always(domain.AnomalyPrevented),
	}
}

func phantomScenario() *Scenario {
	return &Scenario{
		Name:    "phantom-read",
		Anomaly: "phantom read",
		Seed:    []domain.SeedRow{{Key: "item-1", Group: "catalog", Value: 1}},
		Workers: []Worker{
			{ID: "T1", Steps: []Step{
				Read("first", domain.Count("catalog")),
				Raise("t1-first-count"),
				WaitFor("t2-inserted"),
				Read("second", domain.Count("catalog")),
				Commit(),
			}},
			{ID: "T2", Steps: []Step{
				WaitFor("t1-first-count"),
				Insert("item-2", "catalog", 1),
				Commit(),
				Raise("t2-inserted"),
			}},
		},
		Predicate: ValuesDiffer("T1", "first", "second"),
		Expect:    preventedAt(domain.RepeatableRead, domain.Serializable),
	}
}

func writeConflictScenario() *Scenario {
	return &Scenario{
		Name:    "write-conflict",
		Anomaly: "concurrent update",
		Seed:    []domain.SeedRow{{Key: "seat", Group: "seats", Value: 0}},
		Workers: []Worker{
			{ID: "T1", Steps: []Step{
				Set("seat", 1),
				Raise("t1-wrote"),
				WaitFor("t2-read"),
				Commit(),
			}},
			{ID: "T2", Steps: []Step{
				WaitFor("t1-wrote"),
				Read("before", domain.Row("seat")),
				Raise("t2-read"),
				Set("seat", 2),
				Commit(),
			}},
		},
		Predicate: AllCommitted("T1", "T2"),
		Expect:    preventedAt(domain.RepeatableRead, domain.Serializable),
	}
}
