package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phrazzld/isocheck/internal/domain"
)

// Evidence is what a predicate sees: the merged observation log and the
// terminal outcome of every worker.
type Evidence struct {
	Log      []domain.Observation
	Outcomes map[string]domain.Outcome
}

// Read returns the value worker read under label.
func (e Evidence) Read(worker, label string) (domain.Value, bool) {
	for _, o := range e.Log {
		if o.Kind == domain.ObservationRead && o.Worker == worker && o.Label == label && o.Value != nil {
			return *o.Value, true
		}
	}
	return domain.Value{}, false
}

// Outcome returns the terminal outcome of worker.
func (e Evidence) Outcome(worker string) (domain.Outcome, bool) {
	out, ok := e.Outcomes[worker]
	return out, ok
}

// Committed reports whether worker committed.
func (e Evidence) Committed(worker string) bool {
	out, ok := e.Outcomes[worker]
	return ok && out.Kind == domain.OutcomeCommitted
}

// SerializationFailures returns the sorted IDs of workers whose transaction
// the store aborted.
func (e Evidence) SerializationFailures() []string {
	var ids []string
	for id, out := range e.Outcomes {
		if out.Kind == domain.OutcomeSerializationFailure {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Classify applies the scenario's predicate to the collected facts. It never
// touches a store, so a recorded log always yields the same verdict.
func Classify(sc *Scenario, log []domain.Observation, outcomes map[string]domain.Outcome) (domain.Verdict, string) {
	if sc == nil || sc.Predicate == nil {
		return domain.AnomalyPrevented, "scenario has no predicate"
	}
	verdict, why := sc.Predicate(Evidence{Log: log, Outcomes: outcomes})
	if verdict != domain.AnomalyObserved {
		verdict = domain.AnomalyPrevented
	}
	return verdict, why
}

// aborted explains a missing read by the worker's serialization failure, if
// that is what happened.
func aborted(ev Evidence, worker string) (string, bool) {
	if out, ok := ev.Outcome(worker); ok && out.Kind == domain.OutcomeSerializationFailure {
		return fmt.Sprintf("%s was aborted with a serialization failure before completing its reads", worker), true
	}
	return "", false
}

// ValuesDiffer observes the anomaly when the two reads first and second of
// worker returned different values.
func ValuesDiffer(worker, first, second string) Predicate {
	return func(ev Evidence) (domain.Verdict, string) {
		a, okA := ev.Read(worker, first)
		b, okB := ev.Read(worker, second)
		if !okA || !okB {
			if why, ok := aborted(ev, worker); ok {
				return domain.AnomalyPrevented, why
			}
			return domain.AnomalyPrevented, fmt.Sprintf("%s did not record both %q and %q", worker, first, second)
		}
		if a != b {
			return domain.AnomalyObserved, fmt.Sprintf("%s read %s then %s within one transaction", worker, a, b)
		}
		return domain.AnomalyPrevented, fmt.Sprintf("%s read %s twice within one transaction", worker, a)
	}
}

// ValueEquals observes the anomaly when worker's read label returned want.
func ValueEquals(worker, label string, want int64) Predicate {
	return func(ev Evidence) (domain.Verdict, string) {
		v, ok := ev.Read(worker, label)
		if !ok {
			if why, ok := aborted(ev, worker); ok {
				return domain.AnomalyPrevented, why
			}
			return domain.AnomalyPrevented, fmt.Sprintf("%s did not record %q", worker, label)
		}
		if v.Found && v.Int == want {
			return domain.AnomalyObserved, fmt.Sprintf("%s read %d for %q", worker, want, label)
		}
		return domain.AnomalyPrevented, fmt.Sprintf("%s read %s for %q, not %d", worker, v, label, want)
	}
}

// AllCommitted observes the anomaly when every named worker committed. It
// expresses conflicts a correct store resolves by aborting at least one side.
func AllCommitted(workers ...string) Predicate {
	return func(ev Evidence) (domain.Verdict, string) {
		for _, id := range workers {
			if !ev.Committed(id) {
				out, _ := ev.Outcome(id)
				return domain.AnomalyPrevented, fmt.Sprintf("%s ended %s", id, out.Kind)
			}
		}
		return domain.AnomalyObserved, fmt.Sprintf("conflicting transactions %s all committed", strings.Join(workers, ", "))
	}
}
