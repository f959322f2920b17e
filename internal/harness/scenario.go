package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phrazzld/isocheck/internal/domain"
)

// Worker is the step sequence of one transaction in a scenario.
type Worker struct {
	ID string
	// Isolation pins this worker to a level regardless of the level the run
	// was started with. Nil runs the worker at the run's level.
	Isolation *domain.IsolationLevel
	Steps     []Step
}

// Predicate decides from the collected evidence whether the anomaly occurred
// and explains why. It must be a pure function of its argument.
type Predicate func(ev Evidence) (domain.Verdict, string)

// Scenario is one anomaly test: per-worker step sequences, the baseline rows
// the store is reset to before running, the anomaly predicate and the verdict
// expected at each isolation level.
type Scenario struct {
	Name        string
	Anomaly     string
	Description string
	Seed        []domain.SeedRow
	Workers     []Worker
	Predicate   Predicate
	Expect      func(level domain.IsolationLevel) domain.Verdict
}

// At returns a pointer to level for use as a Worker.Isolation override.
func At(level domain.IsolationLevel) *domain.IsolationLevel {
	return &level
}

// levelFor returns the level worker w runs at when the run uses level.
func (w Worker) levelFor(level domain.IsolationLevel) domain.IsolationLevel {
	if w.Isolation != nil {
		return *w.Isolation
	}
	return level
}

// WorkerIDs returns the worker IDs in declaration order.
func (s *Scenario) WorkerIDs() []string {
	ids := make([]string, len(s.Workers))
	for i, w := range s.Workers {
		ids[i] = w.ID
	}
	return ids
}

// Validate checks that the scenario can run as written. It never touches a
// store. Every WaitForSignal must be matched by exactly one RaiseSignal in a
// different worker, and the signal graph must let every worker finish.
func (s *Scenario) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Name == "" {
		addf("scenario has no name")
	}
	if len(s.Workers) < 2 {
		addf("scenario needs at least two workers, has %d", len(s.Workers))
	}
	if s.Predicate == nil {
		addf("scenario has no anomaly predicate")
	}
	if s.Expect == nil {
		addf("scenario has no expected verdicts")
	}

	seedKeys := make(map[string]bool)
	for i, row := range s.Seed {
		if row.Key == "" || row.Group == "" {
			addf("seed row %d needs a key and a group", i)
			continue
		}
		if seedKeys[row.Key] {
			addf("seed row %q appears twice", row.Key)
		}
		seedKeys[row.Key] = true
	}

	raisers := make(map[string][]string)
	type wait struct {
		worker string
		step   int
		signal string
	}
	var waits []wait
	ids := make(map[string]bool)

	for _, w := range s.Workers {
		if w.ID == "" {
			addf("worker without an ID")
			continue
		}
		if ids[w.ID] {
			addf("worker ID %q is used twice", w.ID)
			continue
		}
		ids[w.ID] = true

		if w.Isolation != nil && !w.Isolation.Valid() {
			addf("worker %s: invalid isolation override %d", w.ID, uint8(*w.Isolation))
		}
		if len(w.Steps) == 0 {
			addf("worker %s has no steps", w.ID)
		}

		labels := make(map[string]bool)
		terminated := false
		for i, step := range w.Steps {
			if step == nil {
				addf("worker %s step %d is nil", w.ID, i)
				continue
			}
			if terminated && isStatement(step) {
				addf("worker %s step %d: %s after the transaction ended", w.ID, i, step)
			}
			if terminated && isTerminal(step) {
				addf("worker %s step %d: second %s", w.ID, i, step)
			}

			switch st := step.(type) {
			case ReadStep:
				if st.Label == "" {
					addf("worker %s step %d: read without a label", w.ID, i)
				} else if labels[st.Label] {
					addf("worker %s step %d: read label %q is used twice", w.ID, i, st.Label)
				}
				labels[st.Label] = true
				if err := st.Target.Validate(); err != nil {
					addf("worker %s step %d: %v", w.ID, i, err)
				}
			case WriteStep:
				if err := st.Mutation.Validate(); err != nil {
					addf("worker %s step %d: %v", w.ID, i, err)
				}
				if st.FromRead != "" {
					if st.Mutation.Kind != domain.MutationSet {
						addf("worker %s step %d: only set can derive its value from a read", w.ID, i)
					}
					if !labels[st.FromRead] {
						addf("worker %s step %d: write derives from unknown or later read %q", w.ID, i, st.FromRead)
					}
				}
			case WaitStep:
				if st.Signal == "" {
					addf("worker %s step %d: wait without a signal name", w.ID, i)
				} else {
					waits = append(waits, wait{worker: w.ID, step: i, signal: st.Signal})
				}
			case RaiseStep:
				if st.Signal == "" {
					addf("worker %s step %d: raise without a signal name", w.ID, i)
				} else {
					raisers[st.Signal] = append(raisers[st.Signal], w.ID)
				}
			case SleepStep:
				if st.Duration < 0 {
					addf("worker %s step %d: negative sleep", w.ID, i)
				}
			}

			if isTerminal(step) {
				terminated = true
			}
		}
	}

	for _, wt := range waits {
		from := raisers[wt.signal]
		switch {
		case len(from) == 0:
			addf("worker %s step %d waits for %q, which no worker raises", wt.worker, wt.step, wt.signal)
		case len(from) > 1:
			addf("signal %q is raised %d times (by %s); it must be raised exactly once",
				wt.signal, len(from), strings.Join(from, ", "))
		case from[0] == wt.worker:
			addf("worker %s step %d waits for %q, which only it raises", wt.worker, wt.step, wt.signal)
		}
	}

	if len(problems) == 0 {
		if stuck := s.deadlocked(); len(stuck) > 0 {
			problems = append(problems, "signals can never all be raised: "+strings.Join(stuck, "; "))
		}
	}

	if len(problems) > 0 {
		problems = dedupe(problems)
		return &MalformedScenarioError{Scenario: s.Name, Problems: problems}
	}
	return nil
}

// deadlocked replays the signal graph without a store and returns a
// description of every worker left blocked, or nil if all workers can finish.
func (s *Scenario) deadlocked() []string {
	pos := make([]int, len(s.Workers))
	raised := make(map[string]bool)

	for {
		progressed := false
		done := 0
		for i, w := range s.Workers {
			for pos[i] < len(w.Steps) {
				step := w.Steps[pos[i]]
				if ws, ok := step.(WaitStep); ok && !raised[ws.Signal] {
					break
				}
				if rs, ok := step.(RaiseStep); ok {
					raised[rs.Signal] = true
				}
				pos[i]++
				progressed = true
			}
			if pos[i] == len(w.Steps) {
				done++
			}
		}
		if done == len(s.Workers) {
			return nil
		}
		if !progressed {
			break
		}
	}

	var stuck []string
	for i, w := range s.Workers {
		if pos[i] < len(w.Steps) {
			ws := w.Steps[pos[i]].(WaitStep)
			stuck = append(stuck, fmt.Sprintf("worker %s blocks at step %d waiting for %q", w.ID, pos[i], ws.Signal))
		}
	}
	return stuck
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, p := range in {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Signals returns the sorted names of every signal the scenario raises.
func (s *Scenario) Signals() []string {
	set := make(map[string]bool)
	for _, w := range s.Workers {
		for _, step := range w.Steps {
			if rs, ok := step.(RaiseStep); ok {
				set[rs.Signal] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
