package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutcomeKind is the terminal state of one transaction.
type OutcomeKind string

// Terminal outcomes.
const (
	OutcomeCommitted            OutcomeKind = "committed"
	OutcomeRolledBack           OutcomeKind = "rolled_back"
	OutcomeSerializationFailure OutcomeKind = "serialization_failure"
)

// Outcome is the terminal result of a transaction. Detail carries the store's
// conflict message for serialization failures.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

func (o Outcome) String() string {
	if o.Detail == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s (%s)", o.Kind, o.Detail)
}

// ObservationKind distinguishes read results from terminal results.
type ObservationKind string

const (
	ObservationRead         ObservationKind = "read"
	ObservationCommitResult ObservationKind = "commit_result"
)

// Observation is one fact recorded by a worker while it executes. The
// observation log of a run is ordered by Seq, which is assigned on append.
type Observation struct {
	Seq     int             `json:"seq"`
	Worker  string          `json:"worker"`
	Step    int             `json:"step"`
	Kind    ObservationKind `json:"kind"`
	Label   string          `json:"label,omitempty"`
	Target  *Target         `json:"target,omitempty"`
	Value   *Value          `json:"value,omitempty"`
	Outcome *Outcome        `json:"outcome,omitempty"`
	At      time.Time       `json:"at"`
}

func (o Observation) String() string {
	switch o.Kind {
	case ObservationRead:
		target, value := "?", "?"
		if o.Target != nil {
			target = o.Target.String()
		}
		if o.Value != nil {
			value = o.Value.String()
		}
		return fmt.Sprintf("#%d [%s] step %d read %s %s = %s", o.Seq, o.Worker, o.Step, o.Label, target, value)
	case ObservationCommitResult:
		outcome := "?"
		if o.Outcome != nil {
			outcome = o.Outcome.String()
		}
		return fmt.Sprintf("#%d [%s] step %d %s", o.Seq, o.Worker, o.Step, outcome)
	}
	return fmt.Sprintf("#%d [%s] step %d %s", o.Seq, o.Worker, o.Step, o.Kind)
}

// Verdict is the classification of a run.
type Verdict string

const (
	AnomalyObserved  Verdict = "anomaly_observed"
	AnomalyPrevented Verdict = "anomaly_prevented"
)

// VerificationResult is produced once per run and never modified afterwards.
type VerificationResult struct {
	RunID              uuid.UUID          `json:"run_id"`
	Scenario           string             `json:"scenario"`
	Anomaly            string             `json:"anomaly"`
	Isolation          IsolationLevel     `json:"isolation"`
	EffectiveIsolation IsolationLevel     `json:"effective_isolation"`
	Verdict            Verdict            `json:"verdict"`
	Expected           Verdict            `json:"expected"`
	Passed             bool               `json:"passed"`
	Explanation        string             `json:"explanation"`
	Log                []Observation      `json:"log"`
	Outcomes           map[string]Outcome `json:"outcomes"`
	StartedAt          time.Time          `json:"started_at"`
	Duration           time.Duration      `json:"duration_ns"`
}

// Status renders the pass/fail label used in reports.
func (r *VerificationResult) Status() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}
