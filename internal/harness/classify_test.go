package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/isocheck/internal/domain"
)

func readObs(worker, label string, v int64) domain.Observation {
	val := domain.Value{Int: v, Found: true}
	return domain.Observation{Worker: worker, Kind: domain.ObservationRead, Label: label, Value: &val}
}

func TestClassify_FromRecordedLog(t *testing.T) {
	t.Parallel()

	committed := domain.Outcome{Kind: domain.OutcomeCommitted}
	failed := domain.Outcome{Kind: domain.OutcomeSerializationFailure, Detail: "could not serialize access"}

	tests := []struct {
		name     string
		sc       *Scenario
		log      []domain.Observation
		outcomes map[string]domain.Outcome
		want     domain.Verdict
	}{
		{
			name:     "phantom observed",
			sc:       phantomScenario(),
			log:      []domain.Observation{readObs("T1", "first", 1), readObs("T1", "second", 2)},
			outcomes: map[string]domain.Outcome{"T1": committed, "T2": committed},
			want:     domain.AnomalyObserved,
		},
		{
			name:     "phantom prevented",
			sc:       phantomScenario(),
			log:      []domain.Observation{readObs("T1", "first", 1), readObs("T1", "second", 1)},
			outcomes: map[string]domain.Outcome{"T1": committed, "T2": committed},
			want:     domain.AnomalyPrevented,
		},
		{
			name:     "reader aborted before second read",
			sc:       phantomScenario(),
			log:      []domain.Observation{readObs("T1", "first", 1)},
			outcomes: map[string]domain.Outcome{"T1": failed, "T2": committed},
			want:     domain.AnomalyPrevented,
		},
		{
			name:     "dirty read observed",
			sc:       dirtyReadScenario(),
			log:      []domain.Observation{readObs("T2", "value", 999)},
			outcomes: map[string]domain.Outcome{"T1": {Kind: domain.OutcomeRolledBack}, "T2": committed},
			want:     domain.AnomalyObserved,
		},
		{
			name:     "dirty read prevented",
			sc:       dirtyReadScenario(),
			log:      []domain.Observation{readObs("T2", "value", 100)},
			outcomes: map[string]domain.Outcome{"T1": {Kind: domain.OutcomeRolledBack}, "T2": committed},
			want:     domain.AnomalyPrevented,
		},
		{
			name:     "conflict handled by serialization failure",
			sc:       writeConflictScenario(),
			outcomes: map[string]domain.Outcome{"T1": committed, "T2": failed},
			want:     domain.AnomalyPrevented,
		},
		{
			name:     "conflicting writers both committed",
			sc:       writeConflictScenario(),
			outcomes: map[string]domain.Outcome{"T1": committed, "T2": committed},
			want:     domain.AnomalyObserved,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, why := Classify(tc.sc, tc.log, tc.outcomes)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, why)

			// Same facts, same verdict.
			again, _ := Classify(tc.sc, tc.log, tc.outcomes)
			assert.Equal(t, got, again)
		})
	}
}

func TestClassify_NoPredicate(t *testing.T) {
	t.Parallel()

	verdict, why := Classify(&Scenario{Name: "empty"}, nil, nil)
	assert.Equal(t, domain.AnomalyPrevented, verdict)
	assert.Contains(t, why, "no predicate")
}

func TestEvidence(t *testing.T) {
	t.Parallel()

	ev := Evidence{
		Log: []domain.Observation{readObs("T1", "a", 5)},
		Outcomes: map[string]domain.Outcome{
			"T1": {Kind: domain.OutcomeCommitted},
			"T3": {Kind: domain.OutcomeSerializationFailure},
			"T2": {Kind: domain.OutcomeSerializationFailure},
		},
	}

	v, ok := ev.Read("T1", "a")
	assert.True(t, ok)
	assert.Equal(t, int64(5), v.Int)

	_, ok = ev.Read("T2", "a")
	assert.False(t, ok)

	assert.True(t, ev.Committed("T1"))
	assert.False(t, ev.Committed("T2"))
	assert.Equal(t, []string{"T2", "T3"}, ev.SerializationFailures())
}
