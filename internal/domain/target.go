package domain

import "fmt"

// TargetKind selects what a read measures.
type TargetKind string

// Supported read targets.
const (
	// TargetRow reads the value of a single row by key.
	TargetRow TargetKind = "row"
	// TargetCount counts the live rows of a group.
	TargetCount TargetKind = "count"
	// TargetSum sums the values of the live rows of a group.
	TargetSum TargetKind = "sum"
)

// Target names the row or group a read step observes.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Key   string     `json:"key,omitempty"`
	Group string     `json:"group,omitempty"`
}

// Row targets the value of the row identified by key.
func Row(key string) Target {
	return Target{Kind: TargetRow, Key: key}
}

// Count targets the number of rows in group.
func Count(group string) Target {
	return Target{Kind: TargetCount, Group: group}
}

// Sum targets the sum of values in group.
func Sum(group string) Target {
	return Target{Kind: TargetSum, Group: group}
}

// Validate reports a malformed target.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetRow:
		if t.Key == "" {
			return fmt.Errorf("%w: row target without key", ErrInvalidTarget)
		}
	case TargetCount, TargetSum:
		if t.Group == "" {
			return fmt.Errorf("%w: %s target without group", ErrInvalidTarget, t.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, t.Kind)
	}
	return nil
}

func (t Target) String() string {
	if t.Kind == TargetRow {
		return fmt.Sprintf("row(%s)", t.Key)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Group)
}

// Value is the scalar result of a read. Found is false when a row target
// matched nothing; aggregates are always found.
type Value struct {
	Int   int64 `json:"value"`
	Found bool  `json:"found"`
}

func (v Value) String() string {
	if !v.Found {
		return "<none>"
	}
	return fmt.Sprintf("%d", v.Int)
}

// MutationKind selects what a write does.
type MutationKind string

// Supported writes.
const (
	MutationSet    MutationKind = "set"
	MutationInsert MutationKind = "insert"
	MutationDelete MutationKind = "delete"
)

// Mutation is a single uncommitted write against the shared table.
type Mutation struct {
	Kind  MutationKind `json:"kind"`
	Key   string       `json:"key"`
	Group string       `json:"group,omitempty"`
	Value int64        `json:"value"`
}

// Validate reports a malformed mutation.
func (m Mutation) Validate() error {
	if m.Key == "" {
		return fmt.Errorf("%w: %s without key", ErrInvalidMutation, m.Kind)
	}
	switch m.Kind {
	case MutationSet, MutationDelete:
	case MutationInsert:
		if m.Group == "" {
			return fmt.Errorf("%w: insert of %q without group", ErrInvalidMutation, m.Key)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMutation, m.Kind)
	}
	return nil
}

func (m Mutation) String() string {
	switch m.Kind {
	case MutationSet:
		return fmt.Sprintf("set %s = %d", m.Key, m.Value)
	case MutationInsert:
		return fmt.Sprintf("insert %s into %s = %d", m.Key, m.Group, m.Value)
	case MutationDelete:
		return fmt.Sprintf("delete %s", m.Key)
	}
	return fmt.Sprintf("%s %s", m.Kind, m.Key)
}

// SeedRow is one record of the baseline a scenario seeds before running.
type SeedRow struct {
	Key   string `json:"key"`
	Group string `json:"group"`
	Value int64  `json:"value"`
}
