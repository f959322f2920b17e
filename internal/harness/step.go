package harness

import (
	"fmt"
	"time"

	"github.com/phrazzld/isocheck/internal/domain"
)

// StepKind tags the variant of a Step.
type StepKind string

// Step kinds.
const (
	StepRead     StepKind = "read"
	StepWrite    StepKind = "write"
	StepWait     StepKind = "wait"
	StepRaise    StepKind = "raise"
	StepSleep    StepKind = "sleep"
	StepCommit   StepKind = "commit"
	StepRollback StepKind = "rollback"
)

// Step is one action of a worker. The concrete types are ReadStep, WriteStep,
// WaitStep, RaiseStep, SleepStep, CommitStep and RollbackStep; steps are
// immutable values built at scenario-authoring time.
type Step interface {
	Kind() StepKind
	String() string
	step()
}

// ReadStep reads Target and records the value under Label.
type ReadStep struct {
	Label  string
	Target domain.Target
}

// WriteStep applies Mutation. When FromRead names an earlier read of the same
// worker, the written value is that read's value plus Delta, which is how a
// read-modify-write cycle is expressed.
type WriteStep struct {
	Mutation domain.Mutation
	FromRead string
	Delta    int64
}

// WaitStep blocks until Signal is raised by another worker. A zero Timeout
// uses the runner's signal timeout.
type WaitStep struct {
	Signal  string
	Timeout time.Duration
}

// RaiseStep raises Signal.
type RaiseStep struct {
	Signal string
}

// SleepStep pauses the worker. Use it only to simulate elapsed wall-clock
// time; ordering between workers must be expressed with signals.
type SleepStep struct {
	Duration time.Duration
}

// CommitStep commits the worker's transaction.
type CommitStep struct{}

// RollbackStep rolls back the worker's transaction.
type RollbackStep struct{}

func (ReadStep) Kind() StepKind     { return StepRead }
func (WriteStep) Kind() StepKind    { return StepWrite }
func (WaitStep) Kind() StepKind     { return StepWait }
func (RaiseStep) Kind() StepKind    { return StepRaise }
func (SleepStep) Kind() StepKind    { return StepSleep }
func (CommitStep) Kind() StepKind   { return StepCommit }
func (RollbackStep) Kind() StepKind { return StepRollback }

func (ReadStep) step()     {}
func (WriteStep) step()    {}
func (WaitStep) step()     {}
func (RaiseStep) step()    {}
func (SleepStep) step()    {}
func (CommitStep) step()   {}
func (RollbackStep) step() {}

func (s ReadStep) String() string {
	return fmt.Sprintf("read %s as %q", s.Target, s.Label)
}

func (s WriteStep) String() string {
	if s.FromRead != "" {
		return fmt.Sprintf("set %s = %q%+d", s.Mutation.Key, s.FromRead, s.Delta)
	}
	return s.Mutation.String()
}

func (s WaitStep) String() string   { return fmt.Sprintf("wait for %q", s.Signal) }
func (s RaiseStep) String() string  { return fmt.Sprintf("raise %q", s.Signal) }
func (s SleepStep) String() string  { return fmt.Sprintf("sleep %s", s.Duration) }
func (CommitStep) String() string   { return "commit" }
func (RollbackStep) String() string { return "rollback" }

// Read builds a ReadStep.
func Read(label string, target domain.Target) Step {
	return ReadStep{Label: label, Target: target}
}

// Set builds a write of value into the existing row key.
func Set(key string, value int64) Step {
	return WriteStep{Mutation: domain.Mutation{Kind: domain.MutationSet, Key: key, Value: value}}
}

// SetFrom builds a write of the value read under label plus delta into row key.
func SetFrom(key, label string, delta int64) Step {
	return WriteStep{
		Mutation: domain.Mutation{Kind: domain.MutationSet, Key: key},
		FromRead: label,
		Delta:    delta,
	}
}

// Insert builds an insert of a new row into group.
func Insert(key, group string, value int64) Step {
	return WriteStep{Mutation: domain.Mutation{Kind: domain.MutationInsert, Key: key, Group: group, Value: value}}
}

// Delete builds a delete of row key.
func Delete(key string) Step {
	return WriteStep{Mutation: domain.Mutation{Kind: domain.MutationDelete, Key: key}}
}

// WaitFor builds a WaitStep using the runner's signal timeout.
func WaitFor(signal string) Step {
	return WaitStep{Signal: signal}
}

// Raise builds a RaiseStep.
func Raise(signal string) Step {
	return RaiseStep{Signal: signal}
}

// Sleep builds a SleepStep.
func Sleep(d time.Duration) Step {
	return SleepStep{Duration: d}
}

// Commit builds a CommitStep.
func Commit() Step {
	return CommitStep{}
}

// Rollback builds a RollbackStep.
func Rollback() Step {
	return RollbackStep{}
}

// isTerminal reports whether s ends the transaction.
func isTerminal(s Step) bool {
	k := s.Kind()
	return k == StepCommit || k == StepRollback
}

// isStatement reports whether s talks to the store inside the transaction.
func isStatement(s Step) bool {
	k := s.Kind()
	return k == StepRead || k == StepWrite
}
