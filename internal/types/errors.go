package types

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
// Only SourceConflictError and ConsistencyViolation cross the engine boundary
// as Go errors. ExecutionFailure and ClassificationFailure are absorbed and
// surface as data (ErrorResult, or a non-matching rule).

var (
	// ErrSourceConflict matches every *SourceConflictError.
	ErrSourceConflict = errors.New("source conflict")

	// ErrConsistencyViolation matches every *ConsistencyViolation.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrForwardReference is reported by lookups that target a cell at or
	// after the running cell in the same container.
	ErrForwardReference = errors.New("forward reference")

	// ErrUnknownReference is reported by lookups of names or cells that hold
	// no value.
	ErrUnknownReference = errors.New("unknown reference")
)

// SourceConflictError reports an add on an existing address, or an update or
// removal of a missing one.
type SourceConflictError struct {
	Op      string
	Address Address
	Reason  string
}

func (e *SourceConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Address, e.Reason)
}

func (e *SourceConflictError) Is(target error) bool {
	return target == ErrSourceConflict
}

// ConsistencyViolation reports that a store's iteration order no longer
// matches address order. It aborts the current pass.
type ConsistencyViolation struct {
	Index int
	Prev  Address
	Next  Address
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("store out of order at index %d: %s precedes %s", e.Index, e.Prev, e.Next)
}

func (e *ConsistencyViolation) Is(target error) bool {
	return target == ErrConsistencyViolation
}

// ExecutionFailure wraps an error raised while running a cell's source.
type ExecutionFailure struct {
	Address Address
	Err     error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Address, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }

// ClassificationFailure wraps an error raised by a rule while testing a match.
type ClassificationFailure struct {
	Rule string
	Err  error
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *ClassificationFailure) Unwrap() error { return e.Err }
