package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotFound is returned when the referenced survey, question or user does not exist.
	ErrTargetNotFound = errors.New("aggregation target not found")
	// ErrComputationFailed marks a recomputation attempt that did not commit.
	ErrComputationFailed = errors.New("computation failed")
	// ErrInvalidAnswerShape indicates an answer value that does not match its question type.
	ErrInvalidAnswerShape = errors.New("invalid answer shape")
	// ErrEmptyInputSet is returned by statistics helpers given no values.
	ErrEmptyInputSet = errors.New("empty input set")
	// ErrDuplicateAnswer is returned when a session already answered a question.
	ErrDuplicateAnswer = errors.New("answer already recorded for session and question")
	// ErrInvalidExport indicates a malformed export request.
	ErrInvalidExport = errors.New("invalid export request")
	// ErrExportNotFound is returned for unknown export jobs.
	ErrExportNotFound = errors.New("export job not found")
	// ErrExportNotReady is returned when downloading an export that has not completed.
	ErrExportNotReady = errors.New("export not completed")
)

// ComputationError wraps the cause of a failed recomputation for one target.
type ComputationError struct {
	Kind string
	Key  string
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("recompute %s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

func (e *ComputationError) Is(target error) bool { return target == ErrComputationFailed }
