package audit

import "errors"

var (
	// ErrInvalidInput is returned when the plan is not a well-formed resource change list.
	ErrInvalidInput = errors.New("invalid audit input")
	// ErrEvaluation is returned when the rule engine fails in a way that aborts the run.
	ErrEvaluation = errors.New("policy evaluation failed")
	// ErrStorage is returned when the finished report cannot be persisted.
	ErrStorage = errors.New("report storage failed")
)
