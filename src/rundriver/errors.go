package rundriver

import "errors"

var (
	ErrClientRequired  = errors.New("assistant client is required")
	ErrToolboxRequired = errors.New("toolbox is required")

	// ErrRunTimeout is returned when a run exceeds its wall-clock budget or poll count.
	ErrRunTimeout = errors.New("run timed out")
	// ErrRunFailed is returned when a run ends in a terminal state other than completed.
	ErrRunFailed = errors.New("run failed")
	// ErrTooManyActionRounds is returned when a run keeps asking for tools past the limit.
	ErrTooManyActionRounds = errors.New("too many tool call rounds")
)
