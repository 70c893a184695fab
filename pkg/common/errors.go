package common

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when clustering input has fewer than two
// readings or fewer than two distinct values.
var ErrInsufficientData = errors.New("insufficient data for clustering")

// FetchError reports a transport or schema failure from the metrics backend.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return stageError("fetch", e.Op, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// ClassificationError reports malformed or degenerate classifier input.
type ClassificationError struct {
	Op  string
	Err error
}

func (e *ClassificationError) Error() string { return stageError("classify", e.Op, e.Err) }

func (e *ClassificationError) Unwrap() error { return e.Err }

// NotifyError reports a transport failure or non-2xx answer from a webhook.
type NotifyError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NotifyError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notify: %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return stageError("notify", e.Op, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

func stageError(stage, op string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s", stage, op)
	}
	return fmt.Sprintf("%s: %s: %v", stage, op, err)
}
