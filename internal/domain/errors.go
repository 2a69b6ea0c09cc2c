package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBuildInProgress = errors.New("a pipeline build is already running")
	ErrUnknownUpstream = errors.New("unknown upstream task")
	ErrUnknownKind     = errors.New("unknown task kind")
	ErrDuplicateTask   = errors.New("duplicate task name")
	ErrMissingParam    = errors.New("missing task parameter")
	ErrRunNotFound     = errors.New("run not found")
	ErrLeaseLost       = errors.New("build lease no longer held")
)

// FetchError is a failed network retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is malformed or unexpectedly shaped input.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NormalizationError is a required field that could not be parsed.
type NormalizationError struct {
	File  string
	Field string
	Value string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: field %q (value %q): %v", e.File, e.Field, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// ClearError is a failed wipe of the target schema before a reload.
type ClearError struct {
	Table string
	Err   error
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("clear table %s: %v", e.Table, e.Err)
}

func (e *ClearError) Unwrap() error { return e.Err }

// LoadError is a failed insert during a reload. Batch is -1 for stages that are not chunked.
type LoadError struct {
	Stage string
	Batch int
	Err   error
}

func (e *LoadError) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("load %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("load %s batch %d: %v", e.Stage, e.Batch, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DagCycleError is an invalid pipeline declaration whose upstream relation loops.
type DagCycleError struct {
	Cycle []string
}

func (e *DagCycleError) Error() string {
	return fmt.Sprintf("pipeline has a dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// TaskError attaches the failing task to an error.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
