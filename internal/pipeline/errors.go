package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrCycle        = errors.New("cycle detected")
)

// GraphError describes one graph validation failure.
type GraphError struct {
	Kind error
	Task string
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Task != "" {
		fmt.Fprintf(&b, ": task %q", e.Task)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Unwrap exposes the kind; cycles are also invalid graphs.
func (e *GraphError) Unwrap() []error {
	if e.Kind == ErrCycle {
		return []error{ErrCycle, ErrInvalidGraph}
	}
	return []error{e.Kind}
}

func invalidf(task, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Task: task, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycle, Msg: strings.Join(path, " -> ")}
}
