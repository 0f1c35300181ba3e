package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// CompileError is a single diagnostic produced while compiling.
type CompileError struct {
	Line    int
	Column  int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// ErrorList holds every error reported during one compile, in source order.
// The compiler does not resynchronize after an error, so later entries may
// be cascades of an earlier one.
type ErrorList []*CompileError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// First returns the first error, or nil for an empty list.
func (l ErrorList) First() *CompileError {
	if len(l) == 0 {
		return nil
	}
	return l[0]
}

// AsErrorList extracts an ErrorList from err.
func AsErrorList(err error) (ErrorList, bool) {
	var list ErrorList
	if errors.As(err, &list) {
		return list, true
	}
	return nil, false
}
