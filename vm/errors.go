package vm

import (
	"errors"
	"fmt"
)

// RuntimeError is a fatal error raised while executing bytecode. It carries
// the source line of the faulting instruction and the name of the function
// that was running.
type RuntimeError struct {
	Message  string
	Line     int
	Function string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s [line %d]", e.Message, e.Line)
}

// IsRuntimeError reports whether err is, or wraps, a *RuntimeError.
func IsRuntimeError(err error) bool {
	var rt *RuntimeError
	return errors.As(err, &rt)
}

// errorf builds a runtime error positioned at the instruction currently
// being executed.
func (vm *VM) errorf(format string, args ...interface{}) error {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	if len(vm.frames) > 0 {
		frame := &vm.frames[len(vm.frames)-1]
		// ip has already advanced past the opcode.
		err.Line = frame.fn.Chunk.LineAt(frame.ip - 1)
		err.Function = displayName(frame.fn)
	}
	return err
}
