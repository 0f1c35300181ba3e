package vm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

const (
	// DefaultMaxFrames bounds call depth.
	DefaultMaxFrames = 1024

	// DefaultMaxStack bounds the operand stack.
	DefaultMaxStack = 65536
)

// CallFrame is one active function invocation. base is the stack index of
// the callee slot; the frame's locals start there.
type CallFrame struct {
	fn   *Function
	ip   int
	base int
}

// VM executes compiled functions. A VM owns its operand stack, call frames
// and global table; separate VMs share nothing and may run concurrently. A
// single VM is not safe for concurrent use.
type VM struct {
	id      string
	stack   []Value
	frames  []CallFrame
	globals map[string]Value

	out       io.Writer
	trace     bool
	maxFrames int
	maxStack  int
	started   time.Time

	log commonlog.Logger
}

// NewVM creates a VM with the native functions predefined and output going
// to standard output.
func NewVM() *VM {
	vm := &VM{
		id:        uuid.New().String(),
		stack:     make([]Value, 0, 256),
		frames:    make([]CallFrame, 0, 64),
		globals:   make(map[string]Value),
		out:       os.Stdout,
		maxFrames: DefaultMaxFrames,
		maxStack:  DefaultMaxStack,
		started:   time.Now(),
		log:       commonlog.GetLogger("topaz.vm"),
	}
	vm.defineNatives()
	return vm
}

// ID returns the unique identifier of this VM, used in its log lines.
func (vm *VM) ID() string {
	return vm.id
}

// SetOutput directs PRINT output to w.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetTrace enables logging of every dispatched instruction at debug level.
func (vm *VM) SetTrace(trace bool) {
	vm.trace = trace
}

// SetLimits sets the call depth and operand stack limits. Non-positive
// values keep the current limit.
func (vm *VM) SetLimits(maxFrames, maxStack int) {
	if maxFrames > 0 {
		vm.maxFrames = maxFrames
	}
	if maxStack > 0 {
		vm.maxStack = maxStack
	}
}

// Global returns the named global.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// SetGlobal defines or overwrites the named global.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globals[name] = v
}

// GlobalNames returns the names of all defined globals, sorted.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.globals))
	for name := range vm.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefineNative installs a Go function as a global.
func (vm *VM) DefineNative(name string, arity int, fn NativeFn) {
	vm.globals[name] = FunctionValue(NewNative(name, arity, fn))
}

// StackDepth returns the current operand stack height.
func (vm *VM) StackDepth() int {
	return len(vm.stack)
}

// Run executes a top-level function to completion and returns the value of
// its final RETURN. Globals persist across calls to Run; the operand stack
// and frames are reset whether or not Run succeeds.
func (vm *VM) Run(fn *Function) (Value, error) {
	if fn == nil || fn.IsNative() {
		return Nil, fmt.Errorf("vm: cannot run %v", fn)
	}
	vm.resetStack()
	vm.push(FunctionValue(fn))
	vm.frames = append(vm.frames, CallFrame{fn: fn})

	vm.log.Debugf("[%s] running %s", vm.id, displayName(fn))
	result, err := vm.run()
	if err != nil {
		vm.log.Debugf("[%s] %s", vm.id, err)
		vm.resetStack()
		return Nil, err
	}
	return result, nil
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) run() (Value, error) {
	for {
		frame := &vm.frames[len(vm.frames)-1]
		code := frame.fn.Chunk.Code

		if frame.ip >= len(code) {
			return Nil, vm.errorf("Unexpected end of bytecode in %s", displayName(frame.fn))
		}
		if len(vm.stack) > vm.maxStack {
			return Nil, vm.errorf("Stack overflow")
		}
		if vm.trace {
			vm.traceInstruction(frame)
		}

		op := Opcode(code[frame.ip])
		frame.ip++

		// Slot base holds the callee; instructions never pop it.
		if int(stackPops[op]) > len(vm.stack)-frame.base-1 {
			return Nil, vm.errorf("Stack underflow in %s", displayName(frame.fn))
		}

		switch op {
		case OpConstant:
			k, err := vm.readConstant(frame)
			if err != nil {
				return Nil, err
			}
			vm.push(k)

		case OpNil:
			vm.push(Nil)

		case OpTrue:
			vm.push(Bool(true))

		case OpFalse:
			vm.push(Bool(false))

		case OpPop:
			vm.pop()

		case OpGetLocal:
			slot := frame.base + int(vm.readByte(frame))
			if slot >= len(vm.stack) {
				return Nil, vm.errorf("Local slot %d out of range", slot-frame.base)
			}
			vm.push(vm.stack[slot])

		case OpSetLocal:
			slot := frame.base + int(vm.readByte(frame))
			if slot >= len(vm.stack) {
				return Nil, vm.errorf("Local slot %d out of range", slot-frame.base)
			}
			vm.stack[slot] = vm.peek(0)

		case OpGetGlobal:
			name, err := vm.readName(frame)
			if err != nil {
				return Nil, err
			}
			v, ok := vm.globals[name]
			if !ok {
				return Nil, vm.errorf("Undefined variable '%s'", name)
			}
			vm.push(v)

		case OpSetGlobal:
			name, err := vm.readName(frame)
			if err != nil {
				return Nil, err
			}
			vm.globals[name] = vm.peek(0)

		case OpGetProperty:
			name, err := vm.readName(frame)
			if err != nil {
				return Nil, err
			}
			target := vm.pop()
			if !target.IsInstance() {
				return Nil, vm.errorf("Only instances have properties")
			}
			vm.push(target.AsInstance().Field(name))

		case OpSetProperty:
			name, err := vm.readName(frame)
			if err != nil {
				return Nil, err
			}
			value := vm.pop()
			target := vm.pop()
			if !target.IsInstance() {
				return Nil, vm.errorf("Only instances have properties")
			}
			target.AsInstance().SetField(name, value)
			vm.push(value)

		case OpGetSubscript:
			index := vm.pop()
			target := vm.pop()
			arr, i, err := vm.subscript(target, index)
			if err != nil {
				return Nil, err
			}
			vm.push(arr.Elements[i])

		case OpSetSubscript:
			value := vm.pop()
			index := vm.pop()
			target := vm.pop()
			arr, i, err := vm.subscript(target, index)
			if err != nil {
				return Nil, err
			}
			arr.Elements[i] = value
			vm.push(value)

		case OpBuildArray:
			n := int(vm.readByte(frame))
			if n > len(vm.stack)-frame.base-1 {
				return Nil, vm.errorf("Array literal of %d elements underflows the stack", n)
			}
			start := len(vm.stack) - n
			elems := make([]Value, n)
			copy(elems, vm.stack[start:])
			vm.stack = vm.stack[:start]
			vm.push(NewArrayValue(elems...))

		case OpClass:
			name, err := vm.readName(frame)
			if err != nil {
				return Nil, err
			}
			vm.push(KlassValue(NewKlass(name)))

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))

		case OpGreater, OpLess, OpAdd, OpSubtract, OpMultiply, OpDivide,
			OpMod, OpBitAnd, OpBitOr, OpAnd, OpOr:
			if err := vm.binary(op); err != nil {
				return Nil, err
			}

		case OpNot:
			vm.push(Bool(vm.pop().IsFalsy()))

		case OpNegate:
			if !vm.peek(0).IsNumber() {
				return Nil, vm.errorf("Operand must be a number")
			}
			vm.push(Number(-vm.pop().AsNumber()))

		case OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case OpJump:
			frame.ip += vm.readUint16(frame)

		case OpJumpIfFalse:
			offset := vm.readUint16(frame)
			if vm.peek(0).IsFalsy() {
				frame.ip += offset
			}

		case OpLoop:
			offset := vm.readUint16(frame)
			frame.ip -= offset

		case OpCall:
			argc := int(vm.readByte(frame))
			if err := vm.callValue(argc); err != nil {
				return Nil, err
			}

		case OpReturn:
			result := vm.pop()
			finished := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.stack = vm.stack[:0]
				return result, nil
			}
			vm.stack = vm.stack[:finished.base]
			vm.push(result)

		default:
			return Nil, vm.errorf("Unknown opcode %d", byte(op))
		}
	}
}

func (vm *VM) readByte(frame *CallFrame) byte {
	b := frame.fn.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readUint16(frame *CallFrame) int {
	v := frame.fn.Chunk.ReadUint16(frame.ip)
	frame.ip += 2
	return v
}

func (vm *VM) readConstant(frame *CallFrame) (Value, error) {
	idx := int(vm.readByte(frame))
	constants := frame.fn.Chunk.Constants
	if idx >= len(constants) {
		return Nil, vm.errorf("Constant index %d out of range", idx)
	}
	return constants[idx], nil
}

func (vm *VM) readName(frame *CallFrame) (string, error) {
	k, err := vm.readConstant(frame)
	if err != nil {
		return "", err
	}
	if !k.IsString() {
		return "", vm.errorf("Name constant must be a string, got %s", k.TypeName())
	}
	return k.AsString(), nil
}

func (vm *VM) binary(op Opcode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.errorf("Operands must be numbers")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()

	switch op {
	case OpGreater:
		vm.push(Bool(a > b))
	case OpLess:
		vm.push(Bool(a < b))
	case OpAdd:
		vm.push(Number(a + b))
	case OpSubtract:
		vm.push(Number(a - b))
	case OpMultiply:
		vm.push(Number(a * b))
	case OpDivide:
		vm.push(Number(a / b))
	case OpMod:
		if int64(b) == 0 {
			return vm.errorf("Division by zero")
		}
		vm.push(Number(float64(int64(a) % int64(b))))
	case OpBitAnd:
		vm.push(Number(float64(int64(a) & int64(b))))
	case OpBitOr:
		vm.push(Number(float64(int64(a) | int64(b))))
	case OpAnd:
		vm.push(Bool(int64(a) != 0 && int64(b) != 0))
	case OpOr:
		vm.push(Bool(int64(a) != 0 || int64(b) != 0))
	}
	return nil
}

func (vm *VM) subscript(target, index Value) (*Array, int, error) {
	if !target.IsArray() {
		return nil, 0, vm.errorf("Only arrays can be subscripted")
	}
	if !index.IsNumber() {
		return nil, 0, vm.errorf("Array index must be a number")
	}
	arr := target.AsArray()
	i := int(index.AsNumber())
	if index.AsNumber() < 0 || i >= len(arr.Elements) {
		return nil, 0, vm.errorf("Array index out of range")
	}
	return arr, i, nil
}

func (vm *VM) callValue(argc int) error {
	calleeSlot := len(vm.stack) - 1 - argc
	if calleeSlot <= vm.frames[len(vm.frames)-1].base {
		return vm.errorf("Call of %d arguments underflows the stack", argc)
	}
	callee := vm.stack[calleeSlot]

	switch callee.Kind() {
	case KindFunction:
		fn := callee.AsFunction()
		if argc != fn.NumParams {
			return vm.errorf("Expected %d arguments but got %d", fn.NumParams, argc)
		}
		if fn.IsNative() {
			result, err := fn.Native(vm, vm.stack[calleeSlot+1:])
			if err != nil {
				return vm.errorf("%s", err)
			}
			vm.stack = vm.stack[:calleeSlot]
			vm.push(result)
			return nil
		}
		if len(vm.frames) >= vm.maxFrames {
			return vm.errorf("Stack overflow")
		}
		vm.frames = append(vm.frames, CallFrame{fn: fn, base: calleeSlot})
		return nil

	case KindKlass:
		if argc != 0 {
			return vm.errorf("Expected 0 arguments but got %d", argc)
		}
		vm.stack[calleeSlot] = InstanceValue(NewInstance(callee.AsKlass()))
		return nil
	}
	return vm.errorf("Can only call functions and classes (uncallable object)")
}

func (vm *VM) traceInstruction(frame *CallFrame) {
	var sb strings.Builder
	sb.WriteString("          ")
	for _, v := range vm.stack {
		sb.WriteString("[ ")
		sb.WriteString(v.String())
		sb.WriteString(" ]")
	}
	vm.log.Debugf("[%s] %s", vm.id, sb.String())

	sb.Reset()
	DisassembleInstruction(&sb, frame.fn.Chunk, frame.ip)
	vm.log.Debugf("[%s] %s", vm.id, strings.TrimRight(sb.String(), "\n"))
}
