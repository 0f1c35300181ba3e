package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// asm builds a script function from alternating opcodes and operand bytes.
// Every byte is attributed to line 1.
type asm struct {
	fn *Function
}

func newAsm(name string) *asm {
	return &asm{fn: NewFunction(name)}
}

func (a *asm) op(op Opcode, operands ...byte) *asm {
	a.fn.Chunk.EmitWithOperand(op, 1, operands...)
	return a
}

func (a *asm) constant(v Value) *asm {
	idx := a.fn.Chunk.AddConstant(v)
	return a.op(OpConstant, byte(idx))
}

func (a *asm) name(s string) byte {
	return byte(a.fn.Chunk.AddConstant(String(s)))
}

func runAsm(t *testing.T, a *asm) (Value, string, error) {
	t.Helper()
	var out bytes.Buffer
	v := NewVM()
	v.SetOutput(&out)
	result, err := v.Run(a.fn)
	return result, out.String(), err
}

func TestNewVM(t *testing.T) {
	v := NewVM()
	if v.ID() == "" {
		t.Error("ID() is empty")
	}
	if NewVM().ID() == v.ID() {
		t.Error("two VMs share an ID")
	}
	for _, name := range NativeNames {
		g, ok := v.Global(name)
		if !ok || !g.IsFunction() || !g.AsFunction().IsNative() {
			t.Errorf("native %q not predefined, got %v", name, g)
		}
	}
}

func TestVMReturnsConstant(t *testing.T) {
	a := newAsm("")
	a.constant(Number(42)).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(42)) {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		op   Opcode
		a, b float64
		want Value
	}{
		{OpAdd, 1, 2, Number(3)},
		{OpSubtract, 2, 3, Number(-1)},
		{OpMultiply, 4, 2.5, Number(10)},
		{OpDivide, 6, 3, Number(2)},
		{OpDivide, 1, 4, Number(0.25)},
		{OpMod, 7, 3, Number(1)},
		{OpMod, 7.9, 3.2, Number(1)},
		{OpBitAnd, 6, 3, Number(2)},
		{OpBitOr, 6, 3, Number(7)},
		{OpAnd, 1, 0, Bool(false)},
		{OpAnd, 2, 3, Bool(true)},
		{OpOr, 0, 0.5, Bool(false)},
		{OpOr, 0, 1, Bool(true)},
		{OpGreater, 2, 1, Bool(true)},
		{OpGreater, 1, 1, Bool(false)},
		{OpLess, 1, 2, Bool(true)},
	}

	for _, tt := range tests {
		a := newAsm("")
		a.constant(Number(tt.a)).constant(Number(tt.b)).op(tt.op).op(OpReturn)
		result, _, err := runAsm(t, a)
		if err != nil {
			t.Errorf("%v %v %v: %v", tt.a, tt.op, tt.b, err)
			continue
		}
		if result.Kind() != tt.want.Kind() || !Equal(result, tt.want) {
			t.Errorf("%v %v %v = %v, want %v", tt.a, tt.op, tt.b, result, tt.want)
		}
	}
}

func TestVMOperandsMustBeNumbers(t *testing.T) {
	for _, op := range []Opcode{OpAdd, OpSubtract, OpLess, OpGreater, OpMod, OpBitAnd, OpAnd} {
		a := newAsm("")
		a.constant(Number(1)).constant(String("1")).op(op).op(OpReturn)
		_, _, err := runAsm(t, a)
		var rt *RuntimeError
		if !errors.As(err, &rt) {
			t.Errorf("%v: error = %v, want *RuntimeError", op, err)
			continue
		}
		if rt.Message != "Operands must be numbers" {
			t.Errorf("%v: message = %q, want %q", op, rt.Message, "Operands must be numbers")
		}
		if rt.Line != 1 {
			t.Errorf("%v: line = %d, want 1", op, rt.Line)
		}
	}
}

func TestVMModByZero(t *testing.T) {
	a := newAsm("")
	a.constant(Number(1)).constant(Number(0)).op(OpMod).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "Division by zero") {
		t.Errorf("error = %v, want Division by zero", err)
	}
}

func TestVMNotAndNegate(t *testing.T) {
	tests := []struct {
		v    Value
		want Value
	}{
		{Nil, Bool(true)},
		{Bool(false), Bool(true)},
		{Number(0), Bool(false)},
		{NewArrayValue(), Bool(false)},
	}
	for _, tt := range tests {
		a := newAsm("")
		a.constant(tt.v).op(OpNot).op(OpReturn)
		result, _, err := runAsm(t, a)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !Equal(result, tt.want) {
			t.Errorf("!%v = %v, want %v", tt.v, result, tt.want)
		}
	}

	a := newAsm("")
	a.constant(Number(3)).op(OpNegate).op(OpReturn)
	if result, _, _ := runAsm(t, a); !Equal(result, Number(-3)) {
		t.Errorf("-3 = %v, want -3", result)
	}

	a = newAsm("")
	a.constant(String("x")).op(OpNegate).op(OpReturn)
	if _, _, err := runAsm(t, a); err == nil {
		t.Error("negating a string succeeded, want runtime error")
	}
}

func TestVMPrint(t *testing.T) {
	a := newAsm("")
	a.constant(Number(7)).op(OpPrint).constant(String("hi")).op(OpPrint).op(OpNil).op(OpReturn)
	_, out, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "7\nhi\n" {
		t.Errorf("output = %q, want %q", out, "7\nhi\n")
	}
}

func TestVMGlobals(t *testing.T) {
	a := newAsm("")
	x := a.name("x")
	a.constant(Number(5)).op(OpSetGlobal, x).op(OpPop).
		op(OpGetGlobal, x).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(5)) {
		t.Errorf("x = %v, want 5", result)
	}
}

func TestVMUndefinedGlobal(t *testing.T) {
	a := newAsm("")
	a.op(OpGetGlobal, a.name("missing")).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "Undefined variable 'missing'") {
		t.Errorf("error = %v, want Undefined variable 'missing'", err)
	}
}

func TestVMGlobalsPersistAcrossRuns(t *testing.T) {
	v := NewVM()
	v.SetOutput(&bytes.Buffer{})

	set := newAsm("")
	set.constant(Number(1)).op(OpSetGlobal, set.name("g")).op(OpReturn)
	if _, err := v.Run(set.fn); err != nil {
		t.Fatalf("Run set: %v", err)
	}

	get := newAsm("")
	get.op(OpGetGlobal, get.name("g")).op(OpReturn)
	result, err := v.Run(get.fn)
	if err != nil {
		t.Fatalf("Run get: %v", err)
	}
	if !Equal(result, Number(1)) {
		t.Errorf("g = %v, want 1", result)
	}

	// A second VM has its own table.
	if _, err := NewVM().Run(get.fn); err == nil {
		t.Error("global leaked into a fresh VM")
	}
}

func TestVMLocals(t *testing.T) {
	// slot 0 is the script itself; slot 1 is a block local.
	a := newAsm("")
	a.constant(Number(1)).
		constant(Number(9)).op(OpSetLocal, 1).op(OpPop).
		op(OpGetLocal, 1).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(9)) {
		t.Errorf("local = %v, want 9", result)
	}
}

func TestVMJumps(t *testing.T) {
	// if false { return 1 } return 2
	a := newAsm("")
	a.op(OpFalse)
	c := a.fn.Chunk
	skip := c.EmitJump(OpJumpIfFalse, 1)
	a.op(OpPop).constant(Number(1)).op(OpReturn)
	if err := c.PatchJump(skip); err != nil {
		t.Fatal(err)
	}
	a.op(OpPop).constant(Number(2)).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(2)) {
		t.Errorf("result = %v, want 2", result)
	}
}

func TestVMLoop(t *testing.T) {
	// i = 0; while i < 3 { i = i + 1 }; return i
	a := newAsm("")
	i := a.name("i")
	three := byte(a.fn.Chunk.AddConstant(Number(3)))
	one := byte(a.fn.Chunk.AddConstant(Number(1)))
	c := a.fn.Chunk

	a.constant(Number(0)).op(OpSetGlobal, i).op(OpPop)
	loopStart := c.CurrentOffset()
	a.op(OpGetGlobal, i).op(OpConstant, three).op(OpLess)
	exit := c.EmitJump(OpJumpIfFalse, 1)
	a.op(OpPop)
	a.op(OpGetGlobal, i).op(OpConstant, one).op(OpAdd).op(OpSetGlobal, i).op(OpPop)
	if err := c.EmitLoop(loopStart, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.PatchJump(exit); err != nil {
		t.Fatal(err)
	}
	a.op(OpPop).op(OpGetGlobal, i).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(3)) {
		t.Errorf("i = %v, want 3", result)
	}
}

func TestVMBuildArrayAndSubscript(t *testing.T) {
	a := newAsm("")
	a.constant(Number(1)).constant(Number(2)).constant(Number(3)).op(OpBuildArray, 3).
		constant(Number(1)).op(OpGetSubscript).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(2)) {
		t.Errorf("arr[1] = %v, want 2", result)
	}
}

func TestVMSetSubscript(t *testing.T) {
	a := newAsm("")
	arr := a.name("arr")
	a.constant(Number(1)).constant(Number(2)).op(OpBuildArray, 2).op(OpSetGlobal, arr).op(OpPop).
		op(OpGetGlobal, arr).constant(Number(0)).constant(String("x")).op(OpSetSubscript).op(OpPop).
		op(OpGetGlobal, arr).op(OpReturn)

	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.String(); got != "[x, 2]" {
		t.Errorf("arr = %s, want [x, 2]", got)
	}
}

func TestVMSubscriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		target Value
		index  Value
		want   string
	}{
		{"not an array", Number(1), Number(0), "Only arrays can be subscripted"},
		{"string index", NewArrayValue(Number(1)), String("0"), "Array index must be a number"},
		{"past end", NewArrayValue(Number(1)), Number(1), "Array index out of range"},
		{"negative", NewArrayValue(Number(1)), Number(-1), "Array index out of range"},
	}

	for _, tt := range tests {
		a := newAsm("")
		a.constant(tt.target).constant(tt.index).op(OpGetSubscript).op(OpReturn)
		_, _, err := runAsm(t, a)
		var rt *RuntimeError
		if !errors.As(err, &rt) || rt.Message != tt.want {
			t.Errorf("%s: error = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestVMClassAndProperties(t *testing.T) {
	a := newAsm("")
	foo := a.name("Foo")
	x := a.name("x")
	a.op(OpClass, foo).op(OpCall, 0).
		constant(Number(10)).op(OpSetProperty, x).op(OpPop)

	// Property reads through a global alias see the write.
	a2 := newAsm("")
	f := a2.name("f")
	x2 := a2.name("x")
	a2.op(OpClass, a2.name("Foo")).op(OpCall, 0).op(OpSetGlobal, f).op(OpPop).
		op(OpGetGlobal, f).constant(Number(10)).op(OpSetProperty, x2).op(OpPop).
		op(OpGetGlobal, f).op(OpGetProperty, x2).op(OpPrint).
		op(OpGetGlobal, f).op(OpGetProperty, a2.name("missing")).op(OpReturn)

	result, out, err := runAsm(t, a2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "10\n" {
		t.Errorf("output = %q, want %q", out, "10\n")
	}
	if !result.IsNil() {
		t.Errorf("missing field = %v, want nil", result)
	}

	a.op(OpReturn)
	if _, _, err := runAsm(t, a); err != nil {
		t.Errorf("set property on fresh instance: %v", err)
	}
}

func TestVMPropertyOnNonInstance(t *testing.T) {
	a := newAsm("")
	a.constant(Number(1)).op(OpGetProperty, a.name("x")).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "Only instances have properties") {
		t.Errorf("error = %v, want Only instances have properties", err)
	}
}

// addFunction returns fn add(a, b) { return a + b } with params at slots 1, 2.
func addFunction() *Function {
	add := NewFunction("add")
	add.NumParams = 2
	add.ParamNames = []string{"a", "b"}
	add.Chunk.EmitWithOperand(OpGetLocal, 1, 1)
	add.Chunk.EmitWithOperand(OpGetLocal, 1, 2)
	add.Chunk.Emit(OpAdd, 1)
	add.Chunk.Emit(OpReturn, 1)
	return add
}

func TestVMCallStackNeutral(t *testing.T) {
	v := NewVM()
	var depths []int
	v.DefineNative("depth", 0, func(vm *VM, args []Value) (Value, error) {
		depths = append(depths, vm.StackDepth())
		return Nil, nil
	})

	a := newAsm("")
	depth := a.name("depth")
	a.op(OpGetGlobal, depth).op(OpCall, 0).op(OpPop).
		constant(FunctionValue(addFunction())).constant(Number(2)).constant(Number(3)).op(OpCall, 2).
		op(OpGetGlobal, depth).op(OpCall, 0).op(OpPop).
		op(OpReturn)

	result, err := v.Run(a.fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(5)) {
		t.Errorf("add(2, 3) = %v, want 5", result)
	}
	// Before: [script, depth]. After: [script, 5, depth].
	if len(depths) != 2 || depths[1] != depths[0]+1 {
		t.Errorf("stack depths around call = %v, want second = first + 1", depths)
	}
	if v.StackDepth() != 0 {
		t.Errorf("StackDepth() after Run = %d, want 0", v.StackDepth())
	}
}

func TestVMCallArity(t *testing.T) {
	a := newAsm("")
	a.constant(FunctionValue(addFunction())).constant(Number(1)).op(OpCall, 1).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "Expected 2 arguments but got 1") {
		t.Errorf("error = %v, want arity error", err)
	}
}

func TestVMCallUncallable(t *testing.T) {
	a := newAsm("")
	a.constant(Number(1)).op(OpCall, 0).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "uncallable object") {
		t.Errorf("error = %v, want uncallable error", err)
	}
}

func TestVMClassWithArguments(t *testing.T) {
	a := newAsm("")
	a.op(OpClass, a.name("Foo")).constant(Number(1)).op(OpCall, 1).op(OpReturn)
	if _, _, err := runAsm(t, a); err == nil {
		t.Error("calling a class with arguments succeeded, want runtime error")
	}
}

func TestVMStackOverflow(t *testing.T) {
	// fn loop() { return loop() }
	loop := NewFunction("loop")
	name := byte(loop.Chunk.AddConstant(String("loop")))
	loop.Chunk.EmitWithOperand(OpGetGlobal, 1, name)
	loop.Chunk.EmitWithOperand(OpCall, 1, 0)
	loop.Chunk.Emit(OpReturn, 1)

	v := NewVM()
	v.SetLimits(64, 0)
	v.SetGlobal("loop", FunctionValue(loop))

	a := newAsm("")
	a.op(OpGetGlobal, a.name("loop")).op(OpCall, 0).op(OpReturn)
	_, err := v.Run(a.fn)
	var rt *RuntimeError
	if !errors.As(err, &rt) || rt.Message != "Stack overflow" {
		t.Fatalf("error = %v, want Stack overflow", err)
	}
	if rt.Function != "loop" {
		t.Errorf("Function = %q, want loop", rt.Function)
	}

	// The VM is reusable after a runtime error.
	ok := newAsm("")
	ok.constant(Number(1)).op(OpReturn)
	if _, err := v.Run(ok.fn); err != nil {
		t.Errorf("Run after overflow: %v", err)
	}
}

func TestVMUnknownOpcode(t *testing.T) {
	a := newAsm("")
	a.fn.Chunk.Write(0xEE, 1)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "Unknown opcode") {
		t.Errorf("error = %v, want Unknown opcode", err)
	}
}

func TestVMUnexpectedEnd(t *testing.T) {
	a := newAsm("")
	a.op(OpNil)
	if _, _, err := runAsm(t, a); err == nil {
		t.Error("running off the end of the chunk succeeded, want error")
	}
}

func TestRuntimeErrorFormat(t *testing.T) {
	err := &RuntimeError{Message: "Operands must be numbers", Line: 3}
	if got, want := err.Error(), "Operands must be numbers [line 3]"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsRuntimeError(err) {
		t.Error("IsRuntimeError = false, want true")
	}
	if IsRuntimeError(errors.New("x")) {
		t.Error("IsRuntimeError(plain error) = true, want false")
	}
}

// ---------------------------------------------------------------------------
// Natives
// ---------------------------------------------------------------------------

func TestNatives(t *testing.T) {
	tests := []struct {
		name string
		args []Value
		want string
	}{
		{"len", []Value{NewArrayValue(Number(1), Number(2))}, "2"},
		{"len", []Value{String("abc")}, "3"},
		{"push", []Value{NewArrayValue(Number(1)), Number(2)}, "[1, 2]"},
		{"str", []Value{Number(2.5)}, "2.5"},
	}

	for _, tt := range tests {
		a := newAsm("")
		a.op(OpGetGlobal, a.name(tt.name))
		for _, arg := range tt.args {
			a.constant(arg)
		}
		a.op(OpCall, byte(len(tt.args))).op(OpReturn)

		result, _, err := runAsm(t, a)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got := result.String(); got != tt.want {
			t.Errorf("%s%v = %s, want %s", tt.name, tt.args, got, tt.want)
		}
	}
}

func TestNativeErrorBecomesRuntimeError(t *testing.T) {
	a := newAsm("")
	a.op(OpGetGlobal, a.name("len")).constant(Number(1)).op(OpCall, 1).op(OpReturn)
	_, _, err := runAsm(t, a)
	if !IsRuntimeError(err) {
		t.Errorf("error = %v, want *RuntimeError", err)
	}
}

func TestNativeClock(t *testing.T) {
	a := newAsm("")
	a.op(OpGetGlobal, a.name("clock")).op(OpCall, 0).op(OpReturn)
	result, _, err := runAsm(t, a)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IsNumber() || result.AsNumber() < 0 {
		t.Errorf("clock() = %v, want non-negative number", result)
	}
}

func TestTraceDoesNotChangeResult(t *testing.T) {
	v := NewVM()
	v.SetTrace(true)
	v.SetOutput(&bytes.Buffer{})
	a := newAsm("")
	a.constant(Number(1)).constant(Number(2)).op(OpAdd).op(OpReturn)
	result, err := v.Run(a.fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !Equal(result, Number(3)) {
		t.Errorf("result = %v, want 3", result)
	}
}

func TestVMStackUnderflow(t *testing.T) {
	tests := []struct {
		name string
		ops  []Opcode
	}{
		{"pop into callee slot", []Opcode{OpPop, OpNil, OpReturn}},
		{"return on empty frame", []Opcode{OpReturn}},
		{"add with one operand", []Opcode{OpNil, OpAdd, OpReturn}},
	}

	for _, tt := range tests {
		a := newAsm("")
		for _, op := range tt.ops {
			a.op(op)
		}
		_, _, err := runAsm(t, a)
		if err == nil || !strings.Contains(err.Error(), "Stack underflow") {
			t.Errorf("%s: error = %v, want Stack underflow", tt.name, err)
		}
	}
}

func TestVMCallUnderflow(t *testing.T) {
	a := newAsm("")
	a.op(OpCall, 0).op(OpReturn)
	_, _, err := runAsm(t, a)
	if err == nil || !strings.Contains(err.Error(), "underflows the stack") {
		t.Errorf("error = %v, want call underflow", err)
	}
}
