package vm

// Array is a growable, shared sequence of values.
type Array struct {
	Elements []Value
}

// NewArray creates an array that owns elems.
func NewArray(elems []Value) *Array {
	return &Array{Elements: elems}
}

func (*Array) objectKind() Kind { return KindArray }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elements) }

// NativeFn is the Go implementation behind a native function. args aliases
// the operand stack and must not be retained.
type NativeFn func(vm *VM, args []Value) (Value, error)

// Function is the unit of compilation and of calling. A compiled Function is
// immutable once the compiler has finished it and is shared by every Value
// and call frame that refers to it.
type Function struct {
	Name       string
	NumParams  int
	ParamNames []string
	Chunk      *Chunk

	// Native is set for functions implemented in Go; Chunk is nil for them.
	Native NativeFn
}

// NewFunction creates an empty compiled function.
func NewFunction(name string) *Function {
	return &Function{
		Name:  name,
		Chunk: NewChunk(),
	}
}

// NewNative creates a native function of the given arity.
func NewNative(name string, arity int, fn NativeFn) *Function {
	return &Function{
		Name:      name,
		NumParams: arity,
		Native:    fn,
	}
}

func (*Function) objectKind() Kind { return KindFunction }

// IsNative reports whether fn is implemented in Go.
func (fn *Function) IsNative() bool { return fn.Native != nil }

// Klass is a named nominal type with no members.
type Klass struct {
	Name string
}

// NewKlass creates a class.
func NewKlass(name string) *Klass {
	return &Klass{Name: name}
}

func (*Klass) objectKind() Kind { return KindKlass }

// Instance is the runtime record created by calling a Klass.
type Instance struct {
	Klass  *Klass
	Fields map[string]Value
}

// NewInstance creates an instance with no fields set.
func NewInstance(k *Klass) *Instance {
	return &Instance{
		Klass:  k,
		Fields: make(map[string]Value),
	}
}

func (*Instance) objectKind() Kind { return KindInstance }

// Field returns the named field, or Nil when it was never written.
func (i *Instance) Field(name string) Value {
	if v, ok := i.Fields[name]; ok {
		return v
	}
	return Nil
}

// SetField creates or overwrites the named field.
func (i *Instance) SetField(name string, v Value) {
	i.Fields[name] = v
}
