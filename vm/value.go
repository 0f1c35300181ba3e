package vm

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant of the Value union is populated.
type Kind uint8

const (
	KindBool Kind = iota
	KindNil
	KindNumber
	KindString
	KindArray
	KindFunction
	KindKlass
	KindInstance
)

var kindNames = [...]string{
	KindBool:     "bool",
	KindNil:      "nil",
	KindNumber:   "number",
	KindString:   "string",
	KindArray:    "array",
	KindFunction: "function",
	KindKlass:    "class",
	KindInstance: "instance",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the tagged runtime datum.
//
// Bool, Nil, Number and String are held by value: copying a Value copies
// them. Array, Function, Klass and Instance are held by pointer, so every
// copy of such a Value aliases the same underlying object. Concretely:
//
//   - GET_LOCAL / GET_GLOBAL push a copy of the slot; mutating an array or
//     instance through the copy is visible through the slot.
//   - SET_LOCAL / SET_GLOBAL replace the slot's Value; they never write
//     through to whatever the old Value pointed at.
//   - SET_SUBSCRIPT / SET_PROPERTY mutate the shared Array / Instance.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	ref  object
}

// object is implemented by the heap-allocated variants.
type object interface {
	objectKind() Kind
}

// Nil is the single nil value. The zero Value is a Bool, not Nil.
var Nil = Value{kind: KindNil}

// Bool creates a Bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number creates a Number value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String creates a String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// ArrayValue wraps an existing array.
func ArrayValue(a *Array) Value { return Value{kind: KindArray, ref: a} }

// NewArrayValue creates a fresh array holding elems.
func NewArrayValue(elems ...Value) Value { return ArrayValue(NewArray(elems)) }

// FunctionValue wraps a compiled or native function.
func FunctionValue(fn *Function) Value { return Value{kind: KindFunction, ref: fn} }

// KlassValue wraps a class.
func KlassValue(k *Klass) Value { return Value{kind: KindKlass, ref: k} }

// InstanceValue wraps an instance.
func InstanceValue(i *Instance) Value { return Value{kind: KindInstance, ref: i} }

// ---------------------------------------------------------------------------
// Type checking and accessors
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsBool() bool     { return v.kind == KindBool }
func (v Value) IsNil() bool      { return v.kind == KindNil }
func (v Value) IsNumber() bool   { return v.kind == KindNumber }
func (v Value) IsString() bool   { return v.kind == KindString }
func (v Value) IsArray() bool    { return v.kind == KindArray }
func (v Value) IsFunction() bool { return v.kind == KindFunction }
func (v Value) IsKlass() bool    { return v.kind == KindKlass }
func (v Value) IsInstance() bool { return v.kind == KindInstance }

// AsBool returns the boolean payload. Panics if v is not a Bool.
func (v Value) AsBool() bool {
	v.must(KindBool)
	return v.b
}

// AsNumber returns the numeric payload. Panics if v is not a Number.
func (v Value) AsNumber() float64 {
	v.must(KindNumber)
	return v.num
}

// AsString returns the string payload. Panics if v is not a String.
func (v Value) AsString() string {
	v.must(KindString)
	return v.str
}

// AsArray returns the shared array. Panics if v is not an Array.
func (v Value) AsArray() *Array {
	v.must(KindArray)
	return v.ref.(*Array)
}

// AsFunction returns the shared function. Panics if v is not a Function.
func (v Value) AsFunction() *Function {
	v.must(KindFunction)
	return v.ref.(*Function)
}

// AsKlass returns the shared class. Panics if v is not a Klass.
func (v Value) AsKlass() *Klass {
	v.must(KindKlass)
	return v.ref.(*Klass)
}

// AsInstance returns the shared instance. Panics if v is not an Instance.
func (v Value) AsInstance() *Instance {
	v.must(KindInstance)
	return v.ref.(*Instance)
}

func (v Value) must(k Kind) {
	if v.kind != k {
		panic("vm: Value is " + v.kind.String() + ", not " + k.String())
	}
}

// ---------------------------------------------------------------------------
// Semantics
// ---------------------------------------------------------------------------

// IsFalsy reports whether v counts as false in a condition. Only false and
// nil are falsy; 0, "" and [] are truthy.
func (v Value) IsFalsy() bool {
	switch v.kind {
	case KindBool:
		return !v.b
	case KindNil:
		return true
	case KindNumber, KindString, KindArray, KindFunction, KindKlass, KindInstance:
		return false
	}
	panic("vm: unknown value kind " + v.kind.String())
}

// Equal implements ==. Values of different kinds are never equal. Arrays,
// functions, classes and instances compare by kind only: any two arrays are
// equal, any two instances are equal, and so on, regardless of identity or
// contents.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindNil:
		return true
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindArray, KindFunction, KindKlass, KindInstance:
		return true
	}
	panic("vm: unknown value kind " + a.kind.String())
}

// String renders v the way PRINT shows it.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb, nil)
	return sb.String()
}

func (v Value) write(sb *strings.Builder, seen map[*Array]bool) {
	switch v.kind {
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNil:
		sb.WriteString("nil")
	case KindNumber:
		sb.WriteString(FormatNumber(v.num))
	case KindString:
		sb.WriteString(v.str)
	case KindArray:
		arr := v.ref.(*Array)
		if seen[arr] {
			sb.WriteString("[...]")
			return
		}
		if seen == nil {
			seen = make(map[*Array]bool)
		}
		seen[arr] = true
		sb.WriteByte('[')
		for i, elem := range arr.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			elem.write(sb, seen)
		}
		sb.WriteByte(']')
		delete(seen, arr)
	case KindFunction:
		sb.WriteString("<fn ")
		sb.WriteString(v.ref.(*Function).Name)
		sb.WriteByte('>')
	case KindKlass:
		sb.WriteString(v.ref.(*Klass).Name)
	case KindInstance:
		sb.WriteString("#<")
		sb.WriteString(v.ref.(*Instance).Klass.Name)
		sb.WriteByte('>')
	default:
		panic("vm: unknown value kind " + v.kind.String())
	}
}

// FormatNumber prints integral numbers without a decimal point and other
// numbers in their shortest round-tripping decimal form.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case n == math.Trunc(n):
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// TypeName returns the user-facing name of v's kind.
func (v Value) TypeName() string {
	return v.kind.String()
}
