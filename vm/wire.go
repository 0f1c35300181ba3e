package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Compiled functions travel between embedders as canonical CBOR. Only the
// constant kinds the compiler emits are representable: Bool, Nil, Number,
// String and nested compiled Functions.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireFunction struct {
	Name      string         `cbor:"name"`
	Params    []string       `cbor:"params,omitempty"`
	Code      []byte         `cbor:"code"`
	Lines     []int          `cbor:"lines"`
	Constants []wireConstant `cbor:"constants,omitempty"`
}

type wireConstant struct {
	Kind     Kind          `cbor:"k"`
	Bool     bool          `cbor:"b,omitempty"`
	Number   float64       `cbor:"n,omitempty"`
	String   string        `cbor:"s,omitempty"`
	Function *wireFunction `cbor:"f,omitempty"`
}

// MarshalFunction serializes a compiled function tree to CBOR bytes.
func MarshalFunction(fn *Function) ([]byte, error) {
	w, err := toWire(fn)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(w)
}

// UnmarshalFunction deserializes a function tree written by MarshalFunction.
func UnmarshalFunction(data []byte) (*Function, error) {
	var w wireFunction
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("vm: unmarshal function: %w", err)
	}
	return fromWire(&w)
}

func toWire(fn *Function) (*wireFunction, error) {
	if fn.IsNative() {
		return nil, fmt.Errorf("vm: cannot marshal native function %s", fn.Name)
	}
	w := &wireFunction{
		Name:   fn.Name,
		Params: fn.ParamNames,
		Code:   fn.Chunk.Code,
		Lines:  fn.Chunk.Lines,
	}
	for i, k := range fn.Chunk.Constants {
		wc := wireConstant{Kind: k.Kind()}
		switch k.Kind() {
		case KindBool:
			wc.Bool = k.AsBool()
		case KindNil:
		case KindNumber:
			wc.Number = k.AsNumber()
		case KindString:
			wc.String = k.AsString()
		case KindFunction:
			nested, err := toWire(k.AsFunction())
			if err != nil {
				return nil, err
			}
			wc.Function = nested
		default:
			return nil, fmt.Errorf("vm: %s: constant %d is a %s", displayName(fn), i, k.TypeName())
		}
		w.Constants = append(w.Constants, wc)
	}
	return w, nil
}

func fromWire(w *wireFunction) (*Function, error) {
	if len(w.Lines) != len(w.Code) {
		return nil, fmt.Errorf("vm: %s: %d line entries for %d code bytes", w.Name, len(w.Lines), len(w.Code))
	}
	fn := NewFunction(w.Name)
	fn.ParamNames = w.Params
	fn.NumParams = len(w.Params)
	fn.Chunk.Code = append(fn.Chunk.Code, w.Code...)
	fn.Chunk.Lines = append(fn.Chunk.Lines, w.Lines...)

	for i, wc := range w.Constants {
		var k Value
		switch wc.Kind {
		case KindBool:
			k = Bool(wc.Bool)
		case KindNil:
			k = Nil
		case KindNumber:
			k = Number(wc.Number)
		case KindString:
			k = String(wc.String)
		case KindFunction:
			if wc.Function == nil {
				return nil, fmt.Errorf("vm: %s: constant %d has no function body", w.Name, i)
			}
			nested, err := fromWire(wc.Function)
			if err != nil {
				return nil, err
			}
			k = FunctionValue(nested)
		default:
			return nil, fmt.Errorf("vm: %s: unsupported constant kind %s", w.Name, wc.Kind)
		}
		fn.Chunk.AddConstant(k)
	}
	if len(fn.Chunk.Constants) > MaxConstants {
		return nil, fmt.Errorf("vm: %s: %d constants exceeds %d", w.Name, len(fn.Chunk.Constants), MaxConstants)
	}
	if err := verifyCode(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

// verifyCode rejects bytecode the dispatch loop cannot step through:
// unknown opcodes, truncated operands, constant operands outside the pool
// and jumps that leave the chunk. A jump may target len(Code), which the VM
// reports as an unexpected end.
func verifyCode(fn *Function) error {
	c := fn.Chunk
	name := displayName(fn)
	for offset := 0; offset < len(c.Code); {
		op := Opcode(c.Code[offset])
		if !op.IsValid() {
			return fmt.Errorf("vm: %s: unknown opcode 0x%02X at %d", name, byte(op), offset)
		}
		next := offset + op.InstructionLen()
		if next > len(c.Code) {
			return fmt.Errorf("vm: %s: truncated %s at %d", name, op, offset)
		}

		switch {
		case GetOpcodeInfo(op).Operand == OperandConstant:
			if idx := int(c.Code[offset+1]); idx >= len(c.Constants) {
				return fmt.Errorf("vm: %s: %s at %d uses constant %d of %d", name, op, offset, idx, len(c.Constants))
			}
		case op.IsJump():
			delta := c.ReadUint16(offset + 1)
			target := next + delta
			if op == OpLoop {
				target = next - delta
			}
			if target < 0 || target > len(c.Code) {
				return fmt.Errorf("vm: %s: %s at %d targets %d outside the chunk", name, op, offset, target)
			}
		}
		offset = next
	}
	return nil
}
