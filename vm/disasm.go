package vm

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a human-readable listing of fn's chunk to w, followed by
// the listings of any functions found in its constant pool.
func Disassemble(w io.Writer, fn *Function) {
	disassembleFunction(w, fn, make(map[*Function]bool))
}

// DisassembleString returns the listing Disassemble would write.
func DisassembleString(fn *Function) string {
	var sb strings.Builder
	Disassemble(&sb, fn)
	return sb.String()
}

func disassembleFunction(w io.Writer, fn *Function, seen map[*Function]bool) {
	if fn == nil || fn.IsNative() || seen[fn] {
		return
	}
	seen[fn] = true

	fmt.Fprintf(w, "== %s ==\n", displayName(fn))
	if fn.NumParams > 0 {
		fmt.Fprintf(w, "; params (%d): %s\n", fn.NumParams, strings.Join(fn.ParamNames, ", "))
	}

	c := fn.Chunk
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(w, c, offset)
	}

	for _, k := range c.Constants {
		if k.IsFunction() {
			fmt.Fprintln(w)
			disassembleFunction(w, k.AsFunction(), seen)
		}
	}
}

func displayName(fn *Function) string {
	if fn.Name == "" {
		return "<script>"
	}
	return fn.Name
}

// DisassembleInstruction writes the instruction at offset and returns the
// offset of the next instruction.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.LineAt(offset) == c.LineAt(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.LineAt(offset))
	}

	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	if !op.IsValid() {
		fmt.Fprintln(w, info.Name)
		return offset + 1
	}
	if offset+op.OperandLen() >= len(c.Code) && op.OperandLen() > 0 {
		fmt.Fprintf(w, "%-16s <truncated>\n", info.Name)
		return len(c.Code)
	}

	switch info.Operand {
	case OperandConstant:
		idx := int(c.Code[offset+1])
		fmt.Fprintf(w, "%-16s %4d", info.Name, idx)
		if idx < len(c.Constants) {
			fmt.Fprintf(w, " '%s'", c.Constants[idx].String())
		}
		fmt.Fprintln(w)
	case OperandByte:
		fmt.Fprintf(w, "%-16s %4d\n", info.Name, c.Code[offset+1])
	case OperandJump:
		delta := c.ReadUint16(offset + 1)
		fmt.Fprintf(w, "%-16s %4d -> %d\n", info.Name, offset, offset+3+delta)
	case OperandLoop:
		delta := c.ReadUint16(offset + 1)
		fmt.Fprintf(w, "%-16s %4d -> %d\n", info.Name, offset, offset+3-delta)
	default:
		fmt.Fprintln(w, info.Name)
	}
	return offset + op.InstructionLen()
}
