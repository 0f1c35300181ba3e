package vm

import (
	"errors"
)

const (
	// MaxConstants is the constant pool capacity addressable by a u8 operand.
	MaxConstants = 256

	// MaxJump is the largest displacement a u16 jump operand can carry.
	MaxJump = 0xFFFF
)

// ErrJumpTooLarge is returned when a jump or loop displacement does not fit
// in 16 bits.
var ErrJumpTooLarge = errors.New("jump is out of bounds")

// Chunk represents compiled bytecode for one function: the code, a parallel
// table of source lines (Lines[i] is the line that produced Code[i]) and the
// constant pool. Chunks are append-only while compiling and read-only once
// the owning function is finished.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Lines:     make([]int, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// Write appends one byte produced by the given source line.
func (c *Chunk) Write(b byte, line int) int {
	offset := len(c.Code)
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return offset
}

// Emit appends a single-byte opcode.
func (c *Chunk) Emit(op Opcode, line int) int {
	return c.Write(byte(op), line)
}

// EmitWithOperand appends an opcode followed by operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, line int, operands ...byte) int {
	offset := c.Write(byte(op), line)
	for _, b := range operands {
		c.Write(b, line)
	}
	return offset
}

// AddConstant appends v to the pool and returns its index. Equal constants
// are not deduplicated; the caller enforces MaxConstants.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode, line int) int {
	c.EmitWithOperand(op, line, 0xFF, 0xFF)
	return len(c.Code) - 2
}

// PatchJump patches a jump placeholder so that it lands on the current end
// of the code. The displacement is measured from just after the placeholder.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	delta := len(c.Code) - placeholderOffset - 2
	if delta > MaxJump {
		return ErrJumpTooLarge
	}
	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to the given loop start.
func (c *Chunk) EmitLoop(loopStart int, line int) error {
	// Measured from after this 3-byte instruction.
	delta := len(c.Code) + 3 - loopStart
	if delta > MaxJump {
		return ErrJumpTooLarge
	}
	c.EmitWithOperand(OpLoop, line, byte(delta>>8), byte(delta))
	return nil
}

// Truncate drops code and line entries from offset onwards.
func (c *Chunk) Truncate(offset int) {
	c.Code = c.Code[:offset]
	c.Lines = c.Lines[:offset]
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// LineAt returns the source line for a code offset, or 0 if out of range.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// ReadUint16 decodes the big-endian operand at offset.
func (c *Chunk) ReadUint16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}
