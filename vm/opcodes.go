package vm

import "fmt"

// Opcode represents a bytecode instruction.
type Opcode byte

const (
	// ========================================================================
	// Constants and literals
	// ========================================================================

	OpConstant Opcode = iota // Push constant from pool: OpConstant <index:u8>
	OpNil                    // Push nil
	OpTrue                   // Push true
	OpFalse                  // Push false

	// ========================================================================
	// Stack and variables
	// ========================================================================

	OpPop       // Pop top of stack
	OpGetLocal  // Push frame slot: OpGetLocal <slot:u8>
	OpSetLocal  // Store top into frame slot, leave it on the stack: OpSetLocal <slot:u8>
	OpGetGlobal // Push global: OpGetGlobal <name:u8>
	OpSetGlobal // Define or overwrite global from top, leave it on the stack: OpSetGlobal <name:u8>

	// ========================================================================
	// Objects
	// ========================================================================

	OpGetProperty  // instance -> field: OpGetProperty <name:u8>
	OpSetProperty  // instance value -> value: OpSetProperty <name:u8>
	OpGetSubscript // array index -> element
	OpSetSubscript // array index value -> value
	OpBuildArray   // Pop n values into a new array: OpBuildArray <count:u8>
	OpClass        // Push a new class: OpClass <name:u8>

	// ========================================================================
	// Comparison and arithmetic
	// ========================================================================

	OpEqual    // Pop two, push a == b
	OpGreater  // Pop two, push a > b
	OpLess     // Pop two, push a < b
	OpAdd      // Pop two, push a + b
	OpSubtract // Pop two, push a - b
	OpMultiply // Pop two, push a * b
	OpDivide   // Pop two, push a / b
	OpMod      // Pop two, push int(a) % int(b)
	OpBitAnd   // Pop two, push int(a) & int(b)
	OpBitOr    // Pop two, push int(a) | int(b)
	OpAnd      // Pop two, push int(a) != 0 && int(b) != 0
	OpOr       // Pop two, push int(a) != 0 || int(b) != 0
	OpNot      // Push true if top is falsy
	OpNegate   // Negate top of stack

	// ========================================================================
	// Statements and control flow
	// ========================================================================

	OpPrint       // Pop and print top of stack
	OpJump        // Unconditional forward jump: OpJump <offset:u16>
	OpJumpIfFalse // Jump if top is falsy, top stays: OpJumpIfFalse <offset:u16>
	OpLoop        // Backward jump: OpLoop <offset:u16>
	OpCall        // Call callee beneath argc args: OpCall <argc:u8>
	OpReturn      // Return top of stack from the current frame
)

// OperandKind describes how an instruction's operand bytes are interpreted.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota
	OperandConstant             // 1 byte constant pool index
	OperandByte                 // 1 byte slot or count
	OperandJump                 // 2 byte big-endian forward displacement
	OperandLoop                 // 2 byte big-endian backward displacement
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	Operand   OperandKind // Operand encoding
	StackPop  int         // How many values popped from stack (-1 = variable)
	StackPush int         // How many values pushed to stack
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpConstant: {"CONSTANT", OperandConstant, 0, 1},
	OpNil:      {"NIL", OperandNone, 0, 1},
	OpTrue:     {"TRUE", OperandNone, 0, 1},
	OpFalse:    {"FALSE", OperandNone, 0, 1},

	OpPop:       {"POP", OperandNone, 1, 0},
	OpGetLocal:  {"GET_LOCAL", OperandByte, 0, 1},
	OpSetLocal:  {"SET_LOCAL", OperandByte, 1, 1},
	OpGetGlobal: {"GET_GLOBAL", OperandConstant, 0, 1},
	OpSetGlobal: {"SET_GLOBAL", OperandConstant, 1, 1},

	OpGetProperty:  {"GET_PROPERTY", OperandConstant, 1, 1},
	OpSetProperty:  {"SET_PROPERTY", OperandConstant, 2, 1},
	OpGetSubscript: {"GET_SUBSCRIPT", OperandNone, 2, 1},
	OpSetSubscript: {"SET_SUBSCRIPT", OperandNone, 3, 1},
	OpBuildArray:   {"BUILD_ARRAY", OperandByte, -1, 1},
	OpClass:        {"CLASS", OperandConstant, 0, 1},

	OpEqual:    {"EQUAL", OperandNone, 2, 1},
	OpGreater:  {"GREATER", OperandNone, 2, 1},
	OpLess:     {"LESS", OperandNone, 2, 1},
	OpAdd:      {"ADD", OperandNone, 2, 1},
	OpSubtract: {"SUBTRACT", OperandNone, 2, 1},
	OpMultiply: {"MULTIPLY", OperandNone, 2, 1},
	OpDivide:   {"DIVIDE", OperandNone, 2, 1},
	OpMod:      {"MOD", OperandNone, 2, 1},
	OpBitAnd:   {"BITWISE_AND", OperandNone, 2, 1},
	OpBitOr:    {"BITWISE_OR", OperandNone, 2, 1},
	OpAnd:      {"LOGICAL_AND", OperandNone, 2, 1},
	OpOr:       {"LOGICAL_OR", OperandNone, 2, 1},
	OpNot:      {"NOT", OperandNone, 1, 1},
	OpNegate:   {"NEGATE", OperandNone, 1, 1},

	OpPrint:       {"PRINT", OperandNone, 1, 0},
	OpJump:        {"JUMP", OperandJump, 0, 0},
	OpJumpIfFalse: {"JUMP_IF_FALSE", OperandJump, 0, 0},
	OpLoop:        {"LOOP", OperandLoop, 0, 0},
	OpCall:        {"CALL", OperandByte, -1, 1}, // Pops callee + argc args
	OpReturn:      {"RETURN", OperandNone, 1, 0},
}

// stackPops holds the fixed pop count of every opcode, indexed by opcode
// byte. Variable and unknown opcodes are 0.
var stackPops [256]int8

func init() {
	for op, info := range opcodeInfoTable {
		if info.StackPop > 0 {
			stackPops[op] = int8(info.StackPop)
		}
	}
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	switch GetOpcodeInfo(op).Operand {
	case OperandConstant, OperandByte:
		return 1
	case OperandJump, OperandLoop:
		return 2
	}
	return 0
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode moves the instruction pointer.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpIfFalse || op == OpLoop
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpConstant; op <= OpReturn; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
