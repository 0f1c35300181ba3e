package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/topaz-lang/topaz/vm"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass source to bytecode
// ---------------------------------------------------------------------------

const (
	// MaxLocals is the number of frame slots a u8 operand can address,
	// including slot 0 which holds the callee.
	MaxLocals = 256

	// MaxArgs bounds call arguments, parameters and array literal elements.
	MaxArgs = 255
)

// Local is a variable bound to a frame slot. Its slot is its index in the
// owning context's locals.
type Local struct {
	Name  string
	Depth int
}

// funcContext is the state of one function being compiled.
type funcContext struct {
	fn         *vm.Function
	locals     []Local
	scopeDepth int
	bodyDepth  int // scope depth of statements directly in the body

	// blockLevel is the block nesting of the enclosing context when this
	// function's body was opened; a '}' seen at that level closes it.
	blockLevel int
	nameLine   int

	// trailingPop is the offset of the POP ending the most recent
	// body-level expression statement, or -1.
	trailingPop int

	names map[string]byte // interned identifier constants
}

// SymbolKind classifies a top-level name a document defines.
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolClass
	SymbolGlobal
)

// Symbol is a global name defined by the compiled source.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Params []string
	Pos    Position
}

// Compiler compiles one program. A Compiler is single use.
type Compiler struct {
	lexer    *Lexer
	current  Token
	previous Token

	contexts   []*funcContext
	blockLevel int

	errors  ErrorList
	symbols []Symbol

	disassemble bool
	log         commonlog.Logger
}

// New creates a compiler for source.
func New(source string) *Compiler {
	return &Compiler{
		lexer: NewLexer(source),
		log:   commonlog.GetLogger("topaz.compiler"),
	}
}

// SetDisassemble logs a listing of every finished function at debug level.
func (c *Compiler) SetDisassemble(on bool) {
	c.disassemble = on
}

// Compile compiles source into a top-level function.
func Compile(source string) (*vm.Function, error) {
	return New(source).Compile()
}

// Compile compiles the whole program. On failure the error is an ErrorList
// holding every reported error.
func (c *Compiler) Compile() (*vm.Function, error) {
	c.pushContext("", 0)
	c.advance()

	for !c.check(TokenEOF) {
		if c.check(TokenRBrace) && c.closesFunction() {
			c.advance()
			c.endFunction()
			continue
		}
		c.declaration()
	}

	for len(c.contexts) > 1 {
		c.errorAtCurrent("Expect '}' after function body")
		c.endFunction()
	}
	script := c.endFunction()

	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return script, nil
}

// Errors returns every error reported so far.
func (c *Compiler) Errors() ErrorList {
	return c.errors
}

// Symbols returns the functions, classes and globals the source defines, in
// source order.
func (c *Compiler) Symbols() []Symbol {
	return c.symbols
}

// ---------------------------------------------------------------------------
// Token stream
// ---------------------------------------------------------------------------

// advance moves to the next token, reporting and skipping lexer errors.
func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.NextToken()
		if c.current.Type != TokenError {
			return
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(t TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

// consume advances past a token of type t or reports msg.
func (c *Compiler) consume(t TokenType, msg string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (c *Compiler) errorAt(tok Token, msg string) {
	err := &CompileError{Line: tok.Pos.Line, Column: tok.Pos.Column, Message: msg}
	c.errors = append(c.errors, err)
	c.log.Debugf("%s", err)
}

// error reports at the token just consumed.
func (c *Compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

// ---------------------------------------------------------------------------
// Function contexts
// ---------------------------------------------------------------------------

func (c *Compiler) ctx() *funcContext {
	return c.contexts[len(c.contexts)-1]
}

func (c *Compiler) chunk() *vm.Chunk {
	return c.ctx().fn.Chunk
}

func (c *Compiler) pushContext(name string, depth int) *funcContext {
	ctx := &funcContext{
		fn: vm.NewFunction(name),
		// Slot 0 holds the callee and has no name.
		locals:      []Local{{Name: "", Depth: 0}},
		scopeDepth:  depth,
		bodyDepth:   depth,
		blockLevel:  c.blockLevel,
		trailingPop: -1,
		names:       make(map[string]byte),
	}
	c.contexts = append(c.contexts, ctx)
	return ctx
}

// closesFunction reports whether a '}' at the current block level ends a
// pending function body.
func (c *Compiler) closesFunction() bool {
	return len(c.contexts) > 1 && c.ctx().blockLevel == c.blockLevel
}

// endFunction terminates the innermost function with a RETURN and pops its
// context. A trailing expression statement becomes the return value;
// otherwise the function returns nil. Nested functions are bound as globals
// in the enclosing context.
func (c *Compiler) endFunction() *vm.Function {
	ctx := c.ctx()
	chunk := ctx.fn.Chunk
	line := c.previous.Pos.Line

	if ctx.trailingPop >= 0 && ctx.trailingPop == len(chunk.Code)-1 {
		chunk.Truncate(ctx.trailingPop)
	} else {
		chunk.Emit(vm.OpNil, line)
	}
	chunk.Emit(vm.OpReturn, line)

	c.contexts = c.contexts[:len(c.contexts)-1]

	if c.disassemble && c.log.AllowLevel(commonlog.Debug) {
		c.log.Debugf("\n%s", vm.DisassembleString(ctx.fn))
	}

	if len(c.contexts) > 0 {
		fnIdx := c.makeConstant(vm.FunctionValue(ctx.fn))
		nameIdx := c.identifierConstant(ctx.fn.Name)
		c.chunk().EmitWithOperand(vm.OpConstant, ctx.nameLine, fnIdx)
		c.chunk().EmitWithOperand(vm.OpSetGlobal, ctx.nameLine, nameIdx)
		c.chunk().Emit(vm.OpPop, ctx.nameLine)
	}
	return ctx.fn
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op vm.Opcode) {
	c.chunk().Emit(op, c.previous.Pos.Line)
}

func (c *Compiler) emitOperand(op vm.Opcode, operand byte) {
	c.chunk().EmitWithOperand(op, c.previous.Pos.Line, operand)
}

// makeConstant adds v to the current chunk's pool.
func (c *Compiler) makeConstant(v vm.Value) byte {
	if c.chunk().ConstantCount() >= vm.MaxConstants {
		c.error("Too many constants in one chunk")
		return 0
	}
	return byte(c.chunk().AddConstant(v))
}

func (c *Compiler) emitConstant(v vm.Value) {
	c.emitOperand(vm.OpConstant, c.makeConstant(v))
}

// identifierConstant interns name in the current chunk's pool.
func (c *Compiler) identifierConstant(name string) byte {
	ctx := c.ctx()
	if idx, ok := ctx.names[name]; ok {
		return idx
	}
	full := c.chunk().ConstantCount() >= vm.MaxConstants
	idx := c.makeConstant(vm.String(name))
	if !full {
		ctx.names[name] = idx
	}
	return idx
}

func (c *Compiler) emitJump(op vm.Opcode) int {
	return c.chunk().EmitJump(op, c.previous.Pos.Line)
}

// patchJump points the jump at offset to the current end of code. A jump
// landing right after the trailing POP pins it: dropping that POP would
// leave the jump pointing past the final RETURN.
func (c *Compiler) patchJump(offset int) {
	if err := c.chunk().PatchJump(offset); err != nil {
		c.error("Jump is out of bounds")
	}
	ctx := c.ctx()
	if ctx.trailingPop == c.chunk().CurrentOffset()-1 {
		ctx.trailingPop = -1
	}
}

func (c *Compiler) emitLoop(loopStart int) {
	if err := c.chunk().EmitLoop(loopStart, c.previous.Pos.Line); err != nil {
		c.error("Loop body is out of bounds")
	}
}

// ---------------------------------------------------------------------------
// Scopes and locals
// ---------------------------------------------------------------------------

func (c *Compiler) beginScope() {
	c.ctx().scopeDepth++
}

// endScope leaves a block, popping its locals in LIFO order.
func (c *Compiler) endScope() {
	ctx := c.ctx()
	ctx.scopeDepth--
	for len(ctx.locals) > 0 && ctx.locals[len(ctx.locals)-1].Depth > ctx.scopeDepth {
		c.emit(vm.OpPop)
		ctx.locals = ctx.locals[:len(ctx.locals)-1]
	}
}

// addLocal binds name to the next frame slot.
func (c *Compiler) addLocal(name string) {
	ctx := c.ctx()
	if len(ctx.locals) >= MaxLocals {
		c.error("Too many local variables in function")
		return
	}
	ctx.locals = append(ctx.locals, Local{Name: name, Depth: ctx.scopeDepth})
}

// declaredInScope reports whether name is already a local of the innermost
// scope.
func (c *Compiler) declaredInScope(name string) bool {
	ctx := c.ctx()
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		local := ctx.locals[i]
		if local.Depth < ctx.scopeDepth {
			break
		}
		if local.Name == name {
			return true
		}
	}
	return false
}

// resolveLocal finds name among the innermost function's locals, nearest
// declaration first. Enclosing functions are not searched.
func (c *Compiler) resolveLocal(name string) (byte, bool) {
	ctx := c.ctx()
	for i := len(ctx.locals) - 1; i > 0; i-- {
		if ctx.locals[i].Name == name {
			return byte(i), true
		}
	}
	return 0, false
}

func (c *Compiler) addSymbol(name string, kind SymbolKind, params []string, pos Position) {
	c.symbols = append(c.symbols, Symbol{Name: name, Kind: kind, Params: params, Pos: pos})
}
