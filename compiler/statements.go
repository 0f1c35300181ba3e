package compiler

import (
	"github.com/topaz-lang/topaz/vm"
)

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// declaration compiles one declaration or statement. Function declarations
// only open a new context here; the enclosing loop keeps compiling the
// body into it and closes it at the matching '}'.
func (c *Compiler) declaration() {
	switch {
	case c.match(TokenFn):
		c.fnDeclaration()
	case c.match(TokenClass):
		c.classDeclaration()
	case c.match(TokenLet):
		c.letDeclaration()
	default:
		c.statement()
	}
}

// fnDeclaration compiles `fn name(p1, ..., pn) {` and leaves the new
// function's context on top of the stack.
func (c *Compiler) fnDeclaration() {
	c.consume(TokenIdentifier, "Expect function name")
	nameTok := c.previous
	c.consume(TokenLParen, "Expect '(' after function name")

	ctx := c.pushContext(nameTok.Literal, 1)
	ctx.nameLine = nameTok.Pos.Line
	fn := ctx.fn

	if !c.check(TokenRParen) {
		for {
			c.consume(TokenIdentifier, "Expect parameter name")
			param := c.previous.Literal
			if fn.NumParams == MaxArgs {
				c.error("Can't have more than 255 parameters")
			} else if c.declaredInScope(param) {
				c.error("Duplicate parameter name")
			} else {
				c.addLocal(param)
				fn.NumParams++
				fn.ParamNames = append(fn.ParamNames, param)
			}
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRParen, "Expect ')' after parameters")
	c.consume(TokenLBrace, "Expect '{' before function body")

	c.addSymbol(fn.Name, SymbolFunction, fn.ParamNames, nameTok.Pos)
}

// classDeclaration compiles `class Name {}`.
func (c *Compiler) classDeclaration() {
	c.consume(TokenIdentifier, "Expect class name")
	nameTok := c.previous
	idx := c.identifierConstant(nameTok.Literal)

	c.emitOperand(vm.OpClass, idx)
	c.emitOperand(vm.OpSetGlobal, idx)
	c.emit(vm.OpPop)

	c.consume(TokenLBrace, "Expect '{' before class body")
	c.consume(TokenRBrace, "Expect '}' after class body")

	c.addSymbol(nameTok.Literal, SymbolClass, nil, nameTok.Pos)
}

// letDeclaration compiles `let name [= expr]`. Inside a block it declares a
// local in the next free slot; at the top level it defines a global.
func (c *Compiler) letDeclaration() {
	c.consume(TokenIdentifier, "Expect variable name")
	nameTok := c.previous
	name := nameTok.Literal

	ctx := c.ctx()
	local := ctx.scopeDepth > 0
	if local && c.declaredInScope(name) {
		c.error("Already a variable with this name in this scope")
	}

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emit(vm.OpNil)
	}

	if local {
		c.addLocal(name)
		return
	}
	c.emitOperand(vm.OpSetGlobal, c.identifierConstant(name))
	c.emit(vm.OpPop)
	c.addSymbol(name, SymbolGlobal, nil, nameTok.Pos)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) statement() {
	switch {
	case c.match(TokenPrint):
		c.expression()
		c.emit(vm.OpPrint)
	case c.match(TokenLBrace):
		c.beginScope()
		c.block()
		c.endScope()
	case c.match(TokenIf):
		c.ifStatement()
	case c.match(TokenWhile):
		c.whileStatement()
	case c.match(TokenReturn):
		c.returnStatement()
	default:
		c.expressionStatement()
	}
}

// block compiles declarations up to the closing '}'. Function bodies opened
// inside the block are closed here too.
func (c *Compiler) block() {
	c.blockLevel++
	for !c.check(TokenEOF) {
		if c.check(TokenRBrace) {
			if !c.closesFunction() {
				break
			}
			c.advance()
			c.endFunction()
			continue
		}
		c.declaration()
	}
	c.blockLevel--
	c.consume(TokenRBrace, "Expect '}' after block")
}

func (c *Compiler) ifStatement() {
	c.expression()

	thenJump := c.emitJump(vm.OpJumpIfFalse)
	c.emit(vm.OpPop)
	c.statement()

	elseJump := c.emitJump(vm.OpJump)
	c.patchJump(thenJump)
	c.emit(vm.OpPop)

	if c.match(TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().CurrentOffset()
	c.expression()

	exitJump := c.emitJump(vm.OpJumpIfFalse)
	c.emit(vm.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emit(vm.OpPop)
}

// returnStatement compiles `return [expr]`. A return followed by '}', the
// end of input or a line break returns nil without consuming what follows.
func (c *Compiler) returnStatement() {
	returnLine := c.previous.Pos.Line
	if c.check(TokenRBrace) || c.check(TokenEOF) || c.current.Pos.Line > returnLine {
		c.emit(vm.OpNil)
	} else {
		c.expression()
	}
	c.emit(vm.OpReturn)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emit(vm.OpPop)

	ctx := c.ctx()
	if ctx.scopeDepth == ctx.bodyDepth {
		ctx.trailingPop = c.chunk().CurrentOffset() - 1
	}
}
