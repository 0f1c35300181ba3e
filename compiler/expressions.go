package compiler

import (
	"strconv"

	"github.com/topaz-lang/topaz/vm"
)

// ---------------------------------------------------------------------------
// Expressions (Pratt parser)
// ---------------------------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence compiles an expression whose operators bind at least as
// tightly as prec.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := GetRule(c.previous.Type).Prefix
	if prefix == nil {
		c.error("Expect expression")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= GetRule(c.current.Type).Precedence {
		c.advance()
		GetRule(c.previous.Type).Infix(c, canAssign)
	}

	if canAssign && c.match(TokenEqual) {
		c.error("Invalid assignment target")
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.error("Invalid number literal")
		return
	}
	c.emitConstant(vm.Number(n))
}

// stringLiteral emits the literal without its surrounding quotes.
func (c *Compiler) stringLiteral(canAssign bool) {
	lit := c.previous.Literal
	c.emitConstant(vm.String(lit[1 : len(lit)-1]))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case TokenFalse:
		c.emit(vm.OpFalse)
	case TokenNil:
		c.emit(vm.OpNil)
	case TokenTrue:
		c.emit(vm.OpTrue)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRParen, "Expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(PrecUnary)

	switch op {
	case TokenMinus:
		c.emit(vm.OpNegate)
	case TokenBang:
		c.emit(vm.OpNot)
	}
}

// binary compiles the right operand one level tighter than the operator,
// which makes every binary operator left-associative.
func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(GetRule(op).Precedence + 1)

	switch op {
	case TokenPlus:
		c.emit(vm.OpAdd)
	case TokenMinus:
		c.emit(vm.OpSubtract)
	case TokenStar:
		c.emit(vm.OpMultiply)
	case TokenSlash:
		c.emit(vm.OpDivide)
	case TokenPercent:
		c.emit(vm.OpMod)
	case TokenAmp:
		c.emit(vm.OpBitAnd)
	case TokenPipe:
		c.emit(vm.OpBitOr)
	case TokenAmpAmp:
		c.emit(vm.OpAnd)
	case TokenPipePipe:
		c.emit(vm.OpOr)
	case TokenEqualEqual:
		c.emit(vm.OpEqual)
	case TokenBangEqual:
		c.emit(vm.OpEqual)
		c.emit(vm.OpNot)
	case TokenGreater:
		c.emit(vm.OpGreater)
	case TokenGreaterEqual:
		c.emit(vm.OpLess)
		c.emit(vm.OpNot)
	case TokenLess:
		c.emit(vm.OpLess)
	case TokenLessEqual:
		c.emit(vm.OpGreater)
		c.emit(vm.OpNot)
	}
}

// arrayLiteral compiles `[e1, e2, ...]`.
func (c *Compiler) arrayLiteral(canAssign bool) {
	count := 0
	if !c.check(TokenRBracket) {
		for {
			c.expression()
			if count == MaxArgs {
				c.error("Can't have more than 255 elements in an array literal")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRBracket, "Expect ']' after array elements")
	c.emitOperand(vm.OpBuildArray, byte(min(count, MaxArgs)))
}

// subscript compiles `target[index]` or `target[index] = value`.
func (c *Compiler) subscript(canAssign bool) {
	c.expression()
	c.consume(TokenRBracket, "Expect ']' after index")

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emit(vm.OpSetSubscript)
		return
	}
	c.emit(vm.OpGetSubscript)
}

// property compiles `target.name` or `target.name = value`.
func (c *Compiler) property(canAssign bool) {
	c.consume(TokenIdentifier, "Expect property name after '.'")
	name := c.identifierConstant(c.previous.Literal)

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitOperand(vm.OpSetProperty, name)
		return
	}
	c.emitOperand(vm.OpGetProperty, name)
}

// call compiles `callee(a1, ..., an)`; the callee is already on the stack.
func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOperand(vm.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	count := 0
	if !c.check(TokenRParen) {
		for {
			c.expression()
			if count == MaxArgs {
				c.error("Can't have more than 255 arguments")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRParen, "Expect ')' after arguments")
	return byte(min(count, MaxArgs))
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// namedVariable emits a read or assignment of name. Names that are not
// locals of the innermost function are globals.
func (c *Compiler) namedVariable(tok Token, canAssign bool) {
	name := tok.Literal
	getOp, setOp := vm.OpGetLocal, vm.OpSetLocal
	arg, isLocal := c.resolveLocal(name)
	if !isLocal {
		getOp, setOp = vm.OpGetGlobal, vm.OpSetGlobal
		arg = c.identifierConstant(name)
	}

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitOperand(setOp, arg)
		if !isLocal && len(c.contexts) == 1 {
			c.addSymbol(name, SymbolGlobal, nil, tok.Pos)
		}
		return
	}
	c.emitOperand(getOp, arg)
}
