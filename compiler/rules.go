package compiler

// Precedence orders binding strength from loosest to tightest.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // ||
	PrecAnd                   // &&
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + - & |
	PrecFactor                // * / %
	PrecUnary                 // ! -
	PrecCall                  // () .
	PrecSubscript             // []
	PrecPrimary
)

var precedenceNames = [...]string{
	PrecNone:       "NONE",
	PrecAssignment: "ASSIGNMENT",
	PrecOr:         "OR",
	PrecAnd:        "AND",
	PrecEquality:   "EQUALITY",
	PrecComparison: "COMPARISON",
	PrecTerm:       "TERM",
	PrecFactor:     "FACTOR",
	PrecUnary:      "UNARY",
	PrecCall:       "CALL",
	PrecSubscript:  "SUBSCRIPT",
	PrecPrimary:    "PRIMARY",
}

func (p Precedence) String() string {
	if p >= 0 && int(p) < len(precedenceNames) {
		return precedenceNames[p]
	}
	return "PREC?"
}

// parseFn compiles one prefix or infix production. The token that selected
// it is in c.previous.
type parseFn func(c *Compiler, canAssign bool)

// ParseRule is the Pratt table entry for one token type.
type ParseRule struct {
	Prefix     parseFn
	Infix      parseFn
	Precedence Precedence
}

var rules [tokenTypeCount]ParseRule

func init() {
	rules[TokenLParen] = ParseRule{(*Compiler).grouping, (*Compiler).call, PrecCall}
	rules[TokenLBracket] = ParseRule{(*Compiler).arrayLiteral, (*Compiler).subscript, PrecSubscript}
	rules[TokenDot] = ParseRule{nil, (*Compiler).property, PrecCall}

	rules[TokenMinus] = ParseRule{(*Compiler).unary, (*Compiler).binary, PrecTerm}
	rules[TokenPlus] = ParseRule{nil, (*Compiler).binary, PrecTerm}
	rules[TokenAmp] = ParseRule{nil, (*Compiler).binary, PrecTerm}
	rules[TokenPipe] = ParseRule{nil, (*Compiler).binary, PrecTerm}
	rules[TokenSlash] = ParseRule{nil, (*Compiler).binary, PrecFactor}
	rules[TokenStar] = ParseRule{nil, (*Compiler).binary, PrecFactor}
	rules[TokenPercent] = ParseRule{nil, (*Compiler).binary, PrecFactor}

	rules[TokenBang] = ParseRule{(*Compiler).unary, nil, PrecNone}
	rules[TokenBangEqual] = ParseRule{nil, (*Compiler).binary, PrecEquality}
	rules[TokenEqualEqual] = ParseRule{nil, (*Compiler).binary, PrecEquality}
	rules[TokenGreater] = ParseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenGreaterEqual] = ParseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenLess] = ParseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenLessEqual] = ParseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenAmpAmp] = ParseRule{nil, (*Compiler).binary, PrecAnd}
	rules[TokenPipePipe] = ParseRule{nil, (*Compiler).binary, PrecOr}

	rules[TokenIdentifier] = ParseRule{(*Compiler).variable, nil, PrecNone}
	rules[TokenString] = ParseRule{(*Compiler).stringLiteral, nil, PrecNone}
	rules[TokenNumber] = ParseRule{(*Compiler).number, nil, PrecNone}
	rules[TokenFalse] = ParseRule{(*Compiler).literal, nil, PrecNone}
	rules[TokenNil] = ParseRule{(*Compiler).literal, nil, PrecNone}
	rules[TokenTrue] = ParseRule{(*Compiler).literal, nil, PrecNone}
}

// GetRule returns the parse rule for a token type.
func GetRule(t TokenType) ParseRule {
	if t < 0 || t >= tokenTypeCount {
		return ParseRule{}
	}
	return rules[t]
}
