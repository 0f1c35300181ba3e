package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the topaz lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdentifier // foo, Bar
	TokenString     // "hello", 'hello'
	TokenNumber     // 42, 3.14

	// Single-character tokens
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenDot      // .
	TokenMinus    // -
	TokenPlus     // +
	TokenSlash    // /
	TokenStar     // *
	TokenPercent  // %
	TokenBang     // !
	TokenEqual    // =
	TokenGreater  // >
	TokenLess     // <
	TokenAmp      // &
	TokenPipe     // |

	// Two-character tokens
	TokenBangEqual      // !=
	TokenEqualEqual     // ==
	TokenGreaterEqual   // >=
	TokenLessEqual      // <=
	TokenLessLess       // <<
	TokenGreaterGreater // >>
	TokenAmpAmp         // &&
	TokenPipePipe       // ||

	// Keywords
	TokenClass
	TokenElse
	TokenFalse
	TokenFor
	TokenFn
	TokenIf
	TokenLet
	TokenNil
	TokenPrint
	TokenReturn
	TokenSelf
	TokenSuper
	TokenTrue
	TokenWhile

	tokenTypeCount
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenIdentifier: "IDENTIFIER",
	TokenString:     "STRING",
	TokenNumber:     "NUMBER",

	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenDot:      ".",
	TokenMinus:    "-",
	TokenPlus:     "+",
	TokenSlash:    "/",
	TokenStar:     "*",
	TokenPercent:  "%",
	TokenBang:     "!",
	TokenEqual:    "=",
	TokenGreater:  ">",
	TokenLess:     "<",
	TokenAmp:      "&",
	TokenPipe:     "|",

	TokenBangEqual:      "!=",
	TokenEqualEqual:     "==",
	TokenGreaterEqual:   ">=",
	TokenLessEqual:      "<=",
	TokenLessLess:       "<<",
	TokenGreaterGreater: ">>",
	TokenAmpAmp:         "&&",
	TokenPipePipe:       "||",

	TokenClass:  "class",
	TokenElse:   "else",
	TokenFalse:  "false",
	TokenFor:    "for",
	TokenFn:     "fn",
	TokenIf:     "if",
	TokenLet:    "let",
	TokenNil:    "nil",
	TokenPrint:  "print",
	TokenReturn: "return",
	TokenSelf:   "self",
	TokenSuper:  "super",
	TokenTrue:   "true",
	TokenWhile:  "while",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token. For TokenError the literal is the error
// message rather than source text.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; strings keep their quotes
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Keywords maps reserved words to their token types.
var Keywords = map[string]TokenType{
	"class":  TokenClass,
	"else":   TokenElse,
	"false":  TokenFalse,
	"for":    TokenFor,
	"fn":     TokenFn,
	"if":     TokenIf,
	"let":    TokenLet,
	"nil":    TokenNil,
	"print":  TokenPrint,
	"return": TokenReturn,
	"self":   TokenSelf,
	"super":  TokenSuper,
	"true":   TokenTrue,
	"while":  TokenWhile,
}
