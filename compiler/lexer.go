package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: pull-based tokenizer for topaz source
// ---------------------------------------------------------------------------

// Lexer tokenizes topaz source code. Once the input is exhausted NextToken
// returns TokenEOF on every call.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character. The line counter advances when the
// newline is consumed, so a '\n' itself belongs to the line it ends.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: utf8.RuneCountInString(l.input[l.lineStart:l.pos]) + 1,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '(':
		return l.single(TokenLParen, pos)
	case ch == ')':
		return l.single(TokenRParen, pos)
	case ch == '{':
		return l.single(TokenLBrace, pos)
	case ch == '}':
		return l.single(TokenRBrace, pos)
	case ch == '[':
		return l.single(TokenLBracket, pos)
	case ch == ']':
		return l.single(TokenRBracket, pos)
	case ch == ',':
		return l.single(TokenComma, pos)
	case ch == '.':
		return l.single(TokenDot, pos)
	case ch == '-':
		return l.single(TokenMinus, pos)
	case ch == '+':
		return l.single(TokenPlus, pos)
	case ch == '/':
		return l.single(TokenSlash, pos)
	case ch == '*':
		return l.single(TokenStar, pos)
	case ch == '%':
		return l.single(TokenPercent, pos)

	case ch == '!':
		return l.pair('=', TokenBangEqual, TokenBang, pos)
	case ch == '=':
		return l.pair('=', TokenEqualEqual, TokenEqual, pos)
	case ch == '>':
		if l.peekChar() == '>' {
			return l.double(TokenGreaterGreater, pos)
		}
		return l.pair('=', TokenGreaterEqual, TokenGreater, pos)
	case ch == '<':
		if l.peekChar() == '<' {
			return l.double(TokenLessLess, pos)
		}
		return l.pair('=', TokenLessEqual, TokenLess, pos)
	case ch == '&':
		return l.pair('&', TokenAmpAmp, TokenAmp, pos)
	case ch == '|':
		return l.pair('|', TokenPipePipe, TokenPipe, pos)

	case ch == '"' || ch == '\'':
		return l.readString(pos)

	case isDigit(ch):
		return l.readNumber(pos)

	case isLetter(ch) || ch == '_':
		return l.readIdentifierOrKeyword(pos)

	default:
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("Unexpected character '%c'", ch), Pos: pos}
	}
}

// single consumes one character.
func (l *Lexer) single(typ TokenType, pos Position) Token {
	start := l.pos
	l.readChar()
	return Token{Type: typ, Literal: l.input[start:l.pos], Pos: pos}
}

// double consumes two characters.
func (l *Lexer) double(typ TokenType, pos Position) Token {
	start := l.pos
	l.readChar()
	l.readChar()
	return Token{Type: typ, Literal: l.input[start:l.pos], Pos: pos}
}

// pair consumes two characters when the second is next, otherwise one.
func (l *Lexer) pair(next rune, two, one TokenType, pos Position) Token {
	if l.peekChar() == next {
		return l.double(two, pos)
	}
	return l.single(one, pos)
}

// skipWhitespaceAndComments skips whitespace, newlines and # line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a string literal delimited by matching ' or " quotes.
// Strings may span lines and have no escapes; the literal keeps its quotes.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	start := l.pos
	l.readChar() // consume opening quote

	for l.ch != quote {
		if l.atEOF() {
			return Token{Type: TokenError, Literal: "Unterminated string", Pos: pos}
		}
		l.readChar()
	}
	l.readChar() // consume closing quote

	return Token{Type: TokenString, Literal: l.input[start:l.pos], Pos: pos}
}

// readNumber reads an integer or decimal literal. A fractional part needs a
// digit after the dot, so "1.foo" lexes as 1 . foo.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier and classifies reserved words.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	if typ, ok := Keywords[literal]; ok {
		return Token{Type: typ, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: literal, Pos: pos}
}

// Tokenize returns every token up to and including the first EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
