// Package lexer tokenizes QL source strings.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/secsim/go-kql/kql"
)

// Lexer tokenizes a query string. The whole input is scanned up front;
// the parser then walks the token slice.
type Lexer struct {
	input   string
	pos     int
	line    int
	col     int
	tokens  []Token
	current int
}

// New creates a lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Lex tokenizes the entire input. Errors are ParseError kinds carrying
// the offending position.
func (l *Lexer) Lex() error {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		startLine := l.line
		startCol := l.col

		ch := l.peek()
		switch {
		case ch == '|':
			l.advance()
			l.emit(TokenPipe, "", startLine, startCol)
		case ch == ',':
			l.advance()
			l.emit(TokenComma, "", startLine, startCol)
		case ch == '(':
			l.advance()
			l.emit(TokenLParen, "", startLine, startCol)
		case ch == ')':
			l.advance()
			l.emit(TokenRParen, "", startLine, startCol)
		case ch == '+':
			l.advance()
			l.emit(TokenPlus, "", startLine, startCol)
		case ch == '*':
			l.advance()
			l.emit(TokenStar, "", startLine, startCol)
		case ch == '/':
			l.advance()
			l.emit(TokenSlash, "", startLine, startCol)
		case ch == '-':
			l.advance()
			l.emit(TokenMinus, "", startLine, startCol)
		case ch == '=':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(TokenEq, "", startLine, startCol)
			} else {
				l.emit(TokenAssign, "", startLine, startCol)
			}
		case ch == '!':
			l.advance()
			if l.peek() != '=' {
				return l.errorf(startLine, startCol, "unexpected character '!'")
			}
			l.advance()
			l.emit(TokenNeq, "", startLine, startCol)
		case ch == '<':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(TokenLte, "", startLine, startCol)
			} else {
				l.emit(TokenLt, "", startLine, startCol)
			}
		case ch == '>':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(TokenGte, "", startLine, startCol)
			} else {
				l.emit(TokenGt, "", startLine, startCol)
			}
		case ch == '\'' || ch == '"':
			str, err := l.readString()
			if err != nil {
				return err
			}
			l.emit(TokenString, str, startLine, startCol)
		case ch >= '0' && ch <= '9':
			if err := l.readNumber(startLine, startCol); err != nil {
				return err
			}
		case isIdentStart(l.peekRune()):
			l.emit(TokenIdent, l.readIdent(), startLine, startCol)
		default:
			return l.errorf(startLine, startCol, "unexpected character %q", string(l.peekRune()))
		}
	}

	l.emit(TokenEOF, "", l.line, l.col)
	return nil
}

// NextToken returns the next token and advances.
func (l *Lexer) NextToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	tok := l.tokens[l.current]
	l.current++
	return tok
}

// PeekToken returns the next token without advancing.
func (l *Lexer) PeekToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}
	}
	return l.tokens[l.current]
}

// Tokens returns the full scanned token slice.
func (l *Lexer) Tokens() []Token {
	return l.tokens
}

func (l *Lexer) emit(t TokenType, text string, line, col int) {
	l.tokens = append(l.tokens, Token{Type: t, Text: text, Line: line, Col: col})
}

func (l *Lexer) errorf(line, col int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return kql.ErrParse.New(fmt.Sprintf("line %d, column %d: %s", line, col, msg))
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekRune() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) advanceRune() {
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	for i := 0; i < size; i++ {
		l.advance()
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r', '\n':
			l.advance()
		default:
			return
		}
	}
}

// readString consumes a single- or double-quoted string literal.
// Backslash escapes the quote characters, backslash itself, and the
// common control escapes n and t.
func (l *Lexer) readString() (string, error) {
	startLine := l.line
	startCol := l.col
	quote := l.peek()
	l.advance()

	var out []byte
	for {
		if l.pos >= len(l.input) {
			return "", l.errorf(startLine, startCol, "unterminated string literal")
		}
		ch := l.peek()
		if ch == quote {
			l.advance()
			return string(out), nil
		}
		if ch == '\\' {
			l.advance()
			if l.pos >= len(l.input) {
				return "", l.errorf(startLine, startCol, "unterminated string literal")
			}
			esc := l.peek()
			switch esc {
			case '\\', '\'', '"':
				out = append(out, esc)
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			default:
				// Preserve unrecognized escapes verbatim so regex
				// patterns like "\s+" survive the string literal.
				out = append(out, '\\', esc)
			}
			l.advance()
			continue
		}
		out = append(out, ch)
		l.advance()
	}
}

// readNumber consumes an integer, real, or timespan literal. A digit
// run followed immediately by one of d, h, m, s (and no further
// identifier characters) is a timespan.
func (l *Lexer) readNumber(line, col int) error {
	start := l.pos
	for l.pos < len(l.input) && l.peek() >= '0' && l.peek() <= '9' {
		l.advance()
	}
	isReal := false
	if l.peek() == '.' && l.pos+1 < len(l.input) && l.input[l.pos+1] >= '0' && l.input[l.pos+1] <= '9' {
		isReal = true
		l.advance()
		for l.pos < len(l.input) && l.peek() >= '0' && l.peek() <= '9' {
			l.advance()
		}
	}

	// Timespan suffix: 1h, 30m, 7d, 1.5h
	if ch := l.peek(); ch == 'd' || ch == 'h' || ch == 'm' || ch == 's' {
		next := rune(0)
		if l.pos+1 < len(l.input) {
			next, _ = utf8.DecodeRuneInString(l.input[l.pos+1:])
		}
		if !isIdentPart(next) {
			l.advance()
			l.emit(TokenTimespan, l.input[start:l.pos], line, col)
			return nil
		}
	}

	if isIdentPart(l.peekRune()) {
		return l.errorf(line, col, "malformed number %q", l.input[start:l.pos]+string(l.peekRune()))
	}

	if isReal {
		l.emit(TokenReal, l.input[start:l.pos], line, col)
	} else {
		l.emit(TokenInt, l.input[start:l.pos], line, col)
	}
	return nil
}

func (l *Lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peekRune()) {
		l.advanceRune()
	}
	return l.input[start:l.pos]
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
