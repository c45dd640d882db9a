package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer produces tokens from a query string. Identifiers may contain dots,
// colons, slashes, and dashes so that node ids (fn:pkg/auth.py:login) and
// qualified names (pkg.auth.login) lex as a single token.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func isIdentRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return true
	case r == '_', r == '.', r == ':', r == '/', r == '-':
		return true
	}
	return false
}

// next returns the next token, advancing the lexer. A malformed token (an
// unterminated string, a stray character) is surfaced as a SyntaxError.
func (l *lexer) next() (Token, error) {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch c {
	case '*':
		l.pos++
		return Token{Type: TokenStar, Text: "*", Pos: start}, nil
	case ',':
		l.pos++
		return Token{Type: TokenComma, Text: ",", Pos: start}, nil
	case '=':
		l.pos++
		return Token{Type: TokenOp, Text: "=", Pos: start}, nil
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Text: "!=", Pos: start}, nil
		}
		return Token{}, &SyntaxError{Pos: start, Token: "!", Msg: "expected != operator"}
	case '<', '>':
		op := string(c)
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			op += "="
			l.pos++
		}
		return Token{Type: TokenOp, Text: op, Pos: start}, nil
	case '"', '\'':
		quote := c
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.input) {
			ch := l.input[l.pos]
			if ch == '\\' && l.pos+1 < len(l.input) {
				l.pos++
				sb.WriteByte(l.input[l.pos])
				l.pos++
				continue
			}
			if ch == quote {
				l.pos++
				return Token{Type: TokenString, Text: sb.String(), Pos: start}, nil
			}
			sb.WriteByte(ch)
			l.pos++
		}
		return Token{}, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
	}

	if c >= '0' && c <= '9' {
		for l.pos < len(l.input) {
			ch := l.input[l.pos]
			if (ch >= '0' && ch <= '9') || ch == '.' {
				l.pos++
				continue
			}
			break
		}
		return Token{Type: TokenNumber, Text: l.input[start:l.pos], Pos: start}, nil
	}

	// Identifiers are decoded rune by rune so multi-byte qualified names
	// stay one token.
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	if isIdentRune(r) {
		l.pos += size
		for l.pos < len(l.input) {
			r, size := utf8.DecodeRuneInString(l.input[l.pos:])
			if !isIdentRune(r) {
				break
			}
			l.pos += size
		}
		return Token{Type: TokenIdent, Text: l.input[start:l.pos], Pos: start}, nil
	}

	return Token{}, &SyntaxError{Pos: start, Token: string(r), Msg: "unexpected character"}
}
