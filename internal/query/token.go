// Package query implements the structural query language: lexer, abstract
// syntax, and parser for the tabular SELECT form and the graph-native FIND,
// SHOW, PATH, and ANALYZE forms.
package query

import "fmt"

// TokenType classifies a lexed token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenStar
	TokenComma
	TokenOp // = != < <= > >=
)

// Token is one lexed unit with its byte offset in the input.
type Token struct {
	Type TokenType
	Text string
	Pos  int
}

// SyntaxError reports malformed query input with the offending token and its
// position. Parsing never degrades a syntax problem into an empty result.
type SyntaxError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

func syntaxErr(tok Token, msg string) *SyntaxError {
	text := tok.Text
	if tok.Type == TokenEOF {
		text = ""
	}
	return &SyntaxError{Pos: tok.Pos, Token: text, Msg: msg}
}
