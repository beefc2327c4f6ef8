package lexer

import "github.com/chazu/knight/internal/knerr"

// Kind classifies a token.
type Kind uint8

const (
	StringLit Kind = iota
	NumberLit
	Identifier
	Function
)

// Token is one lexical unit, annotated with its source range.
type Token struct {
	Kind Kind
	Text string // identifier text, the function's single letter or symbol, or the string literal's contents
	Num  int64  // populated when Kind == NumberLit
	Pos  knerr.Position
}
