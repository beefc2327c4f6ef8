package lexer

import (
	"strconv"

	"github.com/chazu/knight/internal/knerr"
)

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '[', ']', '{', '}', ':':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isIdentCont(c byte) bool { return isLower(c) || isDigit(c) || c == '_' }

// functionSymbols is the set of single-character function tokens that are
// punctuation rather than uppercase letters.
const functionSymbols = "+-*/%^!<>?|&;=`"

// Tokenize scans src into an ordered token stream. It is the sole stage
// responsible for whitespace/comment stripping, ASCII token
// classification, and literal parsing — everything downstream of this
// function treats its output as ground truth.
func Tokenize(src string) ([]Token, error) {
	var toks []Token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]

		switch {
		case isWhitespace(c):
			i++

		case c == '#':
			for i < n && src[i] != '\n' {
				i++
			}

		case isDigit(c):
			start := i
			for i < n && isDigit(src[i]) {
				i++
			}
			text := src[start:i]
			num, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, knerr.Lexf(knerr.Position{First: start, Last: i}, "numeric literal out of range: %s", text)
			}
			toks = append(toks, Token{Kind: NumberLit, Num: num, Pos: knerr.Position{First: start, Last: i}})

		case c == '\'' || c == '"':
			quote := c
			start := i
			i++
			contentStart := i
			for i < n && src[i] != quote {
				i++
			}
			if i >= n {
				return nil, knerr.Lexf(knerr.Position{First: start, Last: n}, "unterminated string literal")
			}
			toks = append(toks, Token{Kind: StringLit, Text: src[contentStart:i], Pos: knerr.Position{First: start, Last: i + 1}})
			i++ // consume closing quote

		case isLower(c) || c == '_':
			start := i
			i++
			for i < n && isIdentCont(src[i]) {
				i++
			}
			toks = append(toks, Token{Kind: Identifier, Text: src[start:i], Pos: knerr.Position{First: start, Last: i}})

		case isUpper(c):
			start := i
			letter := c
			i++
			// Additional uppercase letters and underscores after the first
			// are elided: KNIGHT_WORDS lets e.g. `OUTPUT` read like a word
			// even though only the leading `O` is semantically meaningful.
			for i < n && (isUpper(src[i]) || src[i] == '_') {
				i++
			}
			toks = append(toks, Token{Kind: Function, Text: string(letter), Pos: knerr.Position{First: start, Last: i}})

		default:
			if containsByte(functionSymbols, c) {
				toks = append(toks, Token{Kind: Function, Text: string(c), Pos: knerr.Position{First: i, Last: i + 1}})
				i++
			} else {
				return nil, knerr.Lexf(knerr.Position{First: i, Last: i + 1}, "unexpected character %q", c)
			}
		}
	}

	return toks, nil
}

func containsByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}
