package lexer

import "testing"

func TestTokenizeBasicArithmetic(t *testing.T) {
	toks, err := Tokenize("+ 1 2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []Token{
		{Kind: Function, Text: "+"},
		{Kind: NumberLit, Num: 1},
		{Kind: NumberLit, Num: 2},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.Kind || toks[i].Text != w.Text || toks[i].Num != w.Num {
			t.Errorf("token %d = %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestTokenizeKnightWordsElideTrailingUppercase(t *testing.T) {
	toks, err := Tokenize("OUTPUT")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != Function || toks[0].Text != "O" {
		t.Fatalf("Tokenize(OUTPUT) = %+v, want a single Function token 'O'", toks)
	}
}

func TestTokenizeIdentifier(t *testing.T) {
	toks, err := Tokenize("foo_bar123")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != Identifier || toks[0].Text != "foo_bar123" {
		t.Fatalf("Tokenize(foo_bar123) = %+v", toks)
	}
}

func TestTokenizeStringLiteral(t *testing.T) {
	toks, err := Tokenize(`"hello"`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != StringLit || toks[0].Text != "hello" {
		t.Fatalf("Tokenize: got %+v", toks)
	}
}

func TestTokenizeUnterminatedStringIsALexError(t *testing.T) {
	if _, err := Tokenize(`"oops`); err == nil {
		t.Fatalf("expected an unterminated string literal to fail to lex")
	}
}

func TestTokenizeCommentsAreStripped(t *testing.T) {
	toks, err := Tokenize("# a comment\n1")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != NumberLit || toks[0].Num != 1 {
		t.Fatalf("expected only the trailing number to survive: %+v", toks)
	}
}

func TestTokenizeUnexpectedCharacterIsALexError(t *testing.T) {
	if _, err := Tokenize("@"); err == nil {
		t.Fatalf("expected an unrecognized character to fail to lex")
	}
}

func TestTokenizeRejectsOutOfRangeNumericLiteral(t *testing.T) {
	if _, err := Tokenize("99999999999999999999999999999999"); err == nil {
		t.Fatalf("expected an overflowing numeric literal to fail to lex")
	}
}
