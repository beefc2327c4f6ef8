package value

import (
	"testing"

	"github.com/chazu/knight/internal/knerr"
)

func TestToBoolCoercions(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nonzero", Number(-1), true},
		{"empty string", String(RCStringFromString("")), false},
		{"nonempty string", String(RCStringFromString("0")), true},
		{"block", Block(5), true},
	}
	for _, c := range cases {
		if got := c.v.ToBool(); got != c.want {
			t.Errorf("%s: ToBool() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestToNumberStringParsing(t *testing.T) {
	cases := []struct {
		s    string
		want int64
	}{
		{"123", 123},
		{"  \t 456", 456},
		{"-17", -17},
		{"+17", 17},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"-", 0},
	}
	for _, c := range cases {
		got := String(RCStringFromString(c.s)).ToNumber()
		if got != c.want {
			t.Errorf("ToNumber(%q) = %d, want %d", c.s, got, c.want)
		}
	}
}

func TestToStringCoercions(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Number(42), "42"},
		{Number(-3), "-3"},
	}
	for _, c := range cases {
		if got := c.v.ToString().String(); got != c.want {
			t.Errorf("ToString() = %q, want %q", got, c.want)
		}
	}
}

func TestToBlockEntryRejectsNonBlock(t *testing.T) {
	if _, err := Number(1).ToBlockEntry(knerr.Position{}); err == nil {
		t.Fatalf("expected a type error calling ToBlockEntry on a number")
	}
	entry, err := Block(99).ToBlockEntry(knerr.Position{})
	if err != nil || entry != 99 {
		t.Fatalf("ToBlockEntry(Block(99)) = (%d, %v), want (99, nil)", entry, err)
	}
}

func TestEqualIsStructuralAndNeverCrossesKinds(t *testing.T) {
	if !Equal(Number(3), Number(3)) {
		t.Errorf("expected equal numbers to compare equal")
	}
	if Equal(Number(0), Bool(false)) {
		t.Errorf("expected a number and a boolean never to be equal, even when both coerce falsy")
	}
	if !Equal(String(RCStringFromString("hi")), String(RCStringFromString("hi"))) {
		t.Errorf("expected strings with equal content to compare equal")
	}
	if Equal(Null, Bool(false)) {
		t.Errorf("expected null and false never to be equal")
	}
}
