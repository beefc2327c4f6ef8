// Package snapshot implements --dump-image/--load-image: a CBOR encoding
// of an Environment's variable table and literal pool, grounded on
// vm/dist/wire.go's canonical-mode CBOR marshalling pattern.
//
// A snapshot is a restart point, not a full VM checkpoint: it captures
// variable bindings and interned strings, not the bytecode array or the
// instruction pointer, so reloading one only makes sense at the start of
// a fresh run of the same program (or a program that establishes the
// same variable/literal ids before reading them back in via EVAL).
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/value"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// scalar is the wire form of a Value: a kind tag plus whichever payload
// field that kind uses. Block values are not snapshotted — an entry
// offset from a previous run's bytecode array means nothing on reload.
type scalar struct {
	Kind uint8  `cbor:"k"`
	Num  int64  `cbor:"n,omitempty"`
	Bool bool   `cbor:"b,omitempty"`
	Str  string `cbor:"s,omitempty"`
}

type variable struct {
	Name string `cbor:"name"`
	Set  bool   `cbor:"set"`
	Val  scalar `cbor:"val"`
}

// Image is the on-disk representation of an Environment snapshot.
type Image struct {
	Variables []variable `cbor:"variables"`
	Literals  []scalar   `cbor:"literals"`
}

func toScalar(v value.Value) scalar {
	switch v.Kind() {
	case value.KindBoolean:
		return scalar{Kind: uint8(value.KindBoolean), Bool: v.AsBool()}
	case value.KindNumber:
		return scalar{Kind: uint8(value.KindNumber), Num: v.AsNumber()}
	case value.KindString:
		return scalar{Kind: uint8(value.KindString), Str: v.AsString().String()}
	default:
		return scalar{Kind: uint8(value.KindNull)}
	}
}

func fromScalar(s scalar) value.Value {
	switch value.Kind(s.Kind) {
	case value.KindBoolean:
		return value.Bool(s.Bool)
	case value.KindNumber:
		return value.Number(s.Num)
	case value.KindString:
		return value.String(value.RCStringFromString(s.Str))
	default:
		return value.Null
	}
}

// Build captures e's variable bindings and literal pool.
func Build(e *env.Environment) Image {
	names := e.VariableNames()
	img := Image{Variables: make([]variable, len(names))}
	for id, name := range names {
		v, set := e.VariableValue(id)
		img.Variables[id] = variable{Name: name, Set: set, Val: toScalar(v)}
	}
	for _, lit := range e.LiteralPool() {
		img.Literals = append(img.Literals, toScalar(lit))
	}
	return img
}

// Save writes img to path as canonical CBOR.
func Save(path string, img Image) error {
	data, err := cborEncMode.Marshal(img)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads an Image from path.
func Load(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return Image{}, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return img, nil
}

// Restore seeds a fresh Environment's variable table and literal pool
// from img. It must run before any parsing of the program that will use
// these names, so that InternVariable/InternString assign the same ids
// the image expects.
func Restore(e *env.Environment, img Image) {
	for _, v := range img.Variables {
		label := e.InternVariable(v.Name)
		if v.Set {
			_ = e.Store(label, fromScalar(v.Val))
		}
	}
	for i, lit := range img.Literals {
		if i < 3 {
			continue // null/true/false are pre-seeded, never re-interned
		}
		if lit.Kind == uint8(value.KindString) {
			e.InternString(lit.Str)
		}
	}
}
