package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileYieldsZeroValue(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if c != (Config{}) {
		t.Fatalf("got %+v, want the zero Config", c)
	}
}

func TestLoadFromDecodesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knightrc.toml")
	contents := `
history_path = "/tmp/knight-history.db"
dump_image = "/tmp/knight.img"
debug = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	want := Config{HistoryPath: "/tmp/knight-history.db", DumpImage: "/tmp/knight.img", Debug: true}
	if c != want {
		t.Fatalf("got %+v, want %+v", c, want)
	}
}
