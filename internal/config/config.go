// Package config loads the optional ~/.knightrc.toml, grounded on
// manifest/manifest.go's BurntSushi/toml struct-tag pattern for reading
// maggie.toml. Knight's own config surface is much smaller — a handful
// of VM-wide knobs that would otherwise be CLI flags a user wants to set
// once and forget.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the optional per-user Knight configuration.
type Config struct {
	HistoryPath string `toml:"history_path"`
	DumpImage   string `toml:"dump_image"`
	Debug       bool   `toml:"debug"`
}

// Load reads ~/.knightrc.toml if present; a missing file is not an error
// and yields the zero Config.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, nil
	}
	return LoadFrom(filepath.Join(home, ".knightrc.toml"))
}

// LoadFrom reads a specific config path; a missing file yields the zero
// Config with no error.
func LoadFrom(path string) (Config, error) {
	var c Config
	if _, err := os.Stat(path); err != nil {
		return c, nil
	}
	_, err := toml.DecodeFile(path, &c)
	return c, err
}
