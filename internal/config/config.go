// Package config loads the optional arc7 configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the optional arc7 configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Codec    CodecConfig    `toml:"codec"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults. A nil field is unset.
type DefaultsConfig struct {
	Format       *string `toml:"format"`
	Level        *string `toml:"level"`
	Method       *string `toml:"method"`
	Encoding     *string `toml:"encoding"`
	ZeroFiles    *string `toml:"zero_files"`
	BWLimit      *string `toml:"bwlimit"`
	SkipExisting *bool   `toml:"skip_existing"`
	TUI          *bool   `toml:"tui"`
}

// CodecConfig selects the archive backends.
type CodecConfig struct {
	// SevenZip is the path of the 7-Zip binary. Empty means search PATH.
	SevenZip   *string `toml:"sevenzip"`
	NativeOnly *bool   `toml:"native_only"`
}

// ThemeConfig holds optional TUI color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Mauve  *string `toml:"mauve"`
	Muted  *string `toml:"muted"`
	Bright *string `toml:"bright"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "arc7", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields a zero Config.
// Keys the file sets that arc7 does not know are reported as an error so
// typos do not pass silently.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
