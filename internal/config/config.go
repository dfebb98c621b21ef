// Package config loads the YAML run configuration shared by the CLI
// commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/twinfer/matcsv/pkg/convert"
	"github.com/twinfer/matcsv/pkg/label"
	"github.com/twinfer/matcsv/pkg/merge"
)

// Config mirrors the command-line flags.
type Config struct {
	Source           string   `yaml:"source,omitempty"`
	OutDir           string   `yaml:"out_dir"`
	Extension        string   `yaml:"extension"`
	Delimiter        string   `yaml:"delimiter"`
	ReservedPrefixes []string `yaml:"reserved_prefixes"`
	Workers          int      `yaml:"workers"`
	SQLitePath       string   `yaml:"sqlite_path,omitempty"`
	LogLevel         string   `yaml:"log_level"`

	Merge MergeConfig `yaml:"merge"`
	Label LabelConfig `yaml:"label"`
}

// MergeConfig configures the merge command.
type MergeConfig struct {
	Files  []string `yaml:"files"`
	Output string   `yaml:"output"`
}

// LabelConfig configures the label command.
type LabelConfig struct {
	Path       string   `yaml:"path"`
	Columns    []string `yaml:"columns"`
	Target     string   `yaml:"target"`
	Separator  string   `yaml:"separator"`
	Expression string   `yaml:"expression,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		OutDir:           "data",
		Extension:        "csv",
		Delimiter:        ",",
		ReservedPrefixes: append([]string(nil), convert.DefaultReservedPrefixes...),
		Workers:          1,
		LogLevel:         "info",
		Merge: MergeConfig{
			Files:  append([]string(nil), merge.DefaultFiles...),
			Output: "data/data.csv",
		},
		Label: LabelConfig{
			Path:      "data/data.csv",
			Columns:   append([]string(nil), label.DefaultColumns...),
			Target:    label.DefaultTarget,
			Separator: "_",
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.OutDir == "" {
		errs = append(errs, errors.New("out_dir must not be empty"))
	}
	if strings.ContainsAny(c.Extension, `/\`) {
		errs = append(errs, fmt.Errorf("extension %q must not contain a path separator", c.Extension))
	}
	if _, err := c.DelimiterRune(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Label.Expression == "" && len(c.Label.Columns) == 0 {
		errs = append(errs, errors.New("label.columns must not be empty without label.expression"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DelimiterRune returns the single-character delimiter. "\t" and "tab"
// both mean a tab.
func (c *Config) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size == 0 || size != len(c.Delimiter) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q must be a single character", c.Delimiter)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter %q is not allowed", c.Delimiter)
	}
	return r, nil
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
