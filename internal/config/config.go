// Package config loads optional YAML deployment overrides: an extension
// to the code generator's standard-library allow-list and an override for
// its default scratch-stack size. A plain YAML-tagged struct read once at
// CLI startup.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ftagili/spo/pkg/codegen"
)

// Config is the top-level shape of an optional --config YAML file. Every
// field is optional; an absent file (or a zero Config) reproduces exactly
// the undecorated default behavior.
type Config struct {
	// ScratchStackSize overrides the code generator's default 512-byte
	// per-function scratch stack. Zero keeps the default.
	ScratchStackSize int `yaml:"ScratchStackSize"`
	// ExtraAllowlist extends the standard-library allow-list with
	// additional runtime symbol base names a deployment's runtime
	// provides.
	ExtraAllowlist []string `yaml:"ExtraAllowlist"`
	// LogLevel selects the zap level used by the CLI's development logger
	// ("debug", "info", "warn", "error"); empty keeps the CLI default.
	LogLevel string `yaml:"LogLevel"`
}

// Load reads and parses a YAML config file at path. An empty path is not
// an error: it returns the zero Config, which reproduces the undecorated
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %q", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %q", path)
	}
	return cfg, nil
}

// CodegenOptions translates the loaded Config into codegen.Options.
func (c Config) CodegenOptions() codegen.Options {
	return codegen.Options{
		ScratchSize:    c.ScratchStackSize,
		ExtraAllowlist: c.ExtraAllowlist,
	}
}
