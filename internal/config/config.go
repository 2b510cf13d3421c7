// Package config loads the optional YAML defaults file consumed by
// cmd/maptool. Only the worker count can be overridden by a CLI flag
// (--workers); batch size and log level come from the file or the defaults.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds run defaults. Zero values are replaced by Defaults().
type Config struct {
	BatchSize int    `yaml:"batch_size"`
	Workers   int    `yaml:"workers"`
	LogLevel  string `yaml:"log_level"`
}

// Defaults returns the built-in configuration used when no file is given.
func Defaults() Config {
	return Config{
		BatchSize: 100,
		Workers:   0,   // 0 means runtime.NumCPU()
		LogLevel:  "info",
	}
}

// Load reads a YAML config file and layers it over Defaults(). A missing
// path is not an error; the caller is expected to pass "" in that case and
// receive plain defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvedWorkers returns the effective worker count: Workers if positive,
// otherwise runtime.NumCPU().
func (c Config) ResolvedWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
