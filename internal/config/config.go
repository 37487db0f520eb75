// Package config loads the settings of the sketchsolve command from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"honnef.co/go/sketch"
	"honnef.co/go/sketch/worker"

	"gopkg.in/yaml.v3"
)

// Config contains all settings. The zero value is not valid; start from
// [Default].
type Config struct {
	Solver SolverConfig `yaml:"solver"`
	Worker WorkerConfig `yaml:"worker"`
	Log    LogConfig    `yaml:"log"`
}

type SolverConfig struct {
	// Method is "gauss-newton" or "steepest-descent".
	Method        string  `yaml:"method"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	MinStep       float64 `yaml:"min_step"`
}

type WorkerConfig struct {
	// Buffer is the capacity of the worker's channels.
	Buffer int `yaml:"buffer"`
	// Metrics enables Prometheus metrics.
	Metrics bool `yaml:"metrics"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Method:        sketch.MethodGaussNewton.String(),
			MaxIterations: sketch.DefaultMaxIterations,
			Tolerance:     sketch.DefaultTolerance,
			MinStep:       sketch.DefaultMinStep,
		},
		Worker: WorkerConfig{
			Buffer: worker.DefaultBuffer,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path on top of the defaults, applies
// overrides from the environment, and validates the result. An empty path
// or a file that doesn't exist yields the defaults.
//
// Recognized environment variables are SKETCH_METHOD, SKETCH_MAX_ITERATIONS
// and SKETCH_LOG_LEVEL.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("load config file: %w", err)
		default:
			if err := cfg.decode(data); err != nil {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}
	if err := cfg.loadEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse parses YAML on top of the defaults and validates the result. Unknown
// keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) loadEnv(getenv func(string) string) error {
	if v := getenv("SKETCH_METHOD"); v != "" {
		c.Solver.Method = v
	}
	if v := getenv("SKETCH_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SKETCH_MAX_ITERATIONS: %w", err)
		}
		c.Solver.MaxIterations = n
	}
	if v := getenv("SKETCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if _, err := sketch.ParseMethod(c.Solver.Method); err != nil {
		return fmt.Errorf("solver.method: %w", err)
	}
	if c.Solver.MaxIterations < 1 {
		return fmt.Errorf("solver.max_iterations must be >= 1")
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("solver.tolerance must be > 0")
	}
	if c.Solver.MinStep <= 0 {
		return fmt.Errorf("solver.min_step must be > 0")
	}
	if c.Worker.Buffer < 1 {
		return fmt.Errorf("worker.buffer must be >= 1")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SolveOptions converts the solver settings. The configuration must be
// valid.
func (c Config) SolveOptions() sketch.SolveOptions {
	m, err := sketch.ParseMethod(c.Solver.Method)
	if err != nil {
		panic(fmt.Sprintf("invalid config: %s", err))
	}
	return sketch.SolveOptions{
		Method:        m,
		MaxIterations: c.Solver.MaxIterations,
		Tolerance:     c.Solver.Tolerance,
		MinStep:       c.Solver.MinStep,
	}
}

func (c LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Logger returns a logger writing to w in the configured format, at the
// configured level.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	l, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: l}
	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", c.Format)
	}
}
