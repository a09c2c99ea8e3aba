package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	console "github.com/phsym/console-slog"
	"gopkg.in/yaml.v3"
)

// Format specifies the dump output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds the settings shared by all subcommands. Values come from an
// optional YAML file; flags given on the command line win.
type Config struct {
	Duration uint32  `yaml:"duration"` // retime: segment duration in ticks
	Delta    float64 `yaml:"delta"`    // rebase: shift in seconds
	Jobs     int     `yaml:"jobs"`
	OutDir   string  `yaml:"outDir"`
	LogLevel string  `yaml:"logLevel"`
	Verify   bool    `yaml:"verify"`
	Format   Format  `yaml:"format"`
}

// DefaultConfig returns the settings used when neither a file nor a flag
// sets a value.
func DefaultConfig() Config {
	return Config{
		Jobs:     4,
		LogLevel: "info",
		Format:   FormatText,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// bindFlags registers the config flags on fs, writing into cfg.
func bindFlags(fs *flag.FlagSet, cfg *Config) *string {
	configPath := fs.String("config", "", "YAML config file")
	fs.Func("duration", "segment duration in ticks (retime)", func(s string) error {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		cfg.Duration = uint32(v)
		return nil
	})
	fs.Float64Var(&cfg.Delta, "delta", cfg.Delta, "decode time shift in seconds (rebase)")
	fs.IntVar(&cfg.Jobs, "jobs", cfg.Jobs, "files processed concurrently")
	fs.StringVar(&cfg.OutDir, "o", cfg.OutDir, "output directory (default: next to the input)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "decode every output with mp4ff before writing it")
	fs.Func("format", "dump output format: text (default), json", func(s string) error {
		cfg.Format = Format(strings.ToLower(s))
		return nil
	})
	return configPath
}

// resolveConfig merges the config file named by configPath with the flags
// that were set explicitly on fs.
func resolveConfig(fs *flag.FlagSet, flags Config, configPath string) (Config, error) {
	if configPath == "" {
		return flags, nil
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "duration":
			cfg.Duration = flags.Duration
		case "delta":
			cfg.Delta = flags.Delta
		case "jobs":
			cfg.Jobs = flags.Jobs
		case "o":
			cfg.OutDir = flags.OutDir
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "verify":
			cfg.Verify = flags.Verify
		case "format":
			cfg.Format = flags.Format
		}
	})
	return cfg, nil
}

// Validate checks the settings needed by cmd.
func (c Config) Validate(cmd string) error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	if cmd == "retime" && c.Duration == 0 {
		return errors.New("retime needs a segment duration (-duration)")
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Unknown names yield info.
func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lv.Level()
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(console.NewHandler(w, &console.HandlerOptions{
		Level:      ParseLevel(level),
		TimeFormat: "15:04:05.000",
	}))
}
