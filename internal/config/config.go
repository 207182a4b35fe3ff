package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/activity_monitor/internal/logging"
	"github.com/Dicklesworthstone/activity_monitor/internal/proctable"
)

const (
	MinRefreshRate   = 100 * time.Millisecond
	DefaultThreshold = 80.0
)

// Config carries runtime options for actmon.
type Config struct {
	RefreshRate   time.Duration  `yaml:"refresh_rate"`
	Threshold     float64        `yaml:"threshold"`
	ShowAlert     bool           `yaml:"show_alert"`
	Notifications bool           `yaml:"notifications"`
	Sort          string         `yaml:"sort"`
	Debug         bool           `yaml:"debug"`
	DebugOnly     bool           `yaml:"debug_only"`
	DebugCycles   int            `yaml:"debug_cycles"`
	JSON          bool           `yaml:"json"`
	Log           logging.Config `yaml:"log"`

	// ConfigPath is the YAML file the settings were read from, if any.
	ConfigPath string `yaml:"-"`
	// WriteConfig asks main to save the effective settings and exit.
	WriteConfig string `yaml:"-"`
}

// UnmarshalYAML accepts refresh_rate either as a duration string ("500ms")
// or as a plain integer number of milliseconds, like -refresh-rate.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], value.Content[i+1]
			if k.Value == "refresh_rate" && v.Kind == yaml.ScalarNode && v.ShortTag() == "!!int" {
				v.Value += "ms"
				v.Tag = "!!str"
			}
		}
	}
	return value.Decode((*plain)(c))
}

func Default() Config {
	return Config{
		RefreshRate:   time.Second,
		Threshold:     DefaultThreshold,
		ShowAlert:     true,
		Notifications: true,
		Sort:          "cpu",
		DebugCycles:   10,
		Log:           logging.DefaultConfig(),
	}
}

// SortKey returns the process sort key. Sanitize guarantees it parses.
func (c Config) SortKey() proctable.Key {
	k, _ := proctable.ParseKey(c.Sort)
	return k
}

// DefaultPath is $XDG_CONFIG_HOME/actmon/config.yaml or ~/.config/actmon/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "actmon", "config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "actmon", "config.yaml")
	}
	return "config.yaml"
}

// LoadFile overlays the YAML file at path onto cfg. A missing file returns
// cfg unchanged with an error wrapping os.ErrNotExist.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	out := cfg
	if err := yaml.Unmarshal(data, &out); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	out.ConfigPath = path
	return out, nil
}

// Save writes cfg as YAML.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Sanitize clamps out-of-range values and returns a warning per change.
func (c *Config) Sanitize() []string {
	var warnings []string
	if c.RefreshRate < MinRefreshRate {
		warnings = append(warnings, fmt.Sprintf("refresh rate %v too low, using %v minimum", c.RefreshRate, MinRefreshRate))
		c.RefreshRate = MinRefreshRate
	}
	if math.IsNaN(c.Threshold) {
		warnings = append(warnings, fmt.Sprintf("threshold is not a number, using %.1f", DefaultThreshold))
		c.Threshold = DefaultThreshold
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		clamped := clamp(c.Threshold, 0, 100)
		warnings = append(warnings, fmt.Sprintf("threshold %.1f outside 0-100, using %.1f", c.Threshold, clamped))
		c.Threshold = clamped
	}
	if _, err := proctable.ParseKey(c.Sort); err != nil {
		warnings = append(warnings, err.Error()+", using cpu")
		c.Sort = "cpu"
	}
	if c.DebugCycles < 1 {
		c.DebugCycles = 10
	}
	return warnings
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FromFlags builds the configuration. Later sources win: defaults, the
// YAML file, ACTMON_* environment variables, then command-line flags.
func FromFlags(args []string, stderr io.Writer) (Config, []string, error) {
	cfg := Default()
	fs := flag.NewFlagSet("actmon", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		refreshMS                           int
		threshold                           float64
		noAlert, noNotify, debug, debugOnly bool
	)
	fs.IntVar(&refreshMS, "refresh-rate", int(cfg.RefreshRate/time.Millisecond), "refresh interval in milliseconds (min 100)")
	fs.IntVar(&refreshMS, "r", int(cfg.RefreshRate/time.Millisecond), "shorthand for -refresh-rate")
	fs.Float64Var(&threshold, "threshold", cfg.Threshold, "CPU alert threshold in percent")
	fs.Float64Var(&threshold, "t", cfg.Threshold, "shorthand for -threshold")
	fs.BoolVar(&noAlert, "no-alert", false, "disable CPU threshold alerts")
	fs.BoolVar(&noAlert, "a", false, "shorthand for -no-alert")
	fs.BoolVar(&noNotify, "no-notify", false, "disable desktop notifications")
	fs.BoolVar(&noNotify, "n", false, "shorthand for -no-notify")
	fs.BoolVar(&debug, "debug", false, "write debug log to activity_monitor_debug.log")
	fs.BoolVar(&debug, "d", false, "shorthand for -debug")
	fs.BoolVar(&debugOnly, "debug-only", false, "run without the UI, logging a fixed number of cycles")
	fs.BoolVar(&debugOnly, "o", false, "shorthand for -debug-only")
	sortKey := fs.String("sort", cfg.Sort, "process sort column: cpu|mem")
	jsonOut := fs.Bool("json", false, "print one snapshot as JSON and exit")
	logFile := fs.String("log-file", "", "log file path")
	path := fs.String("config", "", "YAML config file (default "+DefaultPath()+")")
	writeConfig := fs.String("write-config", "", "save the effective settings as YAML to this path and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: actmon [OPTIONS]\nTerminal-based activity monitor for system resources.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cfg, nil, err
	}

	var warnings []string

	filePath, explicit := *path, *path != ""
	if !explicit {
		filePath, explicit = os.Getenv("ACTMON_CONFIG"), os.Getenv("ACTMON_CONFIG") != ""
	}
	if !explicit {
		filePath = DefaultPath()
	}
	loaded, err := LoadFile(cfg, filePath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, nil, err
	}

	warnings = append(warnings, applyEnv(&cfg)...)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "refresh-rate", "r":
			cfg.RefreshRate = time.Duration(refreshMS) * time.Millisecond
		case "threshold", "t":
			cfg.Threshold = threshold
		case "no-alert", "a":
			cfg.ShowAlert = !noAlert
		case "no-notify", "n":
			cfg.Notifications = !noNotify
		case "sort":
			cfg.Sort = *sortKey
		case "debug", "d":
			cfg.Debug = debug
		case "debug-only", "o":
			cfg.DebugOnly = debugOnly
			if debugOnly {
				cfg.Debug = true
			}
		case "json":
			cfg.JSON = *jsonOut
		case "log-file":
			cfg.Log.Output = *logFile
		case "write-config":
			cfg.WriteConfig = *writeConfig
		}
	})

	if cfg.Debug {
		cfg.Log.Level = "debug"
		if cfg.Log.Output == "" || cfg.Log.Output == "discard" {
			cfg.Log.Output = "activity_monitor_debug.log"
		}
	}

	warnings = append(warnings, cfg.Sanitize()...)
	return cfg, warnings, nil
}

func applyEnv(cfg *Config) []string {
	var warnings []string
	if v := os.Getenv("ACTMON_REFRESH_RATE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.RefreshRate = parsed
		} else if ms, err2 := strconv.Atoi(v); err2 == nil {
			cfg.RefreshRate = time.Duration(ms) * time.Millisecond
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring ACTMON_REFRESH_RATE=%q", v))
		}
	}
	if v := os.Getenv("ACTMON_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Threshold = parsed
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring ACTMON_THRESHOLD=%q", v))
		}
	}
	if v := os.Getenv("ACTMON_ALERT"); v == "0" {
		cfg.ShowAlert = false
	}
	if v := os.Getenv("ACTMON_NOTIFY"); v == "0" {
		cfg.Notifications = false
	}
	if v := os.Getenv("ACTMON_LOG_FILE"); v != "" {
		cfg.Log.Output = v
	}
	return warnings
}
