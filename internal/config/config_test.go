package config

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/activity_monitor/internal/proctable"
)

// isolate points config lookups at an empty directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{"ACTMON_CONFIG", "ACTMON_REFRESH_RATE", "ACTMON_THRESHOLD", "ACTMON_ALERT", "ACTMON_NOTIFY", "ACTMON_LOG_FILE"} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.RefreshRate != time.Second {
		t.Errorf("RefreshRate = %v, want 1s", cfg.RefreshRate)
	}
	if cfg.Threshold != 80 {
		t.Errorf("Threshold = %.1f, want 80", cfg.Threshold)
	}
	if !cfg.ShowAlert || !cfg.Notifications {
		t.Error("alerts and notifications should default to on")
	}
	if cfg.SortKey() != proctable.KeyCPU {
		t.Errorf("SortKey() = %v, want cpu", cfg.SortKey())
	}
}

func TestFromFlagsDefaults(t *testing.T) {
	isolate(t)
	cfg, warnings, err := FromFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want none", cfg.ConfigPath)
	}
	if cfg.Threshold != 80 || cfg.RefreshRate != time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromFlagsClamps(t *testing.T) {
	isolate(t)
	cfg, warnings, err := FromFlags([]string{"-refresh-rate", "20", "-threshold", "150", "-sort", "io"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.RefreshRate != MinRefreshRate {
		t.Errorf("RefreshRate = %v, want %v", cfg.RefreshRate, MinRefreshRate)
	}
	if cfg.Threshold != 100 {
		t.Errorf("Threshold = %.1f, want 100", cfg.Threshold)
	}
	if cfg.Sort != "cpu" {
		t.Errorf("Sort = %q, want cpu", cfg.Sort)
	}
	if len(warnings) != 3 {
		t.Errorf("warnings = %v, want 3", warnings)
	}

	cfg, _, _ = FromFlags([]string{"-threshold", "-5"}, io.Discard)
	if cfg.Threshold != 0 {
		t.Errorf("Threshold = %.1f, want 0", cfg.Threshold)
	}
}

func TestFromFlagsSwitches(t *testing.T) {
	isolate(t)
	cfg, _, err := FromFlags([]string{"-no-alert", "-no-notify", "-debug-only", "-sort", "mem"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.ShowAlert || cfg.Notifications {
		t.Error("-no-alert / -no-notify not applied")
	}
	if !cfg.DebugOnly || !cfg.Debug {
		t.Error("-debug-only should imply debug")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Output != "activity_monitor_debug.log" {
		t.Errorf("Log = %+v, want debug file", cfg.Log)
	}
	if cfg.SortKey() != proctable.KeyMemory {
		t.Errorf("SortKey() = %v, want mem", cfg.SortKey())
	}
}

func TestFromFlagsHelp(t *testing.T) {
	isolate(t)
	_, _, err := FromFlags([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("FromFlags(-h) error = %v, want flag.ErrHelp", err)
	}
}

func TestPrecedence(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "actmon", "config.yaml"), `
refresh_rate: 500ms
threshold: 60
sort: mem
notifications: false
`)
	t.Setenv("ACTMON_THRESHOLD", "70")

	cfg, _, err := FromFlags([]string{"-sort", "cpu"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.ConfigPath == "" {
		t.Error("default config file was not loaded")
	}
	if cfg.RefreshRate != 500*time.Millisecond {
		t.Errorf("RefreshRate = %v, want 500ms from file", cfg.RefreshRate)
	}
	if cfg.Notifications {
		t.Error("Notifications should be off from file")
	}
	if cfg.Threshold != 70 {
		t.Errorf("Threshold = %.1f, want 70 from env", cfg.Threshold)
	}
	if cfg.Sort != "cpu" {
		t.Errorf("Sort = %q, want cpu from flag", cfg.Sort)
	}
	if !cfg.ShowAlert {
		t.Error("ShowAlert absent from file should keep its default")
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	dir := isolate(t)
	_, _, err := FromFlags([]string{"-config", filepath.Join(dir, "missing.yaml")}, io.Discard)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FromFlags() error = %v, want not-exist", err)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "threshold: [not a number\n")
	cfg, err := LoadFile(Default(), path)
	if err == nil {
		t.Fatal("LoadFile() should fail on invalid YAML")
	}
	if cfg.Threshold != 80 {
		t.Errorf("LoadFile() returned a modified config on error: %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.Threshold = 65
	want.Sort = "mem"
	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := LoadFile(Config{}, path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got.Threshold != 65 || got.Sort != "mem" || got.RefreshRate != time.Second {
		t.Errorf("LoadFile() = %+v", got)
	}
}

func TestSanitizeEnvRefreshRate(t *testing.T) {
	isolate(t)
	t.Setenv("ACTMON_REFRESH_RATE", "250")
	cfg, _, err := FromFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.RefreshRate != 250*time.Millisecond {
		t.Errorf("RefreshRate = %v, want 250ms", cfg.RefreshRate)
	}

	t.Setenv("ACTMON_REFRESH_RATE", "soon")
	_, warnings, _ := FromFlags(nil, io.Discard)
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one for the bad value", warnings)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "threshold: 50\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 16)
	onChange := func(c Config) {
		select {
		case changes <- c:
		default:
		}
	}
	err := Watch(ctx, path, Default(), onChange, func(error) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	writeFile(t, path, "threshold: 90\n")
	// A rewrite can surface as several events; wait for the final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Threshold == 90 {
				return
			}
		case <-deadline:
			t.Fatal("no reload with threshold 90 after the file changed")
		}
	}
}

func TestNonFiniteThreshold(t *testing.T) {
	isolate(t)
	cfg, warnings, err := FromFlags([]string{"-threshold", "NaN"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.Threshold != DefaultThreshold || len(warnings) != 1 {
		t.Errorf("Threshold = %v warnings = %v, want %v with one warning", cfg.Threshold, warnings, DefaultThreshold)
	}

	cfg, _, _ = FromFlags([]string{"-threshold", "+Inf"}, io.Discard)
	if cfg.Threshold != 100 {
		t.Errorf("Threshold = %v, want 100 for +Inf", cfg.Threshold)
	}

	t.Setenv("ACTMON_THRESHOLD", "NaN")
	cfg, _, _ = FromFlags(nil, io.Discard)
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %v from env NaN, want %v", cfg.Threshold, DefaultThreshold)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "threshold: .nan\n")
	t.Setenv("ACTMON_THRESHOLD", "")
	cfg, _, err = FromFlags([]string{"-config", path}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %v from YAML .nan, want %v", cfg.Threshold, DefaultThreshold)
	}
}

func TestLoadFileRefreshRateForms(t *testing.T) {
	tests := []struct {
		yaml string
		want time.Duration
	}{
		{"refresh_rate: 500\n", 500 * time.Millisecond},
		{"refresh_rate: 2s\n", 2 * time.Second},
		{"refresh_rate: \"750ms\"\n", 750 * time.Millisecond},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, tt.yaml)
		got, err := LoadFile(Default(), path)
		if err != nil {
			t.Errorf("LoadFile(%q) error = %v", tt.yaml, err)
			continue
		}
		if got.RefreshRate != tt.want {
			t.Errorf("LoadFile(%q).RefreshRate = %v, want %v", tt.yaml, got.RefreshRate, tt.want)
		}
		if got.Threshold != DefaultThreshold {
			t.Errorf("LoadFile(%q) lost defaults: %+v", tt.yaml, got)
		}
	}
}

func TestShortFlags(t *testing.T) {
	isolate(t)
	cfg, _, err := FromFlags([]string{"-r", "250", "-t", "60", "-a", "-n", "-o"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.RefreshRate != 250*time.Millisecond || cfg.Threshold != 60 {
		t.Errorf("RefreshRate = %v Threshold = %v, want 250ms and 60", cfg.RefreshRate, cfg.Threshold)
	}
	if cfg.ShowAlert || cfg.Notifications {
		t.Error("-a / -n not applied")
	}
	if !cfg.DebugOnly || !cfg.Debug {
		t.Error("-o should enable debug-only and debug")
	}

	cfg, _, _ = FromFlags([]string{"-d"}, io.Discard)
	if !cfg.Debug || cfg.DebugOnly {
		t.Errorf("-d: Debug = %v DebugOnly = %v", cfg.Debug, cfg.DebugOnly)
	}
}

func TestWriteConfigFlag(t *testing.T) {
	isolate(t)
	cfg, _, err := FromFlags([]string{"-write-config", "out.yaml"}, io.Discard)
	if err != nil {
		t.Fatalf("FromFlags() error = %v", err)
	}
	if cfg.WriteConfig != "out.yaml" {
		t.Errorf("WriteConfig = %q", cfg.WriteConfig)
	}
}
