package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Dicklesworthstone/activity_monitor/internal/config"
	"github.com/Dicklesworthstone/activity_monitor/internal/logging"
	"github.com/Dicklesworthstone/activity_monitor/internal/model"
	"github.com/Dicklesworthstone/activity_monitor/internal/notify"
	"github.com/Dicklesworthstone/activity_monitor/internal/sampler"
	"github.com/Dicklesworthstone/activity_monitor/internal/source"
	"github.com/Dicklesworthstone/activity_monitor/internal/ui"
)

// isTerminal reports whether stdout is interactive.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run is main without the process exit. A nil src means the live host.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, src source.Source) int {
	cfg, warnings, err := config.FromFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.WriteConfig != "" {
		if err := cfg.Save(cfg.WriteConfig); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", cfg.WriteConfig)
		return 0
	}

	headlessRun := !cfg.JSON && (cfg.DebugOnly || !isTerminal())
	if headlessRun && (cfg.Log.Output == "" || cfg.Log.Output == "discard") {
		cfg.Log.Output = "stderr"
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()
	for _, w := range warnings {
		logger.Warn("config adjusted", "detail", w)
	}
	logger.Info("starting",
		"refresh", cfg.RefreshRate, "threshold", cfg.Threshold,
		"alerts", cfg.ShowAlert, "notify", cfg.Notifications, "config", cfg.ConfigPath)

	if src == nil {
		src = source.New(logger)
	}
	// Emission is gated per tick by Options.NotificationsEnabled, which a
	// config reload can switch on.
	notifier := notify.NewDesktop()

	switch {
	case cfg.JSON:
		err = snapshotJSON(ctx, cfg, src, logger, stdout)
	case headlessRun:
		err = headless(ctx, cfg, src, notifier, logger)
	default:
		err = ui.RunTUI(ctx, cfg, ui.Deps{Source: src, Notifier: notifier, Logger: logger})
	}
	if err != nil {
		logger.Error("exiting", "err", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func options(cfg config.Config, logger *slog.Logger) sampler.Options {
	return sampler.Options{
		Interval:             cfg.RefreshRate,
		Threshold:            cfg.Threshold,
		AlertsEnabled:        cfg.ShowAlert,
		NotificationsEnabled: cfg.Notifications,
		Sort:                 cfg.SortKey(),
		Logger:               logger,
	}
}

// headless runs DebugCycles ticks without a UI and logs each one.
func headless(ctx context.Context, cfg config.Config, src source.Source, notifier notify.Notifier, logger *slog.Logger) error {
	s := sampler.New(src, options(cfg, logger), time.Now())
	ticker := time.NewTicker(cfg.RefreshRate)
	defer ticker.Stop()

	for cycle := 1; cycle <= cfg.DebugCycles; cycle++ {
		res, err := s.Next(ctx, time.Now())
		if err != nil {
			return err
		}
		logSummary(logger, cycle, res.Sample)
		if n := res.Notification; n != nil {
			logger.Info("notification", "title", n.Title, "urgent", n.Urgent)
			if err := notifier.Send(ctx, *n); err != nil {
				logger.Debug("notification not delivered", "err", err)
			}
		}
		if cycle == cfg.DebugCycles {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func logSummary(logger *slog.Logger, cycle int, s model.Sample) {
	logger.Info("cycle",
		"n", cycle,
		"cpu", s.CPU.Aggregate.Percent,
		"cpu_available", s.CPU.Aggregate.Available,
		"mem_pct", s.Memory.PercentUsed,
		"swap_pct", s.Memory.SwapPercentUsed,
		"disks", len(s.Disks),
		"procs", len(s.Processes),
	)
	for i, p := range s.Processes {
		if i == 5 {
			break
		}
		logger.Info("top process", "rank", i+1, "pid", p.PID, "name", p.Name, "cpu", p.CPUPercent, "mem", p.MemPercent)
	}
}

// snapshotJSON samples twice, one refresh apart, so CPU figures are real.
func snapshotJSON(ctx context.Context, cfg config.Config, src source.Source, logger *slog.Logger, w io.Writer) error {
	opts := options(cfg, logger)
	opts.NotificationsEnabled = false
	s := sampler.New(src, opts, time.Now())
	if _, err := s.Next(ctx, time.Now()); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.RefreshRate):
	}
	res, err := s.Next(ctx, time.Now())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Sample)
}
