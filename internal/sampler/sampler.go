// Package sampler runs one refresh tick: read counters, derive CPU deltas,
// rank processes, and evaluate the alert state.
package sampler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dicklesworthstone/activity_monitor/internal/alert"
	"github.com/Dicklesworthstone/activity_monitor/internal/model"
	"github.com/Dicklesworthstone/activity_monitor/internal/proctable"
	"github.com/Dicklesworthstone/activity_monitor/internal/source"
)

// State is everything carried from one tick to the next.
type State struct {
	PrevCPU []model.CPUSample
	Alert   model.AlertState
}

// NewState returns the startup state.
func NewState(now time.Time) State {
	return State{Alert: alert.NewState(now)}
}

// Options are the per-tick inputs taken from configuration.
type Options struct {
	Interval             time.Duration
	Threshold            float64
	AlertsEnabled        bool
	NotificationsEnabled bool
	Sort                 proctable.Key
	Logger               *slog.Logger
}

// Result is the output of one tick.
type Result struct {
	Sample model.Sample
	Table  *proctable.Table
	// Notification is nil unless one is due this tick.
	Notification *model.Notification
}

// Tick runs one sampling cycle. CPU and memory errors are fatal and leave
// state untouched; disk and process errors only empty those sections.
func Tick(ctx context.Context, src source.Source, state State, opts Options, now time.Time) (Result, State, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	samples, err := src.CPUSamples(ctx)
	if err != nil {
		return Result{}, state, fmt.Errorf("read cpu counters: %w", err)
	}
	mem, err := src.Memory(ctx)
	if err != nil {
		return Result{}, state, fmt.Errorf("read memory counters: %w", err)
	}

	aggregate, perCore := Delta(state.PrevCPU, samples)
	cores := CoreCount(samples)

	disks, err := src.Disks(ctx)
	if err != nil {
		log.Warn("disk scan failed", "err", err)
		disks = nil
	}

	records, err := src.Processes(ctx)
	if err != nil {
		log.Warn("process scan failed", "err", err)
		records = nil
	}
	table := proctable.New(proctable.Build(records, mem.TotalKB, cores), opts.Sort)

	in := alert.Input{
		AggregateCPU:         aggregate.Percent,
		Threshold:            opts.Threshold,
		AlertsEnabled:        opts.AlertsEnabled,
		NotificationsEnabled: opts.NotificationsEnabled,
	}
	if top, ok := table.Top(); ok {
		in.Top = &top
	}
	alertState, note := alert.Evaluate(state.Alert, in, now)

	sample := model.Sample{
		Timestamp: now,
		Interval:  opts.Interval,
		CPU: model.CPU{
			Aggregate: aggregate,
			PerCore:   perCore,
			Cores:     cores,
		},
		Memory:    mem,
		Disks:     disks,
		Processes: table.Rows(),
		Alert:     alertState,
	}
	if l1, l5, l15, err := src.LoadAverage(ctx); err == nil {
		sample.CPU.Load1, sample.CPU.Load5, sample.CPU.Load15 = l1, l5, l15
	} else {
		log.Debug("load average unavailable", "err", err)
	}
	if up, err := src.Uptime(ctx); err == nil {
		sample.Uptime = up
	}

	log.Debug("tick",
		"cpu", aggregate.Percent,
		"cpu_available", aggregate.Available,
		"cores", cores,
		"mem_pct", mem.PercentUsed,
		"disks", len(disks),
		"procs", table.Len(),
		"alert", alert.LevelOf(alertState).String(),
	)

	next := State{PrevCPU: samples, Alert: alertState}
	return Result{Sample: sample, Table: table, Notification: note}, next, nil
}

// Sampler keeps State between calls for callers that drive ticks in a loop.
type Sampler struct {
	Source  source.Source
	Options Options
	state   State
}

func New(src source.Source, opts Options, now time.Time) *Sampler {
	return &Sampler{Source: src, Options: opts, state: NewState(now)}
}

// Next runs one tick and keeps the resulting state.
func (s *Sampler) Next(ctx context.Context, now time.Time) (Result, error) {
	res, next, err := Tick(ctx, s.Source, s.state, s.Options, now)
	if err != nil {
		return Result{}, err
	}
	s.state = next
	return res, nil
}
