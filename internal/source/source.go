// Package source reads raw kernel counters for CPU, memory, disks, and
// processes. It keeps no history between calls.
package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

var (
	// ErrSourceUnavailable means a required counter could not be read at all.
	ErrSourceUnavailable = errors.New("counter source unavailable")
	// ErrEntryVanished means a disk or process disappeared mid-scan.
	ErrEntryVanished = errors.New("entry vanished")
	// ErrMalformedRecord means a counter line did not parse.
	ErrMalformedRecord = errors.New("malformed record")
)

// Source is the set of counter readers the sampler needs each tick.
type Source interface {
	CPUSamples(ctx context.Context) ([]model.CPUSample, error)
	Memory(ctx context.Context) (model.Memory, error)
	Disks(ctx context.Context) ([]model.Disk, error)
	Processes(ctx context.Context) ([]model.ProcessRecord, error)
	LoadAverage(ctx context.Context) (load1, load5, load15 float64, err error)
	Uptime(ctx context.Context) (time.Duration, error)
}

// Host reads counters from the running kernel.
type Host struct {
	Filter MountFilter
	Logger *slog.Logger
}

func New(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		Filter: DefaultMountFilter(),
		Logger: logger,
	}
}

var _ Source = (*Host)(nil)
