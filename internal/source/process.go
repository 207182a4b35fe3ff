package source

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// userHZ converts gopsutil's CPU seconds back into kernel clock ticks.
const userHZ = 100

// Processes lists every PID under /proc. A process that exits between
// discovery and the detail reads is dropped silently.
func (h *Host) Processes(ctx context.Context) ([]model.ProcessRecord, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: pids: %v", ErrSourceUnavailable, err)
	}

	records := make([]model.ProcessRecord, 0, len(pids))
	for _, pid := range pids {
		rec, err := readProcess(ctx, pid)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func readProcess(ctx context.Context, pid int32) (model.ProcessRecord, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return model.ProcessRecord{}, fmt.Errorf("%w: pid %d: %v", ErrEntryVanished, pid, err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return model.ProcessRecord{}, fmt.Errorf("%w: pid %d name: %v", ErrEntryVanished, pid, err)
	}
	if name == "" {
		name = "unknown"
	}

	rec := model.ProcessRecord{PID: int(pid), Name: name}
	// Kernel threads have no resident set; keep them with zero memory.
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		rec.ResidentKB = mi.RSS / 1024
	}
	times, err := p.TimesWithContext(ctx)
	if err != nil {
		return model.ProcessRecord{}, fmt.Errorf("%w: pid %d stat: %v", ErrEntryVanished, pid, err)
	}
	rec.CPUTicks = uint64(math.Round((times.User + times.System) * userHZ))
	return rec, nil
}
