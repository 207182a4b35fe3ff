package source

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// MemoryCounters are the raw meminfo values, in KB.
type MemoryCounters struct {
	Total     uint64
	Free      uint64
	Available uint64
	SwapTotal uint64
	SwapFree  uint64
	Cached    uint64
	Buffers   uint64
}

// Memory reads RAM and swap counters. Swap is optional; RAM is not.
func (h *Host) Memory(ctx context.Context) (model.Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.Memory{}, fmt.Errorf("%w: virtual memory: %v", ErrSourceUnavailable, err)
	}
	raw := MemoryCounters{
		Total:     vm.Total / 1024,
		Free:      vm.Free / 1024,
		Available: vm.Available / 1024,
		Cached:    vm.Cached / 1024,
		Buffers:   vm.Buffers / 1024,
	}

	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		h.Logger.Warn("failed to read swap counters", "err", err)
	} else {
		raw.SwapTotal = swap.Total / 1024
		raw.SwapFree = swap.Free / 1024
	}
	return BuildMemory(raw), nil
}

// BuildMemory derives usage figures from raw counters. Used is clamped to
// zero when available transiently exceeds total.
func BuildMemory(c MemoryCounters) model.Memory {
	m := model.Memory{
		TotalKB:     c.Total,
		FreeKB:      c.Free,
		AvailableKB: c.Available,
		UsedKB:      clampedSub(c.Total, c.Available),
		SwapTotalKB: c.SwapTotal,
		SwapFreeKB:  c.SwapFree,
		SwapUsedKB:  clampedSub(c.SwapTotal, c.SwapFree),
		CachedKB:    c.Cached,
		BuffersKB:   c.Buffers,
	}
	m.PercentUsed = percent(m.UsedKB, m.TotalKB)
	m.SwapPercentUsed = percent(m.SwapUsedKB, m.SwapTotalKB)

	// Rough model: more page cache means more hits. Not a hardware counter.
	if m.TotalKB > 0 {
		cachePct := percent(m.CachedKB+m.BuffersKB, m.TotalKB)
		m.CacheHitRate = 70 + cachePct*0.25
		if m.CacheHitRate > 99 {
			m.CacheHitRate = 99
		}
	} else {
		m.CacheHitRate = -1
	}
	m.LatencyNs = 60 + 40*m.PercentUsed/100
	return m
}

func clampedSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
