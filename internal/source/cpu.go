package source

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// cpuTimes is replaced in tests.
var cpuTimes = cpu.TimesWithContext

// gopsutil reports seconds; the kernel counts in USER_HZ ticks.
const ticksPerSecond = 100

// CPUSamples returns the aggregate row first, followed by one row per online
// logical CPU.
func (h *Host) CPUSamples(ctx context.Context) ([]model.CPUSample, error) {
	total, err := cpuTimes(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu times: %v", ErrSourceUnavailable, err)
	}
	perCore, err := cpuTimes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: per-cpu times: %v", ErrSourceUnavailable, err)
	}

	samples, skipped, err := Samples(total, perCore)
	for _, rec := range skipped {
		h.Logger.Debug("skipping cpu record", "err", rec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return samples, nil
}

// Samples converts gopsutil time stats into tick counters. Rows with an
// unknown label or an invalid counter are returned in skipped as
// ErrMalformedRecord errors. It fails only when there is no aggregate row.
func Samples(total, perCore []cpu.TimesStat) (samples []model.CPUSample, skipped []error, err error) {
	if len(total) == 0 {
		return nil, nil, fmt.Errorf("no aggregate cpu row")
	}
	agg, aerr := toSample(total[0])
	if aerr != nil || agg.Core != model.AggregateCore {
		return nil, nil, fmt.Errorf("no aggregate cpu row: %v", aerr)
	}
	samples = append(samples, agg)

	for _, ts := range perCore {
		s, serr := toSample(ts)
		if serr == nil && s.Core == model.AggregateCore {
			serr = fmt.Errorf("%w: aggregate label %q in per-cpu list", ErrMalformedRecord, ts.CPU)
		}
		if serr != nil {
			skipped = append(skipped, serr)
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped, nil
}

func toSample(ts cpu.TimesStat) (model.CPUSample, error) {
	var s model.CPUSample
	switch label := ts.CPU; label {
	case "cpu-total", "cpu":
		s.Core = model.AggregateCore
	default:
		id, err := strconv.Atoi(strings.TrimPrefix(label, "cpu"))
		if err != nil || id < 0 || !strings.HasPrefix(label, "cpu") {
			return model.CPUSample{}, fmt.Errorf("%w: bad cpu label %q", ErrMalformedRecord, label)
		}
		s.Core = id
	}

	fields := []struct {
		dst *uint64
		sec float64
	}{
		{&s.User, ts.User}, {&s.Nice, ts.Nice}, {&s.System, ts.System}, {&s.Idle, ts.Idle},
		{&s.Iowait, ts.Iowait}, {&s.Irq, ts.Irq}, {&s.Softirq, ts.Softirq}, {&s.Steal, ts.Steal},
	}
	for i, f := range fields {
		if f.sec < 0 || math.IsNaN(f.sec) || math.IsInf(f.sec, 0) {
			return model.CPUSample{}, fmt.Errorf("%w: %s field %d = %v", ErrMalformedRecord, ts.CPU, i+1, f.sec)
		}
		*f.dst = uint64(math.Round(f.sec * ticksPerSecond))
	}
	return s, nil
}
