package sampler

import "github.com/Dicklesworthstone/activity_monitor/internal/model"

// PairOutcome tags how two consecutive samples of one core compare.
type PairOutcome int

const (
	PairOK PairOutcome = iota
	// PairIdle means no ticks elapsed between the samples.
	PairIdle
	// PairMismatch means counters went backwards: wraparound or a core
	// that was replaced between ticks.
	PairMismatch
)

func (o PairOutcome) String() string {
	switch o {
	case PairOK:
		return "ok"
	case PairIdle:
		return "idle"
	default:
		return "mismatch"
	}
}

// Pair returns the utilization between prev and curr. The percentage is
// only meaningful when the outcome is PairOK.
func Pair(prev, curr model.CPUSample) (float64, PairOutcome) {
	pt, ct := prev.Total(), curr.Total()
	pi, ci := prev.IdleTime(), curr.IdleTime()
	if ct < pt || ci < pi {
		return 0, PairMismatch
	}
	totalDelta := ct - pt
	if totalDelta == 0 {
		return 0, PairIdle
	}
	idleDelta := ci - pi
	if idleDelta > totalDelta {
		return 0, PairMismatch
	}
	pct := 100 * (1 - float64(idleDelta)/float64(totalDelta))
	return clamp(pct, 0, 100), PairOK
}

// Delta converts two sample sets into the aggregate and per-core metrics.
// Cores are matched by number. A core missing from prev is reported as
// unavailable; the aggregate row is computed from its own counters.
func Delta(prev, curr []model.CPUSample) (aggregate model.CPUMetric, perCore []model.CPUMetric) {
	byCore := make(map[int]model.CPUSample, len(prev))
	for _, s := range prev {
		byCore[s.Core] = s
	}

	aggregate = model.CPUMetric{Core: model.AggregateCore}
	for _, c := range curr {
		m := model.CPUMetric{Core: c.Core}
		if p, ok := byCore[c.Core]; ok {
			if pct, outcome := Pair(p, c); outcome == PairOK {
				m.Percent, m.Available = pct, true
			}
		}
		if c.Core == model.AggregateCore {
			aggregate = m
			continue
		}
		perCore = append(perCore, m)
	}
	return aggregate, perCore
}

// CoreCount is the number of rows minus the aggregate row.
func CoreCount(samples []model.CPUSample) int {
	if len(samples) == 0 {
		return 0
	}
	return len(samples) - 1
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
