// Package proctable turns raw process records into ranked table rows.
package proctable

import (
	"fmt"
	"sort"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// Key selects the sort order of the table.
type Key int

const (
	KeyCPU Key = iota
	KeyMemory
)

func (k Key) String() string {
	switch k {
	case KeyCPU:
		return "cpu"
	case KeyMemory:
		return "mem"
	default:
		return "unknown"
	}
}

// ParseKey accepts "cpu" or "mem".
func ParseKey(s string) (Key, error) {
	switch s {
	case "cpu":
		return KeyCPU, nil
	case "mem", "memory":
		return KeyMemory, nil
	default:
		return KeyCPU, fmt.Errorf("unknown sort key %q (want cpu or mem)", s)
	}
}

// cpuScale is the fixed divisor applied to since-start ticks per core.
// The result grows over a process lifetime: it ranks processes, it is
// not a rate.
const cpuScale = 0.1 / 100

// Build derives percentages for every record, keeping enumeration order.
func Build(records []model.ProcessRecord, totalMemKB uint64, cores int) []model.Process {
	if cores < 1 {
		cores = 1
	}
	out := make([]model.Process, 0, len(records))
	for _, r := range records {
		p := model.Process{
			PID:        r.PID,
			Name:       r.Name,
			CPUPercent: cpuScale * float64(r.CPUTicks) / float64(cores),
		}
		if totalMemKB > 0 {
			p.MemPercent = 100 * float64(r.ResidentKB) / float64(totalMemKB)
		}
		out = append(out, p)
	}
	return out
}

// SortBy returns a copy of procs ordered by key, descending. Ties keep
// their input order.
func SortBy(procs []model.Process, key Key) []model.Process {
	sorted := append([]model.Process(nil), procs...)
	switch key {
	case KeyMemory:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MemPercent > sorted[j].MemPercent })
	default:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CPUPercent > sorted[j].CPUPercent })
	}
	return sorted
}

// Table holds one tick's processes in enumeration order and the active key.
// Every sort starts from the enumeration order, so switching keys back and
// forth always lands on the same ordering.
type Table struct {
	base []model.Process
	key  Key
	rows []model.Process
}

func New(procs []model.Process, key Key) *Table {
	t := &Table{base: procs}
	t.SetKey(key)
	return t
}

// SetKey re-sorts the rows.
func (t *Table) SetKey(key Key) {
	t.key = key
	t.rows = SortBy(t.base, key)
}

func (t *Table) Key() Key { return t.key }

// Rows is the current ordering. Callers must not modify it.
func (t *Table) Rows() []model.Process { return t.rows }

func (t *Table) Len() int { return len(t.base) }

// Top returns the process with the highest CPU percent, regardless of the
// active key.
func (t *Table) Top() (model.Process, bool) {
	if len(t.base) == 0 {
		return model.Process{}, false
	}
	if t.key == KeyCPU {
		return t.rows[0], true
	}
	return SortBy(t.base, KeyCPU)[0], true
}
