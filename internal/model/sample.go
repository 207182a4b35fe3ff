package model

import "time"

// CPUSample is one row of kernel CPU time counters, in clock ticks.
// Core is the logical CPU number, or AggregateCore for the combined row.
type CPUSample struct {
	Core    int
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	Iowait  uint64
	Irq     uint64
	Softirq uint64
	Steal   uint64
}

// Total is the sum of every counter.
func (c CPUSample) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.Irq + c.Softirq + c.Steal
}

// IdleTime is idle plus iowait.
func (c CPUSample) IdleTime() uint64 { return c.Idle + c.Iowait }

// AggregateCore marks the "all cores" CPUMetric.
const AggregateCore = -1

// CPUMetric is the utilization of one core (or the aggregate) over one tick.
// Percent is 0 when Available is false.
type CPUMetric struct {
	Core      int     `json:"core"`
	Percent   float64 `json:"percent"`
	Available bool    `json:"available"`
}

// CPU aggregates instantaneous CPU usage.
type CPU struct {
	Aggregate CPUMetric   `json:"aggregate"`
	PerCore   []CPUMetric `json:"per_core"`
	Cores     int         `json:"cores"`
	Load1     float64     `json:"load1"`
	Load5     float64     `json:"load5"`
	Load15    float64     `json:"load15"`
}

// Memory captures RAM and swap usage in KB.
type Memory struct {
	TotalKB         uint64  `json:"total_kb"`
	FreeKB          uint64  `json:"free_kb"`
	AvailableKB     uint64  `json:"available_kb"`
	UsedKB          uint64  `json:"used_kb"`
	PercentUsed     float64 `json:"percent_used"`
	SwapTotalKB     uint64  `json:"swap_total_kb"`
	SwapFreeKB      uint64  `json:"swap_free_kb"`
	SwapUsedKB      uint64  `json:"swap_used_kb"`
	SwapPercentUsed float64 `json:"swap_percent_used"`
	CachedKB        uint64  `json:"cached_kb"`
	BuffersKB       uint64  `json:"buffers_kb"`

	// Estimates, not hardware counters. CacheHitRate is -1 when unknown.
	CacheHitRate float64 `json:"cache_hit_rate"`
	LatencyNs    float64 `json:"latency_ns"`
}

// Disk is one mounted physical filesystem. ReadLatencyMs is -1 until measured.
type Disk struct {
	Device         string  `json:"device"`
	MountPoint     string  `json:"mount_point"`
	FSType         string  `json:"fstype"`
	TotalKB        uint64  `json:"total_kb"`
	FreeKB         uint64  `json:"free_kb"`
	UsedKB         uint64  `json:"used_kb"`
	PercentUsed    float64 `json:"percent_used"`
	ReadLatencyMs  float64 `json:"read_latency_ms"`
	IOOpsSinceBoot uint64  `json:"io_ops_since_boot"`
}

// ProcessRecord is the raw per-process reading before any percentages.
type ProcessRecord struct {
	PID        int
	Name       string
	ResidentKB uint64
	CPUTicks   uint64
}

// Process is a ranked process table entry.
type Process struct {
	PID        int     `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// AlertState is the warning/pre-warning hysteresis carried between ticks.
type AlertState struct {
	WarningActive    bool      `json:"warning"`
	PreWarningActive bool      `json:"pre_warning"`
	LastNotification time.Time `json:"last_notification"`
}

// Notification is the payload handed to the desktop transport.
type Notification struct {
	Title  string
	Body   string
	Urgent bool
}

// Sample is the full snapshot exchanged between sampler, UI, and JSON exporter.
type Sample struct {
	Timestamp time.Time     `json:"timestamp"`
	Interval  time.Duration `json:"interval"`
	CPU       CPU           `json:"cpu"`
	Memory    Memory        `json:"memory"`
	Disks     []Disk        `json:"disks"`
	Processes []Process     `json:"processes"`
	Alert     AlertState    `json:"alert"`
	Uptime    time.Duration `json:"uptime"`
}
