package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/activity_monitor/internal/config"
	"github.com/Dicklesworthstone/activity_monitor/internal/model"
	"github.com/Dicklesworthstone/activity_monitor/internal/proctable"
	"github.com/Dicklesworthstone/activity_monitor/internal/source"
)

type stubSource struct {
	cpu    [][]model.CPUSample
	calls  int
	cpuErr error
}

func (s *stubSource) CPUSamples(context.Context) ([]model.CPUSample, error) {
	if s.cpuErr != nil {
		return nil, s.cpuErr
	}
	i := s.calls
	if i >= len(s.cpu) {
		i = len(s.cpu) - 1
	}
	s.calls++
	return s.cpu[i], nil
}

func (s *stubSource) Memory(context.Context) (model.Memory, error) {
	return source.BuildMemory(source.MemoryCounters{Total: 1000, Available: 400}), nil
}

func (s *stubSource) Disks(context.Context) ([]model.Disk, error) {
	return []model.Disk{{Device: "/dev/sda1", MountPoint: "/", TotalKB: 100, FreeKB: 40, UsedKB: 60, PercentUsed: 60, ReadLatencyMs: -1}}, nil
}

func (s *stubSource) Processes(context.Context) ([]model.ProcessRecord, error) {
	return []model.ProcessRecord{
		{PID: 1, Name: "init", ResidentKB: 10, CPUTicks: 100},
		{PID: 99, Name: "spin", ResidentKB: 100, CPUTicks: 90000},
		{PID: 7, Name: "cache", ResidentKB: 500, CPUTicks: 200},
	}, nil
}

func (s *stubSource) LoadAverage(context.Context) (float64, float64, float64, error) {
	return 0.5, 0.4, 0.3, nil
}

func (s *stubSource) Uptime(context.Context) (time.Duration, error) { return 90 * time.Minute, nil }

func busy() *stubSource {
	return &stubSource{cpu: [][]model.CPUSample{
		{{Core: model.AggregateCore, User: 1000, Idle: 4000}, {Core: 0, User: 1000, Idle: 4000}},
		{{Core: model.AggregateCore, User: 2000, Idle: 4000}, {Core: 0, User: 2000, Idle: 4000}},
	}}
}

func newTestModel(t *testing.T, src source.Source, terminate func(int) bool) *Model {
	t.Helper()
	cfg := config.Default()
	cfg.RefreshRate = config.MinRefreshRate
	m := New(cfg, Deps{
		Source:    src,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Terminate: terminate,
		Alive:     func(int) bool { return false },
	})
	t.Cleanup(m.ctxCancel)
	return m
}

// step runs one sampling cycle through Update.
func step(t *testing.T, m *Model) tea.Cmd {
	t.Helper()
	msg := m.sampleCmd()()
	_, cmd := m.Update(msg)
	return cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSamplingUpdatesModel(t *testing.T) {
	m := newTestModel(t, busy(), nil)

	step(t, m)
	if m.latest.CPU.Aggregate.Available {
		t.Fatalf("first tick should have no CPU delta")
	}
	if !strings.Contains(m.View(), "n/a") {
		t.Fatalf("view should mark unavailable CPU")
	}

	if cmd := step(t, m); cmd == nil {
		t.Fatalf("expected follow-up commands after a sample")
	}
	if m.inFlight {
		t.Fatalf("inFlight should clear once the result is applied")
	}
	if got := m.latest.CPU.Aggregate.Percent; got != 100 {
		t.Fatalf("aggregate = %.1f, want 100", got)
	}
	if !m.latest.Alert.WarningActive {
		t.Fatalf("warning should be active at 100%% CPU")
	}
	view := m.View()
	for _, want := range []string{"WARNING", "Processes (3)", "spin", "N/A"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFatalSamplingErrorQuits(t *testing.T) {
	m := newTestModel(t, &stubSource{cpuErr: source.ErrSourceUnavailable}, nil)
	cmd := step(t, m)
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !errors.Is(m.Err(), source.ErrSourceUnavailable) {
		t.Fatalf("Err() = %v", m.Err())
	}
}

func TestStaleTickIgnored(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	m.seq = 5
	if _, cmd := m.Update(tickMsg{seq: 4}); cmd != nil {
		t.Fatalf("stale tick should not sample")
	}
	if _, cmd := m.Update(tickMsg{seq: 5}); cmd == nil {
		t.Fatalf("current tick should sample")
	}
	if _, cmd := m.Update(tickMsg{seq: 5}); cmd != nil {
		t.Fatalf("tick while a sample is in flight should be dropped")
	}
}

func TestSortKeys(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	step(t, m)

	m.Update(key("m"))
	if m.sortKey != proctable.KeyMemory || m.table.Rows()[0].PID != 7 {
		t.Fatalf("memory sort: key=%v first=%d", m.sortKey, m.table.Rows()[0].PID)
	}
	m.Update(key("c"))
	if m.sortKey != proctable.KeyCPU || m.table.Rows()[0].PID != 99 {
		t.Fatalf("cpu sort: key=%v first=%d", m.sortKey, m.table.Rows()[0].PID)
	}

	// A key change made while a tick runs survives the result.
	m.Update(key("m"))
	step(t, m)
	if m.table.Key() != proctable.KeyMemory {
		t.Fatalf("table key = %v after tick", m.table.Key())
	}
}

func TestKillConfirmation(t *testing.T) {
	var killed []int
	m := newTestModel(t, busy(), func(pid int) bool {
		killed = append(killed, pid)
		return true
	})
	step(t, m)
	m.Update(key("m"))

	m.Update(key("k"))
	if m.confirm == nil || m.confirm.PID != 99 {
		t.Fatalf("confirm = %+v, want pid 99", m.confirm)
	}
	if m.sortKey != proctable.KeyCPU {
		t.Fatalf("k should switch to cpu sort")
	}
	if !strings.Contains(m.View(), "Terminate PID 99") {
		t.Fatalf("dialog not rendered")
	}
	m.Update(key("n"))
	if m.confirm != nil || len(killed) != 0 {
		t.Fatalf("cancel should not terminate")
	}

	m.Update(key("k"))
	_, cmd := m.Update(key("y"))
	if cmd == nil {
		t.Fatalf("expected kill command")
	}
	msg := cmd()
	if len(killed) != 1 || killed[0] != 99 {
		t.Fatalf("killed = %v", killed)
	}
	m.Update(msg)
	if m.status != "Terminated 99 (spin)" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestKillReportsSurvivor(t *testing.T) {
	m := newTestModel(t, busy(), func(int) bool { return true })
	m.deps.Alive = func(int) bool { return true }
	step(t, m)

	msg := m.killCmd(model.Process{PID: 99, Name: "spin"})()
	m.Update(msg)
	if !strings.Contains(m.status, "still running") {
		t.Fatalf("status = %q", m.status)
	}

	m.deps.Terminate = func(int) bool { return false }
	m.Update(m.killCmd(model.Process{PID: 99, Name: "spin"})())
	if !strings.HasPrefix(m.status, "Could not terminate") {
		t.Fatalf("status = %q", m.status)
	}
}

type recordingNotifier struct {
	sent []model.Notification
}

func (r *recordingNotifier) Send(_ context.Context, n model.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

// runCmd executes cmd and any batched commands, returning their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestReloadEnablesNotifications(t *testing.T) {
	rec := &recordingNotifier{}
	m := newTestModel(t, busy(), nil)
	m.deps.Notifier = rec
	m.cfg.Notifications = false
	step(t, m)

	c := m.cfg
	c.Notifications = true
	m.Update(reloadMsg(c))

	_, cmd := m.Update(m.sampleCmd()())
	runCmd(cmd)
	if len(rec.sent) != 1 || !rec.sent[0].Urgent {
		t.Fatalf("sent = %+v, want one urgent notification after reload", rec.sent)
	}
}

func TestKeysWithoutProcesses(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	m.Update(key("k"))
	if m.confirm != nil {
		t.Fatalf("no process to confirm before the first sample")
	}
	m.Update(key("end"))
	if m.offset != 0 {
		t.Fatalf("offset = %d on empty table", m.offset)
	}
}

func TestToggleAlertsHidesBanner(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	step(t, m)
	step(t, m)
	m.Update(key("t"))
	if m.cfg.ShowAlert {
		t.Fatalf("t should disable alerts")
	}
	if strings.Contains(m.View(), "WARNING") {
		t.Fatalf("banner shown with alerts disabled")
	}
}

func TestScrollClamps(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	step(t, m)
	m.Update(key("end"))
	m.Update(key("down"))
	if m.offset != 2 {
		t.Fatalf("offset = %d, want 2", m.offset)
	}
	m.Update(key("home"))
	m.Update(key("up"))
	if m.offset != 0 {
		t.Fatalf("offset = %d, want 0", m.offset)
	}
}

func TestManualRefreshIsRateLimited(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	if _, cmd := m.Update(key("r")); cmd == nil {
		t.Fatalf("first refresh should sample")
	}
	m.inFlight = false
	if _, cmd := m.Update(key("r")); cmd != nil {
		t.Fatalf("immediate second refresh should be limited")
	}
}

func TestReloadAppliesConfig(t *testing.T) {
	m := newTestModel(t, busy(), nil)
	step(t, m)
	c := m.cfg
	c.Threshold = 50
	c.Sort = "mem"
	c.Notifications = false
	m.Update(reloadMsg(c))
	if m.cfg.Threshold != 50 || m.cfg.Notifications || m.sortKey != proctable.KeyMemory {
		t.Fatalf("reload not applied: %+v key=%v", m.cfg, m.sortKey)
	}
	if m.status != "Configuration reloaded" {
		t.Fatalf("status = %q", m.status)
	}
}

func TestFormatting(t *testing.T) {
	cases := []struct{ got, want string }{
		{formatKB(512), "512 KB"},
		{formatKB(2048), "2.0 MB"},
		{formatKB(3 * 1024 * 1024), "3.0 GB"},
		{formatLatency(-1), "N/A"},
		{formatLatency(1.5), "1.50ms"},
		{formatUptime(26*time.Hour + 5*time.Minute), "1d 2h 5m"},
		{formatUptime(90 * time.Minute), "1h 30m"},
		{truncate("abcdef", 4), "abc…"},
		{gaugeBar(150, 4), "[████] 100.0%"},
		{gaugeBar(-3, 4), "[░░░░]   0.0%"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}
