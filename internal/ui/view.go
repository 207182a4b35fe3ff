package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/activity_monitor/internal/alert"
	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	critStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
	bannerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 2)
)

const (
	gaugeWidth = 24
	maxCores   = 16
)

func (m *Model) View() string {
	s := m.latest
	header := titleStyle.Render("Activity Monitor") + "  " +
		subtleStyle.Render(fmt.Sprintf("%s  up %s  sort:%s  every %v",
			s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006"),
			formatUptime(s.Uptime), m.sortKey, m.cfg.RefreshRate))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top,
		m.cpuCard(s.CPU), memoryCard(s.Memory), diskCard(s.Disks))

	parts := []string{header, line1}
	if banner := m.alertBanner(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, card(fmt.Sprintf("Processes (%d)", m.table.Len()), m.processRows()))
	if m.confirm != nil {
		parts = append(parts, dialogStyle.Render(fmt.Sprintf(
			"Terminate PID %d (%s) using %.1f%% CPU?\n[y] yes   [n] no",
			m.confirm.PID, m.confirm.Name, m.confirm.CPUPercent)))
	}
	parts = append(parts, m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) cpuCard(c model.CPU) string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %s\n", m.cpuGauge(c.Aggregate))
	n := len(c.PerCore)
	if n > maxCores {
		n = maxCores
	}
	for _, core := range c.PerCore[:n] {
		fmt.Fprintf(&b, "%3d %s\n", core.Core, m.cpuGauge(core))
	}
	if len(c.PerCore) > n {
		fmt.Fprintf(&b, "    +%d more cores\n", len(c.PerCore)-n)
	}
	fmt.Fprintf(&b, "load %.2f %.2f %.2f", c.Load1, c.Load5, c.Load15)
	return card(fmt.Sprintf("CPU (%d cores)", c.Cores), b.String())
}

func (m *Model) cpuGauge(c model.CPUMetric) string {
	if !c.Available {
		return subtleStyle.Render(gaugeBar(0, gaugeWidth) + " n/a")
	}
	return colorFor(c.Percent, m.cfg.Threshold).Render(gaugeBar(c.Percent, gaugeWidth))
}

func memoryCard(mem model.Memory) string {
	hit := "N/A"
	if mem.CacheHitRate >= 0 {
		hit = fmt.Sprintf("%.1f%%", mem.CacheHitRate)
	}
	body := fmt.Sprintf("ram  %s\n     %s / %s\nswap %s\n     %s / %s\ncache %s  buffers %s\nhit ~%s  latency ~%.0fns",
		colorFor(mem.PercentUsed, 90).Render(gaugeBar(mem.PercentUsed, gaugeWidth)),
		formatKB(mem.UsedKB), formatKB(mem.TotalKB),
		gaugeBar(mem.SwapPercentUsed, gaugeWidth),
		formatKB(mem.SwapUsedKB), formatKB(mem.SwapTotalKB),
		formatKB(mem.CachedKB), formatKB(mem.BuffersKB),
		hit, mem.LatencyNs)
	return card("Memory", body)
}

func diskCard(disks []model.Disk) string {
	if len(disks) == 0 {
		return card("Disks", subtleStyle.Render("no disks"))
	}
	rows := make([]string, 0, len(disks))
	for _, d := range disks {
		rows = append(rows, fmt.Sprintf("%-14s %s %9s free  lat %s",
			truncate(d.MountPoint, 14),
			colorFor(d.PercentUsed, 90).Render(gaugeBar(d.PercentUsed, 10)),
			formatKB(d.FreeKB), formatLatency(d.ReadLatencyMs)))
	}
	return card("Disks", strings.Join(rows, "\n"))
}

func (m *Model) alertBanner() string {
	if !m.cfg.ShowAlert {
		return ""
	}
	agg := m.latest.CPU.Aggregate.Percent
	switch alert.LevelOf(m.latest.Alert) {
	case alert.Warning:
		return bannerStyle.Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Render(
			fmt.Sprintf("WARNING: CPU %.1f%% above threshold %.1f%%  (k to terminate top process)", agg, m.cfg.Threshold))
	case alert.PreWarning:
		return bannerStyle.Foreground(lipgloss.Color("16")).Background(lipgloss.Color("220")).Render(
			fmt.Sprintf("CPU %.1f%% approaching threshold %.1f%%", agg, m.cfg.Threshold))
	}
	return ""
}

// visibleRows is how many process rows fit under the cards.
func (m *Model) visibleRows() int {
	n := m.height - 28
	if n < 5 {
		n = 5
	}
	return n
}

func (m *Model) processRows() string {
	rows := m.table.Rows()
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-28s %7s %7s\n", "PID", "NAME", "CPU%", "MEM%")
	end := m.offset + m.visibleRows()
	if end > len(rows) {
		end = len(rows)
	}
	for _, p := range rows[m.offset:end] {
		line := fmt.Sprintf("%-8d %-28s %7.1f %7.1f", p.PID, truncate(p.Name, 28), p.CPUPercent, p.MemPercent)
		if p.CPUPercent >= m.cfg.Threshold {
			line = critStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(rows) > 0 {
		b.WriteString(subtleStyle.Render(fmt.Sprintf("rows %d-%d of %d", m.offset+1, end, len(rows))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) footer() string {
	alerts := "on"
	if !m.cfg.ShowAlert {
		alerts = "off"
	}
	keys := fmt.Sprintf("q quit  r refresh  t alerts(%s)  c/m sort  k kill top  ↑↓ pgup/pgdn home/end scroll", alerts)
	if m.status == "" {
		return subtleStyle.Render(keys)
	}
	return subtleStyle.Render(keys) + "\n" + labelStyle.Render(m.status)
}

// Helpers
func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

// colorFor is red at or above limit, yellow from 80% of it, green below.
func colorFor(pct, limit float64) lipgloss.Style {
	switch {
	case pct >= limit:
		return critStyle
	case pct >= limit*alert.PreWarningRatio:
		return warnStyle
	default:
		return okStyle
	}
}

func card(title, body string) string {
	return cardStyle.Render(labelStyle.Render(title) + "\n" + body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatKB(kb uint64) string {
	switch {
	case kb >= 1024*1024:
		return fmt.Sprintf("%.1f GB", float64(kb)/(1024*1024))
	case kb >= 1024:
		return fmt.Sprintf("%.1f MB", float64(kb)/1024)
	default:
		return fmt.Sprintf("%d KB", kb)
	}
}

func formatLatency(ms float64) string {
	if ms < 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2fms", ms)
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, h, d/time.Minute)
	}
	return fmt.Sprintf("%dh %dm", h, d/time.Minute)
}
