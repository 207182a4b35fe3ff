package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/Dicklesworthstone/activity_monitor/internal/config"
	"github.com/Dicklesworthstone/activity_monitor/internal/model"
	"github.com/Dicklesworthstone/activity_monitor/internal/notify"
	"github.com/Dicklesworthstone/activity_monitor/internal/procctl"
	"github.com/Dicklesworthstone/activity_monitor/internal/proctable"
	"github.com/Dicklesworthstone/activity_monitor/internal/sampler"
	"github.com/Dicklesworthstone/activity_monitor/internal/source"
)

// Deps are the collaborators the UI drives.
type Deps struct {
	Source   source.Source
	Notifier notify.Notifier
	Logger   *slog.Logger
	// Terminate and Alive default to the procctl functions.
	Terminate func(pid int) bool
	Alive     func(pid int) bool
}

// killGrace is how long a terminated process gets to exit before the status
// line reports it as still running.
const killGrace = 500 * time.Millisecond

// Model renders live samples and owns the sampler state between ticks.
type Model struct {
	cfg  config.Config
	deps Deps

	ctx       context.Context
	ctxCancel context.CancelFunc

	state   sampler.State
	latest  model.Sample
	table   *proctable.Table
	sortKey proctable.Key

	seq      int // id of the tick currently scheduled
	inFlight bool
	refresh  *rate.Limiter
	reloads  chan config.Config

	offset  int
	confirm *model.Process
	status  string
	fatal   error

	width  int
	height int
}

func New(cfg config.Config, deps Deps) *Model {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	if deps.Terminate == nil {
		deps.Terminate = procctl.Terminate
	}
	if deps.Alive == nil {
		deps.Alive = procctl.Alive
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Model{
		cfg:       cfg,
		deps:      deps,
		ctx:       ctx,
		ctxCancel: cancel,
		state:     sampler.NewState(now),
		latest:    model.Sample{Timestamp: now},
		table:     proctable.New(nil, cfg.SortKey()),
		sortKey:   cfg.SortKey(),
		refresh:   rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		width:     120,
		height:    40,
	}
}

// Messages
type (
	tickMsg    struct{ seq int }
	sampledMsg struct {
		res   sampler.Result
		state sampler.State
		err   error
	}
	killedMsg struct {
		proc model.Process
		ok   bool
		gone bool
	}
	reloadMsg config.Config
)

func (m *Model) tickCmd() tea.Cmd {
	m.seq++
	seq := m.seq
	return tea.Tick(m.cfg.RefreshRate, func(time.Time) tea.Msg { return tickMsg{seq: seq} })
}

// sampleCmd runs one tick off the UI goroutine. Only one runs at a time and
// its result is applied in Update, so the state has a single writer.
func (m *Model) sampleCmd() tea.Cmd {
	m.inFlight = true
	ctx, src, state, opts := m.ctx, m.deps.Source, m.state, m.options()
	return func() tea.Msg {
		res, next, err := sampler.Tick(ctx, src, state, opts, time.Now())
		return sampledMsg{res: res, state: next, err: err}
	}
}

func (m *Model) options() sampler.Options {
	return sampler.Options{
		Interval:             m.cfg.RefreshRate,
		Threshold:            m.cfg.Threshold,
		AlertsEnabled:        m.cfg.ShowAlert,
		NotificationsEnabled: m.cfg.Notifications,
		Sort:                 m.sortKey,
		Logger:               m.deps.Logger,
	}
}

func (m *Model) notifyCmd(n model.Notification) tea.Cmd {
	ctx, notifier, log := m.ctx, m.deps.Notifier, m.deps.Logger
	return func() tea.Msg {
		if err := notifier.Send(ctx, n); err != nil {
			log.Debug("notification not delivered", "err", err)
		}
		return nil
	}
}

func (m *Model) killCmd(p model.Process) tea.Cmd {
	terminate, alive := m.deps.Terminate, m.deps.Alive
	return func() tea.Msg {
		if !terminate(p.PID) {
			return killedMsg{proc: p}
		}
		deadline := time.Now().Add(killGrace)
		for alive(p.PID) {
			if time.Now().After(deadline) {
				return killedMsg{proc: p, ok: true}
			}
			time.Sleep(50 * time.Millisecond)
		}
		return killedMsg{proc: p, ok: true, gone: true}
	}
}

func (m *Model) waitReload() tea.Cmd {
	ch := m.reloads
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg(c)
	}
}

// WatchConfig starts reloading settings from the config file on change.
func (m *Model) WatchConfig() error {
	if m.cfg.ConfigPath == "" {
		return nil
	}
	m.reloads = make(chan config.Config, 1)
	ch, log := m.reloads, m.deps.Logger
	return config.Watch(m.ctx, m.cfg.ConfigPath, m.cfg,
		func(c config.Config) {
			select {
			case <-ch:
			default:
			}
			ch <- c
		},
		func(err error) { log.Warn("config reload failed", "err", err) },
	)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.sampleCmd(), m.waitReload())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if msg.seq != m.seq || m.inFlight {
			return m, nil
		}
		return m, m.sampleCmd()
	case sampledMsg:
		m.inFlight = false
		if msg.err != nil {
			m.fatal = msg.err
			m.deps.Logger.Error("sampling failed", "err", msg.err)
			m.ctxCancel()
			return m, tea.Quit
		}
		m.apply(msg)
		cmds := []tea.Cmd{m.tickCmd()}
		if n := msg.res.Notification; n != nil {
			cmds = append(cmds, m.notifyCmd(*n))
		}
		return m, tea.Batch(cmds...)
	case killedMsg:
		switch {
		case msg.gone:
			m.status = fmt.Sprintf("Terminated %d (%s)", msg.proc.PID, msg.proc.Name)
		case msg.ok:
			m.status = fmt.Sprintf("Sent termination signal to %d (%s), still running", msg.proc.PID, msg.proc.Name)
		default:
			m.status = fmt.Sprintf("Could not terminate %d (%s)", msg.proc.PID, msg.proc.Name)
		}
		m.deps.Logger.Info("terminate", "pid", msg.proc.PID, "name", msg.proc.Name, "ok", msg.ok, "exited", msg.gone)
		return m, m.forceRefresh()
	case reloadMsg:
		m.applyConfig(config.Config(msg))
		return m, tea.Batch(m.waitReload(), m.forceRefresh())
	}
	return m, nil
}

func (m *Model) apply(msg sampledMsg) {
	m.state = msg.state
	m.latest = msg.res.Sample
	m.table = msg.res.Table
	// The user may have switched keys while the tick was running.
	if m.table.Key() != m.sortKey {
		m.table.SetKey(m.sortKey)
	}
	m.latest.Processes = m.table.Rows()
	m.clampOffset()
}

func (m *Model) applyConfig(c config.Config) {
	m.cfg.Threshold = c.Threshold
	m.cfg.ShowAlert = c.ShowAlert
	m.cfg.Notifications = c.Notifications
	m.cfg.RefreshRate = c.RefreshRate
	if c.SortKey() != m.sortKey {
		m.setSort(c.SortKey())
	}
	m.status = "Configuration reloaded"
	m.deps.Logger.Info("configuration reloaded",
		"threshold", c.Threshold, "refresh", c.RefreshRate, "alerts", c.ShowAlert, "notify", c.Notifications)
}

// forceRefresh samples now unless a tick is already running.
func (m *Model) forceRefresh() tea.Cmd {
	if m.inFlight {
		return nil
	}
	m.seq++ // drop the pending scheduled tick
	return m.sampleCmd()
}

func (m *Model) setSort(k proctable.Key) {
	m.sortKey = k
	m.table.SetKey(k)
	m.latest.Processes = m.table.Rows()
	m.offset = 0
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.ctxCancel()
		return m, tea.Quit
	}
	if m.confirm != nil {
		switch msg.String() {
		case "y", "Y":
			p := *m.confirm
			m.confirm = nil
			return m, m.killCmd(p)
		case "n", "N", "esc":
			m.confirm = nil
			m.status = "Termination cancelled"
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "Q":
		m.ctxCancel()
		return m, tea.Quit
	case "r", "R":
		if !m.refresh.Allow() {
			return m, nil
		}
		return m, m.forceRefresh()
	case "t", "T":
		m.cfg.ShowAlert = !m.cfg.ShowAlert
	case "c", "C":
		m.setSort(proctable.KeyCPU)
	case "m", "M":
		m.setSort(proctable.KeyMemory)
	case "k", "K":
		if m.sortKey != proctable.KeyCPU {
			m.setSort(proctable.KeyCPU)
		}
		if top, ok := m.table.Top(); ok {
			m.confirm = &top
		}
	case "up":
		if m.offset > 0 {
			m.offset--
		}
	case "down":
		m.offset++
	case "pgup":
		m.offset -= 10
	case "pgdown":
		m.offset += 10
	case "home":
		m.offset = 0
	case "end":
		m.offset = m.table.Len() - 1
	}
	m.clampOffset()
	return m, nil
}

func (m *Model) clampOffset() {
	if last := m.table.Len() - 1; m.offset > last {
		m.offset = last
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Err is the fatal error that stopped the UI, if any.
func (m *Model) Err() error { return m.fatal }

// RunTUI starts the Bubble Tea program and returns when the user quits or
// sampling fails.
func RunTUI(ctx context.Context, cfg config.Config, deps Deps) error {
	m := New(cfg, deps)
	defer m.ctxCancel()
	if err := m.WatchConfig(); err != nil {
		m.deps.Logger.Warn("config watcher disabled", "err", err)
	}

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && err != tea.ErrProgramKilled {
		return err
	}
	return m.Err()
}
