package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/btscout/internal/bt"
	"github.com/muurk/btscout/internal/discovery"
	"github.com/muurk/btscout/internal/ui"
)

// Controller starts and stops device discovery. *discovery.Engine
// implements it.
type Controller interface {
	StartDevices(ctx context.Context, methods bt.Method) error
	StopDevices(ctx context.Context) error
}

// Messages for async operations
type (
	eventMsg        struct{ ev discovery.Event }
	eventsClosedMsg struct{}
	startedMsg      struct{ err error }
	stoppedMsg      struct{ err error }
)

// scanState is what the status line reports.
type scanState int

const (
	stateIdle scanState = iota
	stateScanning
	stateFinished
	stateCanceled
	stateFailed
)

// deviceItem wraps a DeviceRecord for use with bubbles/list
type deviceItem struct {
	rec  bt.DeviceRecord
	nick string
}

func (d deviceItem) FilterValue() string {
	return d.rec.Address.String() + " " + d.rec.Name + " " + d.nick
}

func (d deviceItem) Title() string {
	switch {
	case d.nick != "" && d.rec.Name != "" && d.rec.Name != d.nick:
		return d.nick + " (" + d.rec.Name + ")"
	case d.nick != "":
		return d.nick
	case d.rec.Name != "":
		return d.rec.Name
	}
	return d.rec.Address.String()
}

func (d deviceItem) Description() string {
	parts := []string{d.rec.Address.String(), d.rec.CoreConfigurations.String()}
	if d.rec.HasRSSI {
		parts = append(parts, fmt.Sprintf("%d dBm", d.rec.RSSI))
	}
	if n := len(d.rec.ServiceUUIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d services", n))
	}
	if d.rec.Cached {
		parts = append(parts, "cached")
	}
	return strings.Join(parts, " • ")
}

// WatchModel is the live device list. It drives a Controller and renders the
// session events it receives.
type WatchModel struct {
	ctx      context.Context
	ctrl     Controller
	events   <-chan discovery.Event
	methods  bt.Method
	nickname ui.NicknameFunc

	// Discovery state
	State   scanState
	Session string
	Err     error
	Updates int
	index   map[bt.Address]int
	// ignore is the run whose late events are dropped after a restart.
	ignore string

	// UI state
	Width     int
	Height    int
	StartedAt time.Time
	Devices   list.Model
	Spinner   spinner.Model
	Help      help.Model
	Keys      watchKeyMap
	now       func() time.Time
}

// NewWatchModel builds the watch screen. Discovery starts from Init.
func NewWatchModel(ctx context.Context, ctrl Controller, events <-chan discovery.Event, methods bt.Method, nickname ui.NicknameFunc) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	devices := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	devices.Title = "Devices"
	devices.SetShowStatusBar(false)
	devices.SetShowHelp(false)
	devices.SetFilteringEnabled(true)
	devices.Styles.Title = TitleStyle

	return WatchModel{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   events,
		methods:  methods,
		nickname: nickname,
		index:    make(map[bt.Address]int),
		Devices:  devices,
		Spinner:  s,
		Help:     help.New(),
		Keys:     newWatchKeyMap(),
		now:      time.Now,
	}
}

// Init starts discovery and begins listening for events
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		m.startCmd(),
		waitForEvent(m.events),
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Devices.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Stop):
			return m, m.stopCmd()
		case key.Matches(msg, m.Keys.Restart):
			m.ignore = m.Session
			m.clear()
			m.State = stateScanning
			m.StartedAt = m.now()
			return m, m.restartCmd()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Devices.SetSize(msg.Width-4, msg.Height-10)

	case startedMsg:
		if msg.err != nil {
			m.State = stateFailed
			m.Err = msg.err
		} else if m.State != stateScanning {
			m.State = stateScanning
			m.StartedAt = m.now()
		}
		return m, nil

	case stoppedMsg:
		if msg.err != nil {
			m.Err = msg.err
		}
		return m, nil

	case eventMsg:
		cmd = m.apply(msg.ev)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case eventsClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	m.Devices, cmd = m.Devices.Update(msg)
	return m, cmd
}

// apply folds a session event into the model.
func (m *WatchModel) apply(ev discovery.Event) tea.Cmd {
	if ev.Scope != discovery.ScopeDevices {
		return nil
	}
	if ev.Session != "" && ev.Session == m.ignore {
		return nil
	}
	if ev.Session != m.Session {
		if m.Session != "" {
			m.clear()
		}
		m.Session = ev.Session
	}

	switch ev.Type {
	case discovery.DeviceDiscovered, discovery.DeviceUpdated:
		if m.State != stateScanning {
			m.State = stateScanning
			m.StartedAt = m.now()
		}
		if ev.Type == discovery.DeviceUpdated {
			m.Updates++
		}
		return m.upsert(ev.Device)
	case discovery.Finished:
		m.State = stateFinished
	case discovery.Canceled:
		m.State = stateCanceled
	case discovery.ErrorOccurred:
		m.State = stateFailed
		m.Err = ev.Err
	}
	return nil
}

func (m *WatchModel) upsert(rec bt.DeviceRecord) tea.Cmd {
	item := deviceItem{rec: rec}
	if m.nickname != nil {
		item.nick = m.nickname(rec.Address)
	}
	if i, ok := m.index[rec.Address]; ok {
		return m.Devices.SetItem(i, item)
	}
	m.index[rec.Address] = len(m.Devices.Items())
	return m.Devices.InsertItem(len(m.Devices.Items()), item)
}

func (m *WatchModel) clear() {
	m.Devices.SetItems(nil)
	m.index = make(map[bt.Address]int)
	m.Updates = 0
	m.Err = nil
}

// DeviceCount returns how many devices the list holds.
func (m WatchModel) DeviceCount() int {
	return len(m.Devices.Items())
}

// View renders the watch screen
func (m WatchModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString(ErrorStyle.Render(ui.FailureMarker + " " + m.Err.Error()))
		b.WriteString("\n")
		for _, tip := range ui.Troubleshooting(m.Err) {
			b.WriteString(HintStyle.Render("• " + tip))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	if m.DeviceCount() == 0 {
		b.WriteString(SubtitleStyle.Render("  No devices yet"))
	} else {
		b.WriteString(m.Devices.View())
	}

	return RenderApplicationContainer(lipgloss.NewStyle().Width(width-4).Render(b.String()),
		m.Help.View(m.Keys), width, m.Height)
}

func (m WatchModel) statusLine() string {
	counts := fmt.Sprintf("%d devices • %d updates", m.DeviceCount(), m.Updates)
	switch m.State {
	case stateScanning:
		elapsed := m.now().Sub(m.StartedAt).Round(time.Second)
		return StatusStyle.Render(fmt.Sprintf("%s Scanning %s for %s • %s", m.Spinner.View(), m.methods, elapsed, counts))
	case stateFinished:
		return DoneStyle.Render(ui.SuccessMarker + " Finished • " + counts)
	case stateCanceled:
		return CanceledStyle.Render(ui.WarningMarker + " Stopped • " + counts)
	case stateFailed:
		return ErrorStyle.Render(ui.FailureMarker + " Failed • " + counts)
	default:
		return StatusStyle.Render(m.Spinner.View() + " Starting")
	}
}

func (m WatchModel) startCmd() tea.Cmd {
	ctx, ctrl, methods := m.ctx, m.ctrl, m.methods
	return func() tea.Msg {
		return startedMsg{err: ctrl.StartDevices(ctx, methods)}
	}
}

func (m WatchModel) stopCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return stoppedMsg{err: ctrl.StopDevices(ctx)}
	}
}

// restartCmd stops the running scan and queues a new one behind it; the
// session replaces the run once the stop is acknowledged.
func (m WatchModel) restartCmd() tea.Cmd {
	ctx, ctrl, methods := m.ctx, m.ctrl, m.methods
	return func() tea.Msg {
		if err := ctrl.StopDevices(ctx); err != nil {
			return startedMsg{err: err}
		}
		return startedMsg{err: ctrl.StartDevices(ctx, methods)}
	}
}

// waitForEvent blocks for the next session event.
func waitForEvent(events <-chan discovery.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

// Watch runs the watch screen until the user quits or ctx is canceled.
func Watch(ctx context.Context, ctrl Controller, events <-chan discovery.Event, methods bt.Method, nickname ui.NicknameFunc) error {
	model := NewWatchModel(ctx, ctrl, events, methods, nickname)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
