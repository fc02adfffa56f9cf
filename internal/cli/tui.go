package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/automation/pkg/observability"
)

const (
	pollInterval = 500 * time.Millisecond
	maxEvents    = 12
)

var (
	watchBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
	watchErrStyle = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Messages
// =============================================================================

// snapshotMsg carries the rendered target read on the control thread.
type snapshotMsg struct {
	html     string
	children int
	err      error
}

// compositeMsg reports one reconciliation pass.
type compositeMsg struct {
	cid      int
	patches  int
	duration time.Duration
	err      error
}

// logMsg is one line written by the logger while the TUI owns the screen.
type logMsg string

type pollMsg struct{}

type refreshTickMsg struct{}

// =============================================================================
// WatchModel - live view of a composition root
// =============================================================================

// WatchModel is the bubbletea model behind the watch command.
type WatchModel struct {
	Addr     string
	Interval time.Duration // automatic forceUpdateAll; zero disables

	snapshot func(ctx context.Context) snapshotMsg
	refresh  func()

	html       string
	children   int
	composites int
	patches    int
	events     []string
	width      int
}

// NewWatchModel creates the model. snapshot runs inside a tea.Cmd and must
// be safe to call off the control thread; refresh requests a refetch of
// every child.
func NewWatchModel(addr string, interval time.Duration, snapshot func(context.Context) snapshotMsg, refresh func()) WatchModel {
	return WatchModel{
		Addr:     addr,
		Interval: interval,
		snapshot: snapshot,
		refresh:  refresh,
		width:    80,
	}
}

func (m WatchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return m.snapshot(ctx)
	}
}

func (m WatchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.poll()}
	if m.Interval > 0 {
		cmds = append(cmds, tea.Tick(m.Interval, func(time.Time) tea.Msg { return refreshTickMsg{} }))
	}
	return tea.Batch(cmds...)
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.refresh()
			m.addEvent(StyleHighlight.Render("refresh requested"))
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case snapshotMsg:
		if msg.err != nil {
			m.addEvent(watchErrStyle.Render("snapshot: " + msg.err.Error()))
		} else {
			m.html, m.children = msg.html, msg.children
		}
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
	case pollMsg:
		return m, m.poll()
	case refreshTickMsg:
		m.refresh()
		m.addEvent(StyleDim.Render("scheduled refresh"))
		return m, tea.Tick(m.Interval, func(time.Time) tea.Msg { return refreshTickMsg{} })
	case compositeMsg:
		m.composites++
		m.patches += msg.patches
		line := fmt.Sprintf("composite cid=%d patches=%d (%s)", msg.cid, msg.patches, msg.duration.Round(time.Microsecond))
		if msg.err != nil {
			line = watchErrStyle.Render(line + " " + msg.err.Error())
		}
		m.addEvent(line)
	case logMsg:
		m.addEvent(StyleDim.Render(strings.TrimRight(string(msg), "\n")))
	}
	return m, nil
}

func (m *WatchModel) addEvent(s string) {
	m.events = append(m.events, s)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("automation watch"))
	if m.Addr != "" {
		b.WriteString("  " + StyleLink.Render("http://"+m.Addr))
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d children · %d composites · %d patches", m.children, m.composites, m.patches)))
	b.WriteString("\n")

	box := watchBoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	html := m.html
	if html == "" {
		html = StyleDim.Render("(empty)")
	}
	b.WriteString(box.Render(html))
	b.WriteString("\n")

	for _, e := range m.events {
		b.WriteString(styleIconInfo.Render(iconInfo) + " " + e + "\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("r refresh  q quit"))
	return b.String()
}

// =============================================================================
// Bridges into the program
// =============================================================================

// teaWriter forwards log output to the program as logMsg lines.
type teaWriter struct {
	p *tea.Program
}

func (w teaWriter) Write(b []byte) (int, error) {
	w.p.Send(logMsg(string(b)))
	return len(b), nil
}

// watchHooks forwards composite events to the program.
type watchHooks struct {
	observability.NoopRenderHooks
	p *tea.Program
}

func (h watchHooks) OnComposite(_ context.Context, cid, patches int, d time.Duration, err error) {
	h.p.Send(compositeMsg{cid: cid, patches: patches, duration: d, err: err})
}
