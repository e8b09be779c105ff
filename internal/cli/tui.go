package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/homeroom/internal/hub"
)

const (
	tuiLogLines = 8
	tuiRefresh  = time.Second
)

var titleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)

// Messages

type stateMsg hub.State

type logMsg string

type pendingMsg int

type syncDoneMsg struct{}

type refreshMsg time.Time

// statusModel is the live status view of `homeroom run --tui`.
type statusModel struct {
	ctx     context.Context
	sync    func(ctx context.Context)
	pending func(ctx context.Context) (int, error)
	states  <-chan hub.State
	lines   <-chan string
	now     func() time.Time

	state    hub.State
	queued   int
	logs     []string
	manual   bool
	quitting bool
}

func newStatusModel(ctx context.Context, app *App, states <-chan hub.State, lines <-chan string) statusModel {
	return statusModel{
		ctx:     ctx,
		sync:    app.Syncer.Sync,
		pending: app.Pending,
		states:  states,
		lines:   lines,
		now:     time.Now,
		state:   app.Hub.State(),
	}
}

// Init implements tea.Model.
func (m statusModel) Init() tea.Cmd {
	return tea.Batch(
		waitState(m.states),
		waitLine(m.lines),
		m.fetchPending(),
		refreshCmd(tuiRefresh),
	)
}

// Update implements tea.Model.
func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = hub.State(msg)
		return m, tea.Batch(waitState(m.states), m.fetchPending())

	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > tuiLogLines {
			m.logs = m.logs[len(m.logs)-tuiLogLines:]
		}
		return m, waitLine(m.lines)

	case pendingMsg:
		m.queued = int(msg)
		return m, nil

	case syncDoneMsg:
		m.manual = false
		return m, m.fetchPending()

	case refreshMsg:
		return m, tea.Batch(m.fetchPending(), refreshCmd(tuiRefresh))
	}
	return m, nil
}

func (m statusModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if m.manual || m.state.Status == hub.StatusSyncing {
			return m, nil
		}
		m.manual = true
		return m, m.syncNow()
	}
	return m, nil
}

// View implements tea.Model.
func (m statusModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("homeroom"))
	b.WriteString("\n")
	b.WriteString(renderStatusLine(m.state, m.queued, m.now()))
	b.WriteString("\n\n")
	for _, line := range m.logs {
		b.WriteString(mutedStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("s sync now • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Commands

func (m statusModel) syncNow() tea.Cmd {
	return func() tea.Msg {
		m.sync(m.ctx)
		return syncDoneMsg{}
	}
}

func (m statusModel) fetchPending() tea.Cmd {
	return func() tea.Msg {
		n, err := m.pending(m.ctx)
		if err != nil {
			return nil
		}
		return pendingMsg(n)
	}
}

func waitState(ch <-chan hub.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

func waitLine(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func refreshCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// latestStates subscribes to h and returns a channel holding at most the
// newest undelivered state.
func latestStates(h *hub.Hub) (<-chan hub.State, func()) {
	ch := make(chan hub.State, 1)
	unsubscribe := h.Subscribe(func(s hub.State) {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	})
	return ch, unsubscribe
}

// lineSink is an io.Writer that hands complete log lines to the TUI. Lines
// are dropped while the view is behind.
type lineSink struct {
	mu  sync.Mutex
	buf []byte
	ch  chan string
}

func newLineSink(size int) *lineSink {
	return &lineSink{ch: make(chan string, size)}
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		line := string(s.buf[:i])
		s.buf = s.buf[i+1:]
		select {
		case s.ch <- line:
		default:
		}
	}
	return len(p), nil
}

func (s *lineSink) Lines() <-chan string { return s.ch }

// runTUI blocks until the user quits or ctx is done.
func runTUI(ctx context.Context, m statusModel, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
