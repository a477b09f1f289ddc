// Package tui renders a module interface in the terminal with bubbletea.
//
// The interface value is expected to be a Screen. Its Keys map key names, as
// reported by tea.KeyMsg.String, to dispatches; "q" and "ctrl+c" quit unless
// the screen binds them.
//
// Thread Safety: the Model belongs to the bubbletea event loop. Handler may be
// notified from any goroutine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/stream"
)

// Screen is the interface value the handler renders.
type Screen struct {
	Title string
	Body  []string
	Keys  map[string]fractalx.DispatchData
	// Help describes Keys; missing entries show the input name.
	Help map[string]string
}

// screenOf converts an interface value to a Screen.
func screenOf(v any) Screen {
	switch s := v.(type) {
	case Screen:
		return s
	case *Screen:
		if s != nil {
			return *s
		}
		return Screen{}
	case nil:
		return Screen{}
	default:
		return Screen{Body: []string{fmt.Sprint(v)}}
	}
}

// ValueMsg carries a new interface value into the event loop.
type ValueMsg struct {
	Value any
}

// DispatchedMsg reports the outcome of a key dispatch.
type DispatchedMsg struct {
	Key string
	Err error
}

// Model is the bubbletea model of one interface.
type Model struct {
	api     fractalx.API
	screen  Screen
	lastErr string
	width   int
}

// NewModel creates a model showing initial.
func NewModel(api fractalx.API, initial any) Model {
	return Model{api: api, screen: screenOf(initial)}
}

// Screen returns the screen currently shown.
func (m Model) Screen() Screen { return m.screen }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ValueMsg:
		m.screen = screenOf(msg.Value)
	case DispatchedMsg:
		m.lastErr = ""
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}
	case tea.KeyMsg:
		key := msg.String()
		if dd, ok := m.screen.Keys[key]; ok {
			return m, m.dispatch(key, dd)
		}
		if key == "q" || key == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// dispatch runs off the event loop so the resulting ValueMsg can be delivered.
func (m Model) dispatch(key string, dd fractalx.DispatchData) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		if api == nil {
			return DispatchedMsg{Key: key, Err: errors.New("no module attached")}
		}
		return DispatchedMsg{Key: key, Err: api.Dispatch(dd)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	if m.screen.Title != "" {
		b.WriteString(titleStyle.Render(m.screen.Title))
		b.WriteString("\n\n")
	}
	body := bodyStyle
	if m.width > 0 {
		body = body.Width(m.width)
	}
	b.WriteString(body.Render(strings.Join(m.screen.Body, "\n")))
	b.WriteString("\n\n")
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(m.helpLine())
	return b.String()
}

func (m Model) helpLine() string {
	keys := make([]string, 0, len(m.screen.Keys))
	for k := range m.screen.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		desc, ok := m.screen.Help[k]
		if !ok {
			desc = m.screen.Keys[k].Input
		}
		parts = append(parts, helpKeyStyle.Render(k)+" "+helpDescStyle.Render(desc))
	}
	parts = append(parts, helpKeyStyle.Render("q")+" "+helpDescStyle.Render("quit"))
	return strings.Join(parts, "  ")
}

// Handler is an interface handler running one bubbletea program.
type Handler struct {
	api  fractalx.API
	opts []tea.ProgramOption

	mu      sync.Mutex
	latest  any
	program *tea.Program
	unsub   func()
}

// New creates a handler. Run must be called to start the program.
func New(opts ...tea.ProgramOption) *Handler {
	return &Handler{opts: opts}
}

// Factory returns a HandlerFactory that always hands out h.
func (h *Handler) Factory() fractalx.HandlerFactory {
	return func(api fractalx.API) fractalx.InterfaceHandler {
		h.mu.Lock()
		h.api = api
		h.mu.Unlock()
		return h
	}
}

// Attach subscribes to s.
func (h *Handler) Attach(s *stream.Stream[any]) { h.bind(s) }

// Reattach subscribes to the stream created by a hot swap.
func (h *Handler) Reattach(s *stream.Stream[any]) { h.bind(s) }

func (h *Handler) bind(s *stream.Stream[any]) {
	h.mu.Lock()
	if h.unsub != nil {
		h.unsub()
	}
	h.mu.Unlock()

	h.push(s.Get())
	unsub := s.Subscribe(h.push)

	h.mu.Lock()
	h.unsub = unsub
	h.mu.Unlock()
}

func (h *Handler) push(v any) {
	h.mu.Lock()
	h.latest = v
	p := h.program
	h.mu.Unlock()
	if p != nil {
		p.Send(ValueMsg{Value: v})
	}
}

// Latest returns the most recent interface value.
func (h *Handler) Latest() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Run starts the program and blocks until it quits or ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.program != nil {
		h.mu.Unlock()
		return errors.New("tui: already running")
	}
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, h.opts...)
	p := tea.NewProgram(NewModel(h.api, h.latest), opts...)
	h.program = p
	h.mu.Unlock()

	_, err := p.Run()

	h.mu.Lock()
	h.program = nil
	h.mu.Unlock()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Dispose stops the program and the subscription.
func (h *Handler) Dispose() {
	h.mu.Lock()
	p := h.program
	if h.unsub != nil {
		h.unsub()
		h.unsub = nil
	}
	h.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
