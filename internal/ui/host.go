// Package ui draws reminder overlays in the terminal. The Host is a
// full-screen bubbletea program: while overlays are open the newest one
// fills the screen, otherwise it shows the reminder list.
package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
)

// ErrHostClosed is returned by Create once the program has exited.
var ErrHostClosed = errors.New("overlay host closed")

const tickEvery = time.Second

type openMsg struct {
	handle overlay.Handle
	spec   overlay.Spec
}

type closeMsg struct {
	handle overlay.Handle
}

type refreshMsg struct{}

type tickMsg time.Time

// Host implements overlay.Surface on top of a bubbletea program.
type Host struct {
	prog *tea.Program
	send func(tea.Msg)

	mu      sync.Mutex
	next    int
	closed  bool
	list    []reminder.Definition
	enabled bool
}

var _ overlay.Surface = (*Host)(nil)

// NewHost creates the host. controlAddr is shown on the idle screen.
func NewHost(f *Formatter, controlAddr string, opts ...tea.ProgramOption) *Host {
	h := &Host{enabled: true}
	m := newModel(f, controlAddr, h.snapshot, time.Now)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	h.prog = tea.NewProgram(m, opts...)
	h.send = h.prog.Send
	return h
}

// Run blocks until the user quits or Quit is called.
func (h *Host) Run() error {
	_, err := h.prog.Run()

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("overlay host failed: %w", err)
	}
	return nil
}

// Quit stops the program.
func (h *Host) Quit() {
	h.prog.Quit()
}

// Create shows a new overlay on top of any open ones.
func (h *Host) Create(ctx context.Context, spec overlay.Spec) (overlay.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHostClosed
	}
	h.next++
	handle := overlay.Handle(fmt.Sprintf("tui-%d", h.next))
	h.mu.Unlock()

	h.send(openMsg{handle: handle, spec: spec})
	return handle, nil
}

// Destroy removes an overlay. Unknown handles are ignored.
func (h *Host) Destroy(handle overlay.Handle) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if !closed {
		h.send(closeMsg{handle: handle})
	}
	return nil
}

// SetReminders updates the idle list. It never blocks, so it is safe to
// call before Run.
func (h *Host) SetReminders(list []reminder.Definition, enabled bool) {
	h.mu.Lock()
	h.list = slices.Clone(list)
	h.enabled = enabled
	closed := h.closed
	h.mu.Unlock()

	if !closed {
		go h.send(refreshMsg{})
	}
}

func (h *Host) snapshot() ([]reminder.Definition, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list, h.enabled
}

type shownOverlay struct {
	handle overlay.Handle
	spec   overlay.Spec
	bar    progress.Model
}

type model struct {
	fmt         *Formatter
	controlAddr string
	source      func() ([]reminder.Definition, bool)
	now         func() time.Time
	lists       *listRenderer

	overlays []shownOverlay // newest last
	ticking  bool

	list     []reminder.Definition
	enabled  bool
	rendered string

	width  int
	height int
}

func newModel(f *Formatter, controlAddr string, source func() ([]reminder.Definition, bool), now func() time.Time) model {
	return model{
		fmt:         f,
		controlAddr: controlAddr,
		source:      source,
		now:         now,
		lists:       &listRenderer{colored: f.Colored()},
		enabled:     true,
		width:       80,
		height:      24,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.overlays {
			m.overlays[i].bar.Width = m.barWidth()
		}
		m.rendered = m.lists.render(m.list, m.width)
		return m, nil

	case openMsg:
		bar := progress.New(
			progress.WithSolidFill("#ffffff"),
			progress.WithoutPercentage(),
			progress.WithWidth(m.barWidth()),
		)
		m.overlays = append(m.overlays, shownOverlay{handle: msg.handle, spec: msg.spec, bar: bar})
		return m, m.startTicking()

	case closeMsg:
		m.overlays = slices.DeleteFunc(m.overlays, func(o shownOverlay) bool {
			return o.handle == msg.handle
		})
		return m, nil

	case tickMsg:
		if len(m.overlays) == 0 {
			m.ticking = false
			return m, nil
		}
		return m, tick()

	case refreshMsg:
		if m.source != nil {
			m.list, m.enabled = m.source()
		}
		m.rendered = m.lists.render(m.list, m.width)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc", "enter":
			return m, m.dismissTop()
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			return m, m.dismissTop()
		}
	}

	return m, nil
}

// dismissTop reports the click or key press on the newest overlay. The
// overlay stays until the manager destroys it.
func (m model) dismissTop() tea.Cmd {
	if len(m.overlays) == 0 {
		return nil
	}
	onDismiss := m.overlays[len(m.overlays)-1].spec.OnDismiss
	if onDismiss == nil {
		return nil
	}
	return func() tea.Msg {
		onDismiss()
		return nil
	}
}

func (m *model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) barWidth() int {
	return min(max(m.width/2, 10), 60)
}

func (m model) View() string {
	if len(m.overlays) > 0 {
		return m.overlayView(m.overlays[len(m.overlays)-1], len(m.overlays)-1)
	}
	return m.idleView()
}

func (m model) overlayView(o shownOverlay, behind int) string {
	spec := o.spec
	total := spec.Deadline.Sub(spec.OpenedAt)
	left := spec.Deadline.Sub(m.now())
	fraction := 0.0
	if total > 0 {
		fraction = min(max(float64(left)/float64(total), 0), 1)
	}

	text := overlayTextStyle
	lines := []string{
		text.Render(spec.Content.Icon),
		"",
		text.Bold(true).Render(spec.Content.Message),
		"",
		o.bar.ViewAs(fraction),
		text.Render(m.fmt.FormatCountdown(left)),
		"",
		text.Faint(true).Render(m.fmt.FormatDismissHint(behind)),
	}
	body := lipgloss.JoinVertical(lipgloss.Center, lines...)

	if !m.fmt.Colored() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}

	color := spec.Content.Color
	if color == "" {
		color = reminder.DefaultColor
	}
	bg := lipgloss.Color(color)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body,
		lipgloss.WithWhitespaceBackground(bg))
}

func (m model) idleView() string {
	parts := []string{
		m.fmt.FormatHeader(len(m.list), m.enabled),
		"",
		m.rendered,
		"",
		m.fmt.FormatHelp(m.controlAddr),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
