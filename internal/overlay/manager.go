// Package overlay tracks the full-screen reminder overlays that are open,
// one per reminder id, and closes them on dismissal, timeout or request.
package overlay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// AdHoc is the key of overlays that belong to no reminder, such as test
// notifications. Opening one closes every other overlay.
const AdHoc = ""

// Content is what an overlay shows.
type Content struct {
	Icon    string
	Message string
	Color   string
}

// Handle identifies a surface created by a Surface implementation.
type Handle string

// Spec describes the surface to create. Surfaces cover the whole screen,
// stay on top, take focus and stay out of any taskbar. OnDismiss must be
// called when the user clicks the overlay or presses Escape or Enter.
type Spec struct {
	ReminderID     string
	Content        Content
	DisplayMinutes int
	OpenedAt       time.Time
	Deadline       time.Time
	OnDismiss      func()
}

// Surface creates and destroys overlay surfaces.
type Surface interface {
	Create(ctx context.Context, spec Spec) (Handle, error)
	Destroy(h Handle) error
}

// SoundLoop repeats the notification sound while an overlay is open.
type SoundLoop interface {
	Start(volume int)
	Stop()
}

// Sound is the per-fire sound setting.
type Sound struct {
	Enabled bool
	Volume  int
}

// Request opens an overlay.
type Request struct {
	ReminderID     string
	Content        Content
	DisplayMinutes int
	Sound          Sound
}

// Session is one open overlay. Its fields are fixed once Open returns.
type Session struct {
	seq        uint64
	reminderID string
	content    Content
	openedAt   time.Time
	deadline   time.Time
	handle     Handle

	// guarded by Manager.mu
	timer  clockwork.Timer
	loop   SoundLoop
	closed bool
}

// ReminderID returns the owning reminder, AdHoc for none.
func (s *Session) ReminderID() string { return s.reminderID }

// Content returns what the overlay shows.
func (s *Session) Content() Content { return s.content }

// Deadline returns when the overlay closes on its own.
func (s *Session) Deadline() time.Time { return s.deadline }

// Handle returns the surface handle.
func (s *Session) Handle() Handle { return s.handle }

// Info is a snapshot of an open session.
type Info struct {
	ReminderID string
	Content    Content
	OpenedAt   time.Time
	Deadline   time.Time
}

// Manager owns the open overlay sessions.
type Manager struct {
	surface Surface
	newLoop func() SoundLoop
	clock   clockwork.Clock
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	seq      uint64

	// Close generations. An Open whose Create overlaps a close of its id,
	// or of everything, tracks nothing.
	allGen uint64
	idGen  map[string]uint64
}

type generation struct {
	all, id uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source for auto-close timers.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithSoundLoops sets the factory for per-session sound loops. Without one,
// overlays are silent.
func WithSoundLoops(fn func() SoundLoop) Option {
	return func(m *Manager) { m.newLoop = fn }
}

// NewManager creates a manager drawing on surface.
func NewManager(surface Surface, opts ...Option) *Manager {
	m := &Manager{
		surface:  surface,
		clock:    clockwork.NewRealClock(),
		log:      zerolog.Nop(),
		sessions: make(map[string]*Session),
		idGen:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open shows an overlay for req. The previous overlay of the same reminder
// is closed first; an AdHoc request closes all overlays. If the surface
// cannot be created nothing is tracked and the error is returned. If the
// overlay is dismissed or closed while its surface is being created, the
// surface is destroyed and the returned session is already closed.
func (m *Manager) Open(ctx context.Context, req Request) (*Session, error) {
	m.mu.Lock()
	var teardowns []func(bool)
	if req.ReminderID == AdHoc {
		teardowns = m.closeAllLocked()
	} else {
		teardowns = m.closeIDLocked(req.ReminderID)
	}
	gen := m.generationLocked(req.ReminderID)
	m.mu.Unlock()

	for _, teardown := range teardowns {
		teardown(false)
	}

	minutes := max(req.DisplayMinutes, 1)
	now := m.clock.Now()
	s := &Session{
		reminderID: req.ReminderID,
		content:    req.Content,
		openedAt:   now,
		deadline:   now.Add(time.Duration(minutes) * time.Minute),
	}

	handle, err := m.surface.Create(ctx, Spec{
		ReminderID:     req.ReminderID,
		Content:        req.Content,
		DisplayMinutes: minutes,
		OpenedAt:       s.openedAt,
		Deadline:       s.deadline,
		OnDismiss:      func() { m.Dismiss(s) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay surface: %w", err)
	}

	log := m.log.With().Str("reminder_id", req.ReminderID).Str("surface", string(handle)).Logger()

	m.mu.Lock()
	s.handle = handle
	if s.closed || m.generationLocked(req.ReminderID) != gen {
		s.closed = true
		m.mu.Unlock()
		log.Debug().Msg("overlay closed while opening")
		m.destroy(req.ReminderID, handle)
		return s, nil
	}

	// The close at the top of Open moved the generation, so no other Open
	// can have tracked this id since.
	m.seq++
	s.seq = m.seq
	m.sessions[req.ReminderID] = s

	if req.Sound.Enabled && m.newLoop != nil {
		s.loop = m.newLoop()
		s.loop.Start(req.Sound.Volume)
	}
	s.timer = m.clock.AfterFunc(time.Duration(minutes)*time.Minute, func() { m.expire(s) })
	m.mu.Unlock()

	log.Info().
		Int("display_minutes", minutes).
		Bool("sound", s.loop != nil).
		Msg("overlay opened")
	return s, nil
}

// CloseByID closes the overlay of reminder id, if any, including one whose
// surface is still being created.
func (m *Manager) CloseByID(id string) {
	m.mu.Lock()
	teardowns := m.closeIDLocked(id)
	m.mu.Unlock()

	for _, teardown := range teardowns {
		teardown(false)
	}
}

// CloseAll closes every overlay, AdHoc ones included. Overlays still being
// opened when it runs are never tracked.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	teardowns := m.closeAllLocked()
	m.mu.Unlock()

	for _, teardown := range teardowns {
		teardown(false)
	}
}

func (m *Manager) closeIDLocked(id string) []func(bool) {
	m.idGen[id]++
	if teardown := m.detachLocked(m.sessions[id]); teardown != nil {
		return []func(bool){teardown}
	}
	return nil
}

func (m *Manager) closeAllLocked() []func(bool) {
	m.allGen++
	teardowns := make([]func(bool), 0, len(m.sessions))
	for _, s := range m.sessions {
		teardowns = append(teardowns, m.detachLocked(s))
	}
	return teardowns
}

func (m *Manager) generationLocked(id string) generation {
	return generation{all: m.allGen, id: m.idGen[id]}
}

// Dismiss closes exactly s. It is what surfaces call on click or key press
// and is safe to call more than once.
func (m *Manager) Dismiss(s *Session) {
	m.mu.Lock()
	teardown := m.detachLocked(s)
	m.mu.Unlock()

	if teardown != nil {
		teardown(false)
	}
}

// IsOpen reports whether s is still tracked.
func (m *Manager) IsOpen(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !s.closed
}

// Has reports whether reminder id has an open overlay.
func (m *Manager) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Len returns the number of open overlays.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions returns the open overlays, oldest first.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	sort.Slice(open, func(i, j int) bool { return open[i].seq < open[j].seq })

	out := make([]Info, len(open))
	for i, s := range open {
		out[i] = Info{
			ReminderID: s.reminderID,
			Content:    s.content,
			OpenedAt:   s.openedAt,
			Deadline:   s.deadline,
		}
	}
	return out
}

func (m *Manager) expire(s *Session) {
	m.mu.Lock()
	teardown := m.detachLocked(s)
	m.mu.Unlock()

	if teardown != nil {
		m.log.Debug().Str("reminder_id", s.reminderID).Msg("overlay timed out")
		teardown(true)
	}
}

// detachLocked marks s closed and removes it from tracking. It returns the
// teardown to run without the lock held, or nil when s is nil or already
// closed. The teardown argument tells whether the auto-close timer itself
// triggered it, in which case the timer is not stopped again.
func (m *Manager) detachLocked(s *Session) func(fromTimer bool) {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if m.sessions[s.reminderID] == s {
		delete(m.sessions, s.reminderID)
	}

	// A session closed before its surface exists has no handle yet; Open
	// destroys the surface once Create returns.
	id, handle, timer, loop := s.reminderID, s.handle, s.timer, s.loop
	return func(fromTimer bool) {
		if timer != nil && !fromTimer {
			timer.Stop()
		}
		if loop != nil {
			loop.Stop()
		}
		m.destroy(id, handle)
	}
}

func (m *Manager) destroy(id string, handle Handle) {
	if handle == "" {
		return
	}
	log := m.log.With().Str("reminder_id", id).Str("surface", string(handle)).Logger()
	if err := m.surface.Destroy(handle); err != nil {
		log.Warn().Err(err).Msg("failed to destroy overlay surface")
		return
	}
	log.Debug().Msg("overlay closed")
}
