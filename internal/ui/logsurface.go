package ui

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/notexe/focus-reminder/internal/overlay"
)

// LogSurface stands in for the overlay host when running headless. Each
// overlay becomes a log line; nothing can be clicked, so overlays close
// on their timer or through the control server.
type LogSurface struct {
	log zerolog.Logger

	mu   sync.Mutex
	next int
	open map[overlay.Handle]overlay.Spec
}

var _ overlay.Surface = (*LogSurface)(nil)

// NewLogSurface creates a surface that writes overlays to log.
func NewLogSurface(log zerolog.Logger) *LogSurface {
	return &LogSurface{log: log, open: make(map[overlay.Handle]overlay.Spec)}
}

// Create logs the overlay and returns its handle.
func (s *LogSurface) Create(ctx context.Context, spec overlay.Spec) (overlay.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.next++
	handle := overlay.Handle(fmt.Sprintf("log-%d", s.next))
	s.open[handle] = spec
	s.mu.Unlock()

	s.log.Info().
		Str("surface", string(handle)).
		Str("reminder_id", spec.ReminderID).
		Str("icon", spec.Content.Icon).
		Str("color", spec.Content.Color).
		Time("deadline", spec.Deadline).
		Msg(spec.Content.Message)
	return handle, nil
}

// Destroy forgets the overlay. Unknown handles are ignored.
func (s *LogSurface) Destroy(handle overlay.Handle) error {
	s.mu.Lock()
	spec, ok := s.open[handle]
	delete(s.open, handle)
	s.mu.Unlock()

	if ok {
		s.log.Info().Str("surface", string(handle)).Str("reminder_id", spec.ReminderID).Msg("overlay closed")
	}
	return nil
}

// Len returns the number of overlays shown and not yet destroyed.
func (s *LogSurface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
