// Package app is the boundary between the user-facing surfaces (overlay
// host, control server) and the reminder core. Every change to a reminder
// is persisted first and then pushed to the scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
)

// TestMessage is shown by Test when no message is given.
const TestMessage = "Test reminder"

// PreviewTimeout bounds a PlaySound preview.
const PreviewTimeout = 15 * time.Second

// ErrNoPlayer is returned by PlaySound when no sound player is configured.
var ErrNoPlayer = errors.New("no sound player configured")

// Store persists reminders and settings.
type Store interface {
	Add(ctx context.Context, d reminder.Definition) (*reminder.Definition, error)
	Get(ctx context.Context, id string) (*reminder.Definition, error)
	List(ctx context.Context) ([]reminder.Definition, error)
	Update(ctx context.Context, id string, fields reminder.UpdateFields) (*reminder.Definition, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*reminder.Definition, error)
	Delete(ctx context.Context, id string) error
	SoundSettings(ctx context.Context) (reminder.SoundSettings, error)
	SetSoundSettings(ctx context.Context, s reminder.SoundSettings) error
	GlobalEnabled(ctx context.Context) (bool, error)
	SetGlobalEnabled(ctx context.Context, enabled bool) error
}

// Scheduler owns the live timers.
type Scheduler interface {
	Schedule(def reminder.Definition)
	Cancel(id string)
	CancelAll()
}

// Overlays closes open overlays.
type Overlays interface {
	CloseByID(id string)
	CloseAll()
}

// Tester opens an overlay that belongs to no reminder.
type Tester interface {
	Test(ctx context.Context, content overlay.Content, displayMinutes int) error
}

// Player plays the notification sound once.
type Player interface {
	Play(ctx context.Context, volume int) error
}

// Observer is told the full reminder list after every change.
type Observer func(reminders []reminder.Definition, globalEnabled bool)

// Service applies user actions.
type Service struct {
	store    Store
	sched    Scheduler
	overlays Overlays
	tester   Tester
	player   Player
	log      zerolog.Logger

	// mu serialises mutations so the scheduler sees them in store order.
	mu        sync.Mutex
	obsMu     sync.Mutex
	observers []Observer
}

// Option configures a Service.
type Option func(*Service)

// WithPlayer sets the player used for sound previews.
func WithPlayer(p Player) Option {
	return func(s *Service) { s.player = p }
}

// NewService wires the service.
func NewService(store Store, sched Scheduler, overlays Overlays, tester Tester, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sched:    sched,
		overlays: overlays,
		tester:   tester,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for list changes.
func (s *Service) Subscribe(fn Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start schedules every stored reminder when reminders are globally on.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}

	on := s.globalEnabled(ctx)
	if on {
		for _, d := range list {
			s.sched.Schedule(d)
		}
	}

	s.log.Info().Int("reminders", len(list)).Bool("enabled", on).Msg("reminders loaded")
	s.publish(list, on)
	return nil
}

// List returns every stored reminder.
func (s *Service) List(ctx context.Context) ([]reminder.Definition, error) {
	return s.store.List(ctx)
}

// Get returns one reminder.
func (s *Service) Get(ctx context.Context, id string) (*reminder.Definition, error) {
	return s.store.Get(ctx, id)
}

// Add stores and schedules a new reminder.
func (s *Service) Add(ctx context.Context, d reminder.Definition) (*reminder.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.store.Add(ctx, d)
	if err != nil {
		return nil, err
	}
	if s.globalEnabled(ctx) {
		s.sched.Schedule(*added)
	}

	s.log.Info().Str("reminder_id", added.ID).Str("schedule", added.Schedule()).Msg("reminder added")
	s.changed(ctx)
	return added, nil
}

// Update edits a reminder and replaces its timer.
func (s *Service) Update(ctx context.Context, id string, fields reminder.UpdateFields) (*reminder.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.reschedule(ctx, *updated)

	s.log.Info().Str("reminder_id", id).Msg("reminder updated")
	s.changed(ctx)
	return updated, nil
}

// SetEnabled switches one reminder on or off.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*reminder.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.store.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, err
	}
	s.reschedule(ctx, *updated)

	s.log.Info().Str("reminder_id", id).Bool("enabled", enabled).Msg("reminder toggled")
	s.changed(ctx)
	return updated, nil
}

// Delete removes a reminder, its timer and its overlay.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.sched.Cancel(id)
	s.overlays.CloseByID(id)

	s.log.Info().Str("reminder_id", id).Msg("reminder deleted")
	s.changed(ctx)
	return nil
}

// GlobalEnabled reports the global toggle.
func (s *Service) GlobalEnabled(ctx context.Context) (bool, error) {
	return s.store.GlobalEnabled(ctx)
}

// SetGlobalEnabled switches all reminders. Turning them off cancels every
// timer; turning them on schedules the enabled ones again.
func (s *Service) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetGlobalEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("failed to save global toggle: %w", err)
	}

	list, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}

	s.sched.CancelAll()
	if enabled {
		for _, d := range list {
			s.sched.Schedule(d)
		}
	}

	s.log.Info().Bool("enabled", enabled).Msg("reminders toggled globally")
	s.publish(list, enabled)
	return nil
}

// Test shows content in an overlay that belongs to no reminder.
func (s *Service) Test(ctx context.Context, content overlay.Content, displayMinutes int) error {
	if content.Message == "" {
		content.Message = TestMessage
	}
	if err := s.tester.Test(ctx, content, displayMinutes); err != nil {
		return fmt.Errorf("failed to show test reminder: %w", err)
	}
	return nil
}

// TestReminder previews a stored reminder without touching its timer.
func (s *Service) TestReminder(ctx context.Context, id string) error {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Test(ctx, overlay.Content{Icon: d.Icon, Message: d.Message, Color: d.Color}, d.DisplayMinutes)
}

// CloseOverlay closes the overlay of one reminder.
func (s *Service) CloseOverlay(id string) {
	s.overlays.CloseByID(id)
}

// CloseAllOverlays closes every overlay.
func (s *Service) CloseAllOverlays() {
	s.overlays.CloseAll()
}

// SoundSettings returns the stored sound settings.
func (s *Service) SoundSettings(ctx context.Context) (reminder.SoundSettings, error) {
	return s.store.SoundSettings(ctx)
}

// PlaySound plays the notification sound once at volume, so a volume can be
// tried before it is saved.
func (s *Service) PlaySound(ctx context.Context, volume int) error {
	if s.player == nil {
		return ErrNoPlayer
	}

	ctx, cancel := context.WithTimeout(ctx, PreviewTimeout)
	defer cancel()

	volume = reminder.ClampVolume(volume)
	if err := s.player.Play(ctx, volume); err != nil {
		return fmt.Errorf("failed to play sound: %w", err)
	}
	s.log.Debug().Int("volume", volume).Msg("sound previewed")
	return nil
}

// SetSoundSettings stores sound settings. They apply from the next fire.
func (s *Service) SetSoundSettings(ctx context.Context, settings reminder.SoundSettings) (reminder.SoundSettings, error) {
	settings.Volume = reminder.ClampVolume(settings.Volume)
	if err := s.store.SetSoundSettings(ctx, settings); err != nil {
		return settings, fmt.Errorf("failed to save sound settings: %w", err)
	}
	s.log.Info().Bool("enabled", settings.Enabled).Int("volume", settings.Volume).Msg("sound settings saved")
	return settings, nil
}

// Shutdown cancels every timer and closes every overlay.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sched.CancelAll()
	s.overlays.CloseAll()
	s.log.Info().Msg("reminders stopped")
}

func (s *Service) reschedule(ctx context.Context, d reminder.Definition) {
	if s.globalEnabled(ctx) {
		// Schedule cancels a disabled reminder's timer.
		s.sched.Schedule(d)
		return
	}
	s.sched.Cancel(d.ID)
}

func (s *Service) globalEnabled(ctx context.Context) bool {
	on, err := s.store.GlobalEnabled(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read global toggle, assuming on")
		return true
	}
	return on
}

func (s *Service) changed(ctx context.Context) {
	list, err := s.store.List(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to reload reminders for observers")
		return
	}
	s.publish(list, s.globalEnabled(ctx))
}

func (s *Service) publish(list []reminder.Definition, on bool) {
	s.obsMu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(list, on)
	}
}
