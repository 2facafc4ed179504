// Package dispatch turns a reminder fire into a notification and an
// overlay.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/focus-reminder/internal/notify"
	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
	"github.com/notexe/focus-reminder/internal/scheduler"
)

// DefaultTitle is the notification title.
const DefaultTitle = "Focus Reminder"

// DefaultSettingsTimeout bounds the sound settings lookup on each fire.
const DefaultSettingsTimeout = 2 * time.Second

// SettingsSource provides the sound settings current at fire time.
type SettingsSource interface {
	SoundSettings(ctx context.Context) (reminder.SoundSettings, error)
}

// Opener shows overlays.
type Opener interface {
	Open(ctx context.Context, req overlay.Request) (*overlay.Session, error)
}

// Dispatcher implements scheduler.Dispatcher.
type Dispatcher struct {
	overlays Opener
	settings SettingsSource
	notifier notify.Notifier
	title    string
	timeout  time.Duration
	log      zerolog.Logger
}

var _ scheduler.Dispatcher = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSettings sets where sound settings are read from. Without one the
// defaults are used.
func WithSettings(s SettingsSource) Option {
	return func(d *Dispatcher) { d.settings = s }
}

// WithNotifier sets the system notification channel.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithTitle sets the notification title.
func WithTitle(title string) Option {
	return func(d *Dispatcher) {
		if title != "" {
			d.title = title
		}
	}
}

// WithSettingsTimeout bounds the settings lookup.
func WithSettingsTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New creates a dispatcher that opens overlays through overlays.
func New(overlays Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		overlays: overlays,
		notifier: notify.Multi{},
		title:    DefaultTitle,
		timeout:  DefaultSettingsTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch shows the notification for f and opens its overlay. Only an
// overlay failure is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, f scheduler.Fire) error {
	return d.show(ctx, f.ReminderID, overlay.Content{
		Icon:    f.Icon,
		Message: f.Message,
		Color:   f.Color,
	}, f.DisplayMinutes)
}

// Test shows an overlay that belongs to no reminder. It replaces every open
// overlay.
func (d *Dispatcher) Test(ctx context.Context, content overlay.Content, displayMinutes int) error {
	return d.show(ctx, overlay.AdHoc, content, displayMinutes)
}

func (d *Dispatcher) show(ctx context.Context, id string, content overlay.Content, displayMinutes int) error {
	log := d.log.With().Str("reminder_id", id).Logger()

	if content.Icon == "" {
		content.Icon = reminder.DefaultIcon
	}
	if content.Color == "" {
		content.Color = reminder.DefaultColor
	}

	sound := d.soundSettings(ctx, log)
	req := overlay.Request{
		ReminderID:     id,
		Content:        content,
		DisplayMinutes: max(displayMinutes, reminder.DefaultDisplayMinutes),
		Sound:          overlay.Sound{Enabled: sound.Enabled, Volume: sound.Volume},
	}

	n := notify.Notification{
		Title:  d.title,
		Body:   content.Icon + " " + content.Message,
		Silent: !sound.Enabled,
		OnClick: func() {
			if _, err := d.overlays.Open(context.Background(), req); err != nil {
				log.Warn().Err(err).Msg("failed to reopen overlay from notification")
			}
		},
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		if errors.Is(err, notify.ErrUnsupported) {
			log.Debug().Msg("system notifications unavailable")
		} else {
			log.Warn().Err(err).Msg("failed to show notification")
		}
	}

	if _, err := d.overlays.Open(ctx, req); err != nil {
		return fmt.Errorf("failed to open overlay: %w", err)
	}
	return nil
}

func (d *Dispatcher) soundSettings(ctx context.Context, log zerolog.Logger) reminder.SoundSettings {
	if d.settings == nil {
		return reminder.DefaultSoundSettings()
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	s, err := d.settings.SoundSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read sound settings, using defaults")
		return reminder.DefaultSoundSettings()
	}
	s.Volume = reminder.ClampVolume(s.Volume)
	return s
}
