// Package sound repeats the notification sound while an overlay is open.
package sound

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultRepeat is the pause between two plays of the notification sound.
const DefaultRepeat = 5 * time.Second

// Player plays the notification sound once. Cancelling ctx must stop
// playback that is still running.
type Player interface {
	Play(ctx context.Context, volume int) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, volume int) error

// Play calls fn.
func (fn PlayerFunc) Play(ctx context.Context, volume int) error {
	return fn(ctx, volume)
}

// Loop plays a sound right away and then again every repeat period until
// stopped. At most one loop runs per Loop value.
type Loop struct {
	player Player
	clock  clockwork.Clock
	every  time.Duration
	log    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithRepeat sets the pause between plays.
func WithRepeat(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.every = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// NewLoop creates a stopped loop around p.
func NewLoop(p Player, opts ...Option) *Loop {
	l := &Loop{
		player: p,
		clock:  clockwork.NewRealClock(),
		every:  DefaultRepeat,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins playing at volume, clamped to 0..100. A running loop is
// stopped first.
func (l *Loop) Start(volume int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	ticker := l.clock.NewTicker(l.every)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go l.run(ctx, ticker, ClampVolume(volume), done)
}

// Stop ends the loop and any playback in flight. It is safe to call on a
// stopped loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

// Running reports whether the loop is playing.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done = nil, nil
}

func (l *Loop) run(ctx context.Context, ticker clockwork.Ticker, volume int, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	l.play(ctx, volume)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.play(ctx, volume)
		}
	}
}

func (l *Loop) play(ctx context.Context, volume int) {
	if err := l.player.Play(ctx, volume); err != nil && ctx.Err() == nil {
		l.log.Warn().Err(err).Int("volume", volume).Msg("sound playback failed")
	}
}

// ClampVolume limits v to 0..100.
func ClampVolume(v int) int {
	return min(max(v, 0), 100)
}
