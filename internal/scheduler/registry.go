package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/notexe/focus-reminder/internal/reminder"
)

// DefaultCheckInterval is how often fixed-time reminders compare the wall clock.
const DefaultCheckInterval = time.Minute

// Fire is one trigger of a reminder.
type Fire struct {
	ReminderID     string
	Message        string
	Icon           string
	Color          string
	DisplayMinutes int
	At             time.Time
}

// Dispatcher receives fires. Errors are logged by the registry and never
// stop the timer that produced them.
type Dispatcher interface {
	Dispatch(ctx context.Context, f Fire) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, f Fire) error

// Dispatch calls fn.
func (fn DispatcherFunc) Dispatch(ctx context.Context, f Fire) error {
	return fn(ctx, f)
}

// timer is the live schedule of one reminder.
type timer struct {
	def    reminder.Definition
	ticker clockwork.Ticker
	cancel context.CancelFunc
	every  time.Duration
	fixed  bool
}

// Registry owns one timer per reminder id.
type Registry struct {
	dispatcher Dispatcher
	clock      clockwork.Clock
	log        zerolog.Logger
	checkEvery time.Duration
	location   *time.Location

	mu        sync.Mutex
	timers    map[string]*timer
	lastFired map[string]string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithLocation sets the zone fixed times are read in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.location = loc }
}

// WithCheckInterval overrides the fixed-time check period.
func WithCheckInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.checkEvery = d
		}
	}
}

// New creates an empty registry that hands fires to d.
func New(d Dispatcher, opts ...Option) *Registry {
	r := &Registry{
		dispatcher: d,
		clock:      clockwork.NewRealClock(),
		log:        zerolog.Nop(),
		checkEvery: DefaultCheckInterval,
		location:   time.Local,
		timers:     make(map[string]*timer),
		lastFired:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule replaces whatever timer def.ID had with one derived from def.
// A disabled or malformed definition leaves no timer behind.
func (r *Registry) Schedule(def reminder.Definition) {
	def = def.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(def.ID)

	if !def.Enabled {
		return
	}
	if def.ID == "" {
		r.log.Warn().Msg("ignoring reminder without id")
		return
	}

	t := &timer{def: def}
	switch def.Mode {
	case reminder.ModeInterval:
		t.every = IntervalPeriod(def.IntervalMinutes)
	case reminder.ModeFixedTimes:
		t.def.Times = clockTimes(def.Times)
		if len(t.def.Times) == 0 {
			r.log.Warn().Str("reminder_id", def.ID).Msg("fixed-time reminder has no times, not scheduling")
			return
		}
		t.every = r.checkEvery
		t.fixed = true
	default:
		r.log.Warn().Str("reminder_id", def.ID).Str("mode", string(def.Mode)).Msg("unknown reminder mode, not scheduling")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.ticker = r.clock.NewTicker(t.every)
	r.timers[def.ID] = t

	r.log.Debug().
		Str("reminder_id", def.ID).
		Str("mode", string(def.Mode)).
		Dur("every", t.every).
		Msg("reminder scheduled")

	go r.run(ctx, t)
}

// Cancel stops the timer for id and forgets its dedup memo. Unknown ids are ignored.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(id)
}

// CancelAll stops every timer.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.timers {
		t.stop()
		delete(r.timers, id)
	}
	clear(r.lastFired)
	r.log.Debug().Msg("all reminders cancelled")
}

// Active reports whether id has a live timer.
func (r *Registry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[id]
	return ok
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// LastFired returns the "YYYY-MM-DD HH:MM" minute of the last fixed-time
// fire for id.
func (r *Registry) LastFired(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.lastFired[id]
	return key, ok
}

func (r *Registry) cancelLocked(id string) {
	if t, ok := r.timers[id]; ok {
		t.stop()
		delete(r.timers, id)
		r.log.Debug().Str("reminder_id", id).Msg("reminder cancelled")
	}
	delete(r.lastFired, id)
}

func (t *timer) stop() {
	t.cancel()
	t.ticker.Stop()
}

func (r *Registry) run(ctx context.Context, t *timer) {
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-t.ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			r.tick(ctx, t, at)
		}
	}
}

// tick handles one timer expiry. It only fires while t is still the live
// timer for its id, so a tick racing with Cancel or Schedule is dropped.
func (r *Registry) tick(ctx context.Context, t *timer, at time.Time) {
	if t.fixed {
		if !r.claimFixed(t, at.In(r.location)) {
			return
		}
	} else if !r.current(t) {
		return
	}

	r.fire(context.WithoutCancel(ctx), t.def, at)
}

func (r *Registry) current(t *timer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timers[t.def.ID] == t
}

// claimFixed records the minute of now as fired for t's reminder when it
// matches one of its times and has not fired yet. The memo carries the date
// so the same time fires again the next day.
func (r *Registry) claimFixed(t *timer, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.def.ID
	if r.timers[id] != t {
		return false
	}
	if !slices.Contains(t.def.Times, reminder.MinuteKey(now)) {
		return false
	}
	key := memoKey(now)
	if r.lastFired[id] == key {
		return false
	}
	r.lastFired[id] = key
	return true
}

// clockTimes normalizes times and drops entries that are not "HH:MM".
func clockTimes(times []string) []string {
	return slices.DeleteFunc(reminder.NormalizeTimes(times), func(t string) bool {
		_, _, err := reminder.ParseClock(t)
		return err != nil
	})
}

func memoKey(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func (r *Registry) fire(ctx context.Context, def reminder.Definition, at time.Time) {
	log := r.log.With().Str("reminder_id", def.ID).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Err(fmt.Errorf("panic: %v", p)).Msg("dispatch panicked")
		}
	}()

	f := Fire{
		ReminderID:     def.ID,
		Message:        def.Message,
		Icon:           def.Icon,
		Color:          def.Color,
		DisplayMinutes: max(def.DisplayMinutes, reminder.DefaultDisplayMinutes),
		At:             at,
	}
	if f.Icon == "" {
		f.Icon = reminder.DefaultIcon
	}

	log.Info().Time("at", at).Msg("reminder fired")
	if err := r.dispatcher.Dispatch(ctx, f); err != nil {
		log.Error().Err(err).Msg("dispatch failed")
	}
}

// IntervalPeriod converts an interval in minutes to a ticker period,
// never shorter than one minute.
func IntervalPeriod(minutes int) time.Duration {
	return time.Duration(max(minutes, reminder.MinInterval)) * time.Minute
}
