package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/focus-reminder/internal/reminder"
)

const (
	waitFor = time.Second
	poll    = 5 * time.Millisecond
	quiet   = 60 * time.Millisecond
)

type recorder struct {
	mu    sync.Mutex
	fires []Fire
	err   error
	hook  func(Fire)
}

func (r *recorder) Dispatch(_ context.Context, f Fire) error {
	r.mu.Lock()
	r.fires = append(r.fires, f)
	hook, err := r.hook, r.err
	r.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

func (r *recorder) last() Fire {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fires[len(r.fires)-1]
}

func intervalReminder(id string, minutes int) reminder.Definition {
	return reminder.Definition{
		ID:              id,
		Message:         "Drink water",
		Icon:            "💧",
		Color:           "#3b82f6",
		Mode:            reminder.ModeInterval,
		IntervalMinutes: minutes,
		DisplayMinutes:  1,
		Enabled:         true,
	}
}

func fixedReminder(id string, times ...string) reminder.Definition {
	return reminder.Definition{
		ID:             id,
		Message:        "Stand up",
		Icon:           "🧘",
		Color:          "#22c55e",
		Mode:           reminder.ModeFixedTimes,
		Times:          times,
		DisplayMinutes: 2,
		Enabled:        true,
	}
}

func newTestRegistry(t *testing.T, d Dispatcher, start time.Time) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	r := New(d, WithClock(clock), WithLocation(time.UTC))
	t.Cleanup(r.CancelAll)
	return r, clock
}

func waitForFires(t *testing.T, rec *recorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.count() == n }, waitFor, poll,
		"expected %d fires", n)
}

func assertNoMoreFires(t *testing.T, rec *recorder, n int) {
	t.Helper()
	assert.Never(t, func() bool { return rec.count() > n }, quiet, poll,
		"expected no more than %d fires", n)
}

var morning = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func TestScheduleDisabledLeavesNoTimer(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 1)
	def.Enabled = false
	r.Schedule(def)

	assert.False(t, r.Active("r1"))
	assert.Equal(t, 0, r.Len())

	clock.Advance(5 * time.Minute)
	assertNoMoreFires(t, rec, 0)
}

func TestScheduleDisablingCancelsLiveTimer(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 1)
	r.Schedule(def)
	require.True(t, r.Active("r1"))

	def.Enabled = false
	r.Schedule(def)
	assert.False(t, r.Active("r1"))

	clock.Advance(time.Minute)
	assertNoMoreFires(t, rec, 0)
}

func TestScheduleReplacesInsteadOfAdding(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	for i := 0; i < 5; i++ {
		r.Schedule(intervalReminder("r1", 1))
	}
	assert.Equal(t, 1, r.Len())

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)
	assertNoMoreFires(t, rec, 1)
}

func TestIntervalFiresEveryPeriodUntilCancelled(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	r.Schedule(intervalReminder("r1", 30))

	clock.Advance(29 * time.Minute)
	assertNoMoreFires(t, rec, 0)

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)

	for i := 2; i <= 4; i++ {
		clock.Advance(30 * time.Minute)
		waitForFires(t, rec, i)
	}

	f := rec.last()
	assert.Equal(t, "r1", f.ReminderID)
	assert.Equal(t, "Drink water", f.Message)
	assert.Equal(t, "💧", f.Icon)
	assert.Equal(t, "#3b82f6", f.Color)
	assert.Equal(t, 1, f.DisplayMinutes)

	r.Cancel("r1")
	assert.False(t, r.Active("r1"))

	clock.Advance(30 * time.Minute)
	assertNoMoreFires(t, rec, 4)
}

func TestIntervalIsClampedToOneMinute(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		rec := &recorder{}
		r, clock := newTestRegistry(t, rec, morning)

		r.Schedule(intervalReminder("r1", minutes))
		require.True(t, r.Active("r1"))

		clock.Advance(59 * time.Second)
		assertNoMoreFires(t, rec, 0)

		clock.Advance(time.Second)
		waitForFires(t, rec, 1)
	}
}

func TestEditingIntervalTakesEffectImmediately(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 30)
	r.Schedule(def)
	clock.Advance(10 * time.Minute)

	def.IntervalMinutes = 5
	r.Schedule(def)

	clock.Advance(4 * time.Minute)
	assertNoMoreFires(t, rec, 0)

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)

	// The old 30 minute timer would have fired 30 minutes after the first schedule.
	clock.Advance(5 * time.Minute)
	waitForFires(t, rec, 2)
	clock.Advance(5 * time.Minute)
	waitForFires(t, rec, 3)
	assertNoMoreFires(t, rec, 3)
}

func TestEditingMessageUsesNewContent(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 1)
	r.Schedule(def)
	def.Message = "Stretch"
	def.Icon = ""
	def.DisplayMinutes = 0
	r.Schedule(def)

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)

	f := rec.last()
	assert.Equal(t, "Stretch", f.Message)
	assert.Equal(t, reminder.DefaultIcon, f.Icon)
	assert.Equal(t, 1, f.DisplayMinutes)
}

func TestScheduleCopiesDefinition(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	def := fixedReminder("r1", "09:00")
	r.Schedule(def)
	def.Times[0] = "10:00"

	tm := r.timers["r1"]
	require.NotNil(t, tm)
	assert.True(t, r.claimFixed(tm, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
}

func TestFixedTimeFiresAtMatchingMinute(t *testing.T) {
	rec := &recorder{}
	start := time.Date(2026, 10, 15, 8, 59, 30, 0, time.UTC)
	r, clock := newTestRegistry(t, rec, start)

	r.Schedule(fixedReminder("r1", "09:00"))
	require.True(t, r.Active("r1"))

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)

	f := rec.last()
	assert.Equal(t, "r1", f.ReminderID)
	assert.Equal(t, 2, f.DisplayMinutes)

	key, ok := r.LastFired("r1")
	require.True(t, ok)
	assert.Equal(t, "2026-10-15 09:00", key)
}

func TestFixedTimeDedupWithinSameMinute(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	r.Schedule(fixedReminder("r1", "09:00", "13:30"))
	tm := r.timers["r1"]
	require.NotNil(t, tm)

	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 1, 0, time.UTC)

	r.tick(ctx, tm, at.Add(-2*time.Minute))
	assert.Equal(t, 0, rec.count())

	r.tick(ctx, tm, at)
	r.tick(ctx, tm, at.Add(45*time.Second))
	assert.Equal(t, 1, rec.count(), "two ticks in the same minute must fire once")

	r.tick(ctx, tm, at.Add(time.Minute))
	assert.Equal(t, 1, rec.count())

	r.tick(ctx, tm, time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC))
	assert.Equal(t, 2, rec.count())

	// Next day the same minute fires again.
	r.tick(ctx, tm, at.Add(24*time.Hour))
	assert.Equal(t, 3, rec.count())
}

func TestFixedTimeReadsClockInConfiguredLocation(t *testing.T) {
	rec := &recorder{}
	zone := time.FixedZone("UTC+2", 2*60*60)
	r := New(rec, WithClock(clockwork.NewFakeClockAt(morning)), WithLocation(zone))
	t.Cleanup(r.CancelAll)

	r.Schedule(fixedReminder("r1", "09:00"))
	tm := r.timers["r1"]

	r.tick(context.Background(), tm, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, rec.count())

	r.tick(context.Background(), tm, time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, rec.count())
}

func TestFixedTimeWithoutTimesIsNotScheduled(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	r.Schedule(fixedReminder("r1"))
	assert.False(t, r.Active("r1"))

	r.Schedule(fixedReminder("r2", "not a time"))
	assert.False(t, r.Active("r2"))
}

func TestFixedTimeSkipsUnparseableEntries(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	r.Schedule(fixedReminder("r1", "lunch", "9:00"))
	require.True(t, r.Active("r1"))
	assert.Equal(t, []string{"09:00"}, r.timers["r1"].def.Times)
}

func TestUnknownModeAndMissingIDAreIgnored(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 5)
	def.Mode = "weekly"
	r.Schedule(def)
	assert.False(t, r.Active("r1"))

	r.Schedule(intervalReminder("", 5))
	assert.Equal(t, 0, r.Len())
}

func TestCancelClearsDedupMemo(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	nine := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	r.Schedule(fixedReminder("r1", "09:00"))
	tm := r.timers["r1"]
	require.True(t, r.claimFixed(tm, nine))

	r.Cancel("r1")
	_, ok := r.LastFired("r1")
	assert.False(t, ok)

	// A stale timer can no longer claim anything.
	assert.False(t, r.claimFixed(tm, nine))
}

func TestFixedTimeSingleEntryFiresEveryDay(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	r.Schedule(fixedReminder("r1", "9:00"))
	tm := r.timers["r1"]

	nine := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		r.tick(context.Background(), tm, nine.AddDate(0, 0, day))
		r.tick(context.Background(), tm, nine.AddDate(0, 0, day).Add(30*time.Second))
	}
	assert.Equal(t, 3, rec.count())
}

func TestCancelUnknownIDIsNoop(t *testing.T) {
	r, _ := newTestRegistry(t, &recorder{}, morning)

	assert.NotPanics(t, func() {
		r.Cancel("missing")
		r.Cancel("")
		r.CancelAll()
	})
}

func TestCancelAllStopsEverything(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	r.Schedule(intervalReminder("a", 1))
	r.Schedule(intervalReminder("b", 2))
	r.Schedule(fixedReminder("c", "08:01"))
	require.Equal(t, 3, r.Len())

	r.CancelAll()
	assert.Equal(t, 0, r.Len())

	clock.Advance(3 * time.Minute)
	assertNoMoreFires(t, rec, 0)
}

func TestDispatchErrorKeepsTimerAlive(t *testing.T) {
	rec := &recorder{err: errors.New("surface unavailable")}
	r, clock := newTestRegistry(t, rec, morning)

	r.Schedule(intervalReminder("r1", 1))

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)
	clock.Advance(time.Minute)
	waitForFires(t, rec, 2)

	assert.True(t, r.Active("r1"))
}

func TestDispatchPanicKeepsTimerAlive(t *testing.T) {
	rec := &recorder{hook: func(Fire) { panic("boom") }}
	r, clock := newTestRegistry(t, rec, morning)

	r.Schedule(intervalReminder("r1", 1))

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)
	clock.Advance(time.Minute)
	waitForFires(t, rec, 2)
}

func TestCancelFromInsideDispatch(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)
	rec.hook = func(f Fire) { r.Cancel(f.ReminderID) }

	r.Schedule(intervalReminder("r1", 1))

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)
	require.Eventually(t, func() bool { return !r.Active("r1") }, waitFor, poll)

	clock.Advance(time.Minute)
	assertNoMoreFires(t, rec, 1)
}

func TestStaleTickIsDropped(t *testing.T) {
	rec := &recorder{}
	r, _ := newTestRegistry(t, rec, morning)

	r.Schedule(intervalReminder("r1", 1))
	old := r.timers["r1"]
	r.Schedule(intervalReminder("r1", 1))

	r.tick(context.Background(), old, morning.Add(time.Minute))
	assert.Equal(t, 0, rec.count())
}

func TestAddThenDisableScenario(t *testing.T) {
	rec := &recorder{}
	r, clock := newTestRegistry(t, rec, morning)

	def := intervalReminder("r1", 1)
	r.Schedule(def)

	clock.Advance(time.Minute)
	waitForFires(t, rec, 1)
	assert.Equal(t, "r1", rec.last().ReminderID)

	def.Enabled = false
	r.Schedule(def)

	clock.Advance(time.Minute)
	assertNoMoreFires(t, rec, 1)
}

func TestIntervalPeriod(t *testing.T) {
	assert.Equal(t, time.Minute, IntervalPeriod(0))
	assert.Equal(t, time.Minute, IntervalPeriod(-3))
	assert.Equal(t, 45*time.Minute, IntervalPeriod(45))
}
