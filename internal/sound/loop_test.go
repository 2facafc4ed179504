package sound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu      sync.Mutex
	volumes []int
	err     error
	block   bool
	aborted int
}

func (p *fakePlayer) Play(ctx context.Context, volume int) error {
	p.mu.Lock()
	p.volumes = append(p.volumes, volume)
	block, err := p.block, p.err
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		p.mu.Lock()
		p.aborted++
		p.mu.Unlock()
		return ctx.Err()
	}
	return err
}

func (p *fakePlayer) plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.volumes)
}

func (p *fakePlayer) lastVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumes[len(p.volumes)-1]
}

func waitPlays(t *testing.T, p *fakePlayer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.plays() == n }, time.Second, 5*time.Millisecond,
		"expected %d plays", n)
}

func neverMorePlays(t *testing.T, p *fakePlayer, n int) {
	t.Helper()
	assert.Never(t, func() bool { return p.plays() > n }, 60*time.Millisecond, 5*time.Millisecond)
}

func TestLoopPlaysImmediatelyThenRepeats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &fakePlayer{}
	l := NewLoop(p, WithClock(clock))
	t.Cleanup(l.Stop)

	l.Start(40)
	waitPlays(t, p, 1)
	assert.True(t, l.Running())

	clock.Advance(4 * time.Second)
	neverMorePlays(t, p, 1)

	clock.Advance(time.Second)
	waitPlays(t, p, 2)

	clock.Advance(DefaultRepeat)
	waitPlays(t, p, 3)
	assert.Equal(t, 40, p.lastVolume())
}

func TestLoopStopEndsRepeats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &fakePlayer{}
	l := NewLoop(p, WithClock(clock))

	l.Start(50)
	waitPlays(t, p, 1)

	l.Stop()
	assert.False(t, l.Running())

	clock.Advance(time.Minute)
	neverMorePlays(t, p, 1)
}

func TestLoopStopWhenNotStartedIsNoop(t *testing.T) {
	l := NewLoop(&fakePlayer{})

	assert.NotPanics(t, func() {
		l.Stop()
		l.Stop()
	})
	assert.False(t, l.Running())
}

func TestLoopRestartDoesNotLayer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &fakePlayer{}
	l := NewLoop(p, WithClock(clock))
	t.Cleanup(l.Stop)

	l.Start(30)
	waitPlays(t, p, 1)

	l.Start(70)
	waitPlays(t, p, 2)
	assert.Equal(t, 70, p.lastVolume())

	clock.Advance(DefaultRepeat)
	waitPlays(t, p, 3)
	neverMorePlays(t, p, 3)
}

func TestLoopClampsVolume(t *testing.T) {
	for in, want := range map[int]int{150: 100, -20: 0, 65: 65} {
		p := &fakePlayer{}
		l := NewLoop(p, WithClock(clockwork.NewFakeClock()))

		l.Start(in)
		waitPlays(t, p, 1)
		l.Stop()

		assert.Equal(t, want, p.lastVolume(), "volume %d", in)
	}
}

func TestLoopKeepsRetryingAfterPlaybackError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &fakePlayer{err: errors.New("NotAllowedError: autoplay blocked")}
	l := NewLoop(p, WithClock(clock))
	t.Cleanup(l.Stop)

	l.Start(50)
	waitPlays(t, p, 1)

	clock.Advance(DefaultRepeat)
	waitPlays(t, p, 2)
	assert.True(t, l.Running())
}

func TestLoopStopAbortsPlaybackInFlight(t *testing.T) {
	p := &fakePlayer{block: true}
	l := NewLoop(p, WithClock(clockwork.NewFakeClock()))

	l.Start(50)
	waitPlays(t, p, 1)

	l.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 1, p.aborted)
}

func TestLoopCustomRepeat(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := &fakePlayer{}
	l := NewLoop(p, WithClock(clock), WithRepeat(2*time.Second))
	t.Cleanup(l.Stop)

	l.Start(50)
	waitPlays(t, p, 1)

	clock.Advance(2 * time.Second)
	waitPlays(t, p, 2)
}

func TestClampVolume(t *testing.T) {
	assert.Equal(t, 0, ClampVolume(-1))
	assert.Equal(t, 100, ClampVolume(101))
	assert.Equal(t, 42, ClampVolume(42))
}
