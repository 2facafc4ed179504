package sound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerFallsBackToBeepWithoutFile(t *testing.T) {
	p, err := NewPlayer(PlayerPaplay, "")
	require.NoError(t, err)
	assert.IsType(t, BeepPlayer{}, p)

	p, err = NewPlayer(PlayerBeep, "/tmp/alarm.mp3")
	require.NoError(t, err)
	assert.IsType(t, BeepPlayer{}, p)
}

func TestNewPlayerRejectsUnknownName(t *testing.T) {
	_, err := NewPlayer("vlc", "/tmp/alarm.mp3")
	assert.ErrorContains(t, err, "unknown sound player")
}

func TestCommandPlayerArgs(t *testing.T) {
	tests := []struct {
		command string
		volume  int
		want    []string
	}{
		{PlayerPaplay, 50, []string{"--volume=32768", "alarm.mp3"}},
		{PlayerPaplay, 100, []string{"--volume=65536", "alarm.mp3"}},
		{PlayerAfplay, 30, []string{"-v", "0.30", "alarm.mp3"}},
		{PlayerFfplay, 80, []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", "80", "alarm.mp3"}},
	}

	for _, tt := range tests {
		p := &CommandPlayer{Command: tt.command, File: "alarm.mp3"}
		assert.Equal(t, tt.want, p.args(tt.volume), tt.command)
	}
}

func TestCommandPlayerReportsMissingBinary(t *testing.T) {
	p := &CommandPlayer{Command: "definitely-not-a-sound-player", File: "alarm.mp3"}
	assert.Error(t, p.Play(context.Background(), 50))
}

func TestBeepPlayerSilentAtZeroVolume(t *testing.T) {
	assert.NoError(t, BeepPlayer{}.Play(context.Background(), 0))
}
