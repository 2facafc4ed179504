package sound

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/gen2brain/beeep"
)

// Player names accepted by NewPlayer.
const (
	PlayerAuto   = "auto"
	PlayerBeep   = "beep"
	PlayerPaplay = "paplay"
	PlayerAfplay = "afplay"
	PlayerFfplay = "ffplay"
)

// ErrNoPlayer is returned when no command line player is available.
var ErrNoPlayer = errors.New("no sound player available")

// NewPlayer returns the player for name. Without a sound file only the
// system beep is possible.
func NewPlayer(name, file string) (Player, error) {
	if name == PlayerBeep || file == "" {
		return BeepPlayer{}, nil
	}

	if name == "" || name == PlayerAuto {
		detected, err := detectPlayer()
		if err != nil {
			return nil, err
		}
		name = detected
	}

	switch name {
	case PlayerPaplay, PlayerAfplay, PlayerFfplay:
		return &CommandPlayer{Command: name, File: file}, nil
	default:
		return nil, fmt.Errorf("unknown sound player: %s (supported: %s, %s, %s, %s, %s)",
			name, PlayerAuto, PlayerBeep, PlayerPaplay, PlayerAfplay, PlayerFfplay)
	}
}

func detectPlayer() (string, error) {
	candidates := []string{PlayerPaplay, PlayerFfplay}
	if runtime.GOOS == "darwin" {
		candidates = []string{PlayerAfplay, PlayerFfplay}
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoPlayer, strings.Join(candidates, ", "))
}

// CommandPlayer plays File with an external audio player.
type CommandPlayer struct {
	Command string
	File    string
}

// Play runs the player and waits for it. Cancelling ctx kills the process.
func (p *CommandPlayer) Play(ctx context.Context, volume int) error {
	args := p.args(ClampVolume(volume))
	out, err := exec.CommandContext(ctx, p.Command, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", p.Command, err, msg)
		}
		return fmt.Errorf("%s failed: %w", p.Command, err)
	}
	return nil
}

func (p *CommandPlayer) args(volume int) []string {
	switch p.Command {
	case PlayerPaplay:
		// paplay volume is linear, 65536 is 100%.
		return []string{"--volume=" + strconv.Itoa(volume*65536/100), p.File}
	case PlayerAfplay:
		return []string{"-v", strconv.FormatFloat(float64(volume)/100, 'f', 2, 64), p.File}
	case PlayerFfplay:
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet",
			"-volume", strconv.Itoa(volume), p.File}
	default:
		return []string{p.File}
	}
}

// BeepPlayer sounds the system beep. Volume only distinguishes silent from
// audible.
type BeepPlayer struct{}

// Play beeps once unless volume is zero.
func (BeepPlayer) Play(ctx context.Context, volume int) error {
	if volume <= 0 || ctx.Err() != nil {
		return nil
	}
	if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
		return fmt.Errorf("beep failed: %w", err)
	}
	return nil
}
