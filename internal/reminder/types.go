package reminder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how a reminder repeats.
type Mode string

// Repeat modes. The fixed-time value keeps the name the settings file has
// always used.
const (
	ModeInterval   Mode = "interval"
	ModeFixedTimes Mode = "scheduled"
)

// Defaults applied by Normalize.
const (
	DefaultIcon           = "💧"
	DefaultColor          = "#8b5cf6"
	DefaultInterval       = 30
	DefaultDisplayMinutes = 1
	DefaultVolume         = 50

	MinInterval = 1
	MaxInterval = 1440
)

var (
	// ErrNotFound is returned when no reminder has the requested id.
	ErrNotFound = errors.New("reminder not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid reminder")
)

// Definition is the scheduling unit. The scheduler only ever sees copies.
//
// Only the field that matches Mode is read: IntervalMinutes for
// ModeInterval, Times for ModeFixedTimes. The other one is kept as stored so
// switching the mode back restores it.
type Definition struct {
	ID              string    `json:"id"`
	Message         string    `json:"message"`
	Icon            string    `json:"icon"`
	Color           string    `json:"color"`
	Mode            Mode      `json:"type"`
	IntervalMinutes int       `json:"interval,omitempty"`
	Times           []string  `json:"times,omitempty"`
	DisplayMinutes  int       `json:"displayMinutes"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SoundSettings is read at fire time.
type SoundSettings struct {
	Enabled bool `json:"soundEnabled"`
	Volume  int  `json:"soundVolume"`
}

// DefaultSoundSettings is used whenever the stored settings cannot be read.
func DefaultSoundSettings() SoundSettings {
	return SoundSettings{Enabled: true, Volume: DefaultVolume}
}

// NewID returns a fresh opaque reminder id.
func NewID() string {
	return uuid.NewString()
}

// ClampVolume limits v to 0..100.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Clone returns a deep copy so callers can hand definitions across goroutines.
func (d Definition) Clone() Definition {
	if d.Times != nil {
		d.Times = append([]string(nil), d.Times...)
	}
	return d
}

// Normalize fills in defaults and canonicalises the time list.
func (d *Definition) Normalize() {
	d.Message = strings.TrimSpace(d.Message)
	if strings.TrimSpace(d.Icon) == "" {
		d.Icon = DefaultIcon
	}
	if d.Color == "" {
		d.Color = DefaultColor
	}
	if d.DisplayMinutes <= 0 {
		d.DisplayMinutes = DefaultDisplayMinutes
	}
	if d.Mode == ModeInterval && d.IntervalMinutes == 0 {
		d.IntervalMinutes = DefaultInterval
	}
	d.Times = NormalizeTimes(d.Times)
}

// Validate reports the first problem with d, wrapped in ErrInvalid.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	if d.DisplayMinutes < 1 {
		return fmt.Errorf("%w: display minutes must be at least 1", ErrInvalid)
	}

	switch d.Mode {
	case ModeInterval:
		if d.IntervalMinutes < MinInterval || d.IntervalMinutes > MaxInterval {
			return fmt.Errorf("%w: interval must be between %d and %d minutes",
				ErrInvalid, MinInterval, MaxInterval)
		}
	case ModeFixedTimes:
		if len(d.Times) == 0 {
			return fmt.Errorf("%w: at least one reminder time is required", ErrInvalid)
		}
		for _, t := range d.Times {
			if _, _, err := ParseClock(t); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q (supported: %s, %s)",
			ErrInvalid, d.Mode, ModeInterval, ModeFixedTimes)
	}

	return nil
}

// ParseClock parses an "HH:MM" time of day. Single-digit hours are accepted.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}

// MinuteKey formats the wall-clock hour and minute of t as "HH:MM".
func MinuteKey(t time.Time) string {
	return t.Format("15:04")
}

// NormalizeTimes rewrites every parseable entry as "HH:MM", drops duplicates
// and sorts the result. Unparseable entries are kept so Validate can report them.
func NormalizeTimes(times []string) []string {
	if len(times) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(times))
	out := make([]string, 0, len(times))
	for _, raw := range times {
		key := strings.TrimSpace(raw)
		if h, m, err := ParseClock(key); err == nil {
			key = fmt.Sprintf("%02d:%02d", h, m)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Schedule returns a short human description of when d fires.
func (d Definition) Schedule() string {
	switch d.Mode {
	case ModeInterval:
		return fmt.Sprintf("every %d min", d.IntervalMinutes)
	case ModeFixedTimes:
		if len(d.Times) == 1 {
			return "daily at " + d.Times[0]
		}
		return fmt.Sprintf("%d times a day (%s)", len(d.Times), strings.Join(d.Times, ", "))
	default:
		return ""
	}
}
