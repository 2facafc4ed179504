package reminder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Settings keys.
const (
	settingSoundEnabled     = "sound_enabled"
	settingSoundVolume      = "sound_volume"
	settingRemindersEnabled = "reminders_enabled"
)

// Store provides SQLite-backed storage for reminder definitions and
// app settings.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at dbPath and
// ensures the tables exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			id               TEXT    PRIMARY KEY,
			message          TEXT    NOT NULL,
			icon             TEXT    NOT NULL DEFAULT '',
			color            TEXT    NOT NULL DEFAULT '',
			mode             TEXT    NOT NULL,
			interval_minutes INTEGER NOT NULL DEFAULT 0,
			times            TEXT    NOT NULL DEFAULT '[]',
			display_minutes  INTEGER NOT NULL DEFAULT 1,
			enabled          INTEGER NOT NULL DEFAULT 1,
			created_at       TEXT    NOT NULL,
			updated_at       TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create reminders table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a new reminder. An id is assigned when d.ID is empty.
func (s *Store) Add(ctx context.Context, d Definition) (*Definition, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = NewID()
	}

	now := s.now()
	d.CreatedAt = now
	d.UpdatedAt = now

	times, err := encodeTimes(d.Times)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, message, icon, color, mode, interval_minutes, times,
			display_minutes, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Message, d.Icon, d.Color, string(d.Mode), d.IntervalMinutes, times,
		d.DisplayMinutes, d.Enabled,
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert reminder: %w", err)
	}

	return &d, nil
}

// List returns all reminders in creation order.
func (s *Store) List(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, icon, color, mode, interval_minutes, times,
			display_minutes, enabled, created_at, updated_at
		FROM reminders ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// Get returns a single reminder by id.
func (s *Store) Get(ctx context.Context, id string) (*Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, message, icon, color, mode, interval_minutes, times,
			display_minutes, enabled, created_at, updated_at
		FROM reminders WHERE id = ?
	`, id)

	d, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return d, nil
}

// UpdateFields holds optional fields for a partial update.
type UpdateFields struct {
	Message         *string
	Icon            *string
	Color           *string
	Mode            *Mode
	IntervalMinutes *int
	Times           []string
	DisplayMinutes  *int
	Enabled         *bool
}

// Apply copies the set fields onto d.
func (f UpdateFields) Apply(d *Definition) {
	if f.Message != nil {
		d.Message = *f.Message
	}
	if f.Icon != nil {
		d.Icon = *f.Icon
	}
	if f.Color != nil {
		d.Color = *f.Color
	}
	if f.Mode != nil {
		d.Mode = *f.Mode
	}
	if f.IntervalMinutes != nil {
		d.IntervalMinutes = *f.IntervalMinutes
	}
	if f.Times != nil {
		d.Times = append([]string(nil), f.Times...)
	}
	if f.DisplayMinutes != nil {
		d.DisplayMinutes = *f.DisplayMinutes
	}
	if f.Enabled != nil {
		d.Enabled = *f.Enabled
	}
}

// Merge applies f to d and normalizes the result. Numbers the caller set
// explicitly are kept as given, so an out of range value fails Validate
// instead of turning into a default.
func (f UpdateFields) Merge(d *Definition) {
	f.Apply(d)
	d.Normalize()
	if f.IntervalMinutes != nil {
		d.IntervalMinutes = *f.IntervalMinutes
	}
	if f.DisplayMinutes != nil {
		d.DisplayMinutes = *f.DisplayMinutes
	}
}

// Update applies partial updates to a reminder and returns the result.
// The merged definition must still validate.
func (s *Store) Update(ctx context.Context, id string, fields UpdateFields) (*Definition, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields.Merge(d)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now()

	times, err := encodeTimes(d.Times)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET message = ?, icon = ?, color = ?, mode = ?,
			interval_minutes = ?, times = ?, display_minutes = ?, enabled = ?,
			updated_at = ?
		WHERE id = ?
	`, d.Message, d.Icon, d.Color, string(d.Mode), d.IntervalMinutes, times,
		d.DisplayMinutes, d.Enabled, d.UpdatedAt.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// SetEnabled toggles a reminder.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) (*Definition, error) {
	return s.Update(ctx, id, UpdateFields{Enabled: &enabled})
}

// Delete removes a reminder by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SoundSettings returns the stored sound settings, falling back to the
// defaults for keys that were never written.
func (s *Store) SoundSettings(ctx context.Context) (SoundSettings, error) {
	settings := DefaultSoundSettings()

	enabled, ok, err := s.setting(ctx, settingSoundEnabled)
	if err != nil {
		return settings, err
	}
	if ok {
		settings.Enabled = enabled == "true"
	}

	volume, ok, err := s.setting(ctx, settingSoundVolume)
	if err != nil {
		return settings, err
	}
	if ok {
		v, err := strconv.Atoi(volume)
		if err != nil {
			return settings, fmt.Errorf("invalid stored volume %q: %w", volume, err)
		}
		settings.Volume = ClampVolume(v)
	}

	return settings, nil
}

// SetSoundSettings persists sound settings. The volume is clamped.
func (s *Store) SetSoundSettings(ctx context.Context, settings SoundSettings) error {
	if err := s.setSetting(ctx, settingSoundEnabled, strconv.FormatBool(settings.Enabled)); err != nil {
		return err
	}
	return s.setSetting(ctx, settingSoundVolume, strconv.Itoa(ClampVolume(settings.Volume)))
}

// SeedSoundSettings writes settings only when none were stored yet.
func (s *Store) SeedSoundSettings(ctx context.Context, settings SoundSettings) error {
	_, ok, err := s.setting(ctx, settingSoundEnabled)
	if err != nil || ok {
		return err
	}
	return s.SetSoundSettings(ctx, settings)
}

// GlobalEnabled reports whether reminders are switched on as a whole.
// It defaults to true.
func (s *Store) GlobalEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.setting(ctx, settingRemindersEnabled)
	if err != nil {
		return true, err
	}
	return !ok || v == "true", nil
}

// SetGlobalEnabled persists the global toggle.
func (s *Store) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	return s.setSetting(ctx, settingRemindersEnabled, strconv.FormatBool(enabled))
}

func (s *Store) setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDefinition reads one row into a Definition.
func scanDefinition(row scanner) (*Definition, error) {
	var d Definition
	var mode, times, createdAt, updatedAt string

	if err := row.Scan(&d.ID, &d.Message, &d.Icon, &d.Color, &mode,
		&d.IntervalMinutes, &times, &d.DisplayMinutes, &d.Enabled,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reminder: %w", err)
	}

	d.Mode = Mode(mode)
	if err := json.Unmarshal([]byte(times), &d.Times); err != nil {
		return nil, fmt.Errorf("failed to decode times for %s: %w", d.ID, err)
	}
	if len(d.Times) == 0 {
		d.Times = nil
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &d, nil
}

func encodeTimes(times []string) (string, error) {
	if times == nil {
		times = []string{}
	}
	b, err := json.Marshal(times)
	if err != nil {
		return "", fmt.Errorf("failed to encode times: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
