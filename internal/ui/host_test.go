package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
)

var testNow = time.Date(2026, 10, 15, 9, 0, 30, 0, time.UTC)

func testModel(list []reminder.Definition) model {
	source := func() ([]reminder.Definition, bool) { return list, true }
	return newModel(NewFormatter(false), "127.0.0.1:8765", source, func() time.Time { return testNow })
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out, cmd
}

func spec(id, message string, dismiss func()) overlay.Spec {
	opened := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	return overlay.Spec{
		ReminderID:     id,
		Content:        overlay.Content{Icon: "💧", Message: message, Color: "#3b82f6"},
		DisplayMinutes: 1,
		OpenedAt:       opened,
		Deadline:       opened.Add(time.Minute),
		OnDismiss:      dismiss,
	}
}

func TestModelShowsNewestOverlay(t *testing.T) {
	m := testModel(nil)

	m, cmd := update(t, m, openMsg{handle: "tui-1", spec: spec("r1", "Drink water", nil)})
	assert.NotNil(t, cmd, "first overlay starts the countdown tick")
	m, cmd = update(t, m, openMsg{handle: "tui-2", spec: spec("r2", "Stretch", nil)})
	assert.Nil(t, cmd, "tick already running")

	view := m.View()
	assert.Contains(t, view, "Stretch")
	assert.NotContains(t, view, "Drink water")
	assert.Contains(t, view, "closes in 0:30")
	assert.Contains(t, view, "1 more behind")
}

func TestModelCloseRevealsNextOverlayThenList(t *testing.T) {
	m := testModel([]reminder.Definition{{
		ID: "r1", Message: "Drink water", Icon: "💧", Mode: reminder.ModeInterval,
		IntervalMinutes: 30, DisplayMinutes: 1, Enabled: true,
	}})
	m, _ = update(t, m, refreshMsg{})

	m, _ = update(t, m, openMsg{handle: "tui-1", spec: spec("r1", "First", nil)})
	m, _ = update(t, m, openMsg{handle: "tui-2", spec: spec("r2", "Second", nil)})

	m, _ = update(t, m, closeMsg{handle: "tui-2"})
	assert.Contains(t, m.View(), "First")

	m, _ = update(t, m, closeMsg{handle: "unknown"})
	m, _ = update(t, m, closeMsg{handle: "tui-1"})

	view := m.View()
	assert.Contains(t, view, "1 reminder")
	assert.Contains(t, view, "Drink water")
	assert.Contains(t, view, "every 30 min")
	assert.Contains(t, view, "127.0.0.1:8765")
}

func TestModelTickStopsWhenNoOverlays(t *testing.T) {
	m := testModel(nil)
	m, _ = update(t, m, openMsg{handle: "tui-1", spec: spec("r1", "x", nil)})

	m, cmd := update(t, m, tickMsg(testNow))
	assert.NotNil(t, cmd)

	m, _ = update(t, m, closeMsg{handle: "tui-1"})
	m, cmd = update(t, m, tickMsg(testNow))
	assert.Nil(t, cmd)
	assert.False(t, m.ticking)
}

func TestModelDismissKeys(t *testing.T) {
	for _, msg := range []tea.Msg{
		tea.KeyMsg{Type: tea.KeyEsc},
		tea.KeyMsg{Type: tea.KeyEnter},
		tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
	} {
		var dismissed []string
		m := testModel(nil)
		m, _ = update(t, m, openMsg{handle: "tui-1", spec: spec("r1", "a", func() { dismissed = append(dismissed, "r1") })})
		m, _ = update(t, m, openMsg{handle: "tui-2", spec: spec("r2", "b", func() { dismissed = append(dismissed, "r2") })})

		_, cmd := update(t, m, msg)
		require.NotNil(t, cmd)
		cmd()

		assert.Equal(t, []string{"r2"}, dismissed)
	}
}

func TestModelDismissWithoutOverlayIsNoop(t *testing.T) {
	_, cmd := update(t, testModel(nil), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
}

func TestModelQuit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune("q")},
	} {
		_, cmd := update(t, testModel(nil), msg)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestModelEmptyList(t *testing.T) {
	m, _ := update(t, testModel(nil), refreshMsg{})
	view := m.View()
	assert.Contains(t, view, "0 reminders")
	assert.Contains(t, view, "No reminders yet")
}

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestHostCreateAndDestroySendMessages(t *testing.T) {
	rec := &recorder{}
	h := &Host{send: rec.send, enabled: true}

	handle, err := h.Create(context.Background(), spec("r1", "x", nil))
	require.NoError(t, err)
	assert.Equal(t, overlay.Handle("tui-1"), handle)

	require.NoError(t, h.Destroy(handle))
	assert.Equal(t, []tea.Msg{
		openMsg{handle: "tui-1", spec: rec.msgs[0].(openMsg).spec},
		closeMsg{handle: "tui-1"},
	}, rec.msgs)
}

func TestHostCreateAfterClose(t *testing.T) {
	rec := &recorder{}
	h := &Host{send: rec.send, closed: true}

	_, err := h.Create(context.Background(), spec("r1", "x", nil))
	assert.True(t, errors.Is(err, ErrHostClosed))
	assert.NoError(t, h.Destroy("tui-1"))
	assert.Zero(t, rec.len())
}

func TestHostSetRemindersRefreshes(t *testing.T) {
	rec := &recorder{}
	h := &Host{send: rec.send, enabled: true}

	list := []reminder.Definition{{ID: "r1", Message: "m"}}
	h.SetReminders(list, false)

	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
	got, on := h.snapshot()
	assert.Equal(t, list, got)
	assert.False(t, on)
}
