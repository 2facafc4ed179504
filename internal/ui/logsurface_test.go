package ui

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSurfaceLogsOpenAndClose(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSurface(zerolog.New(&buf))

	h, err := s.Create(context.Background(), spec("r1", "Drink water", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Contains(t, buf.String(), `"message":"Drink water"`)
	assert.Contains(t, buf.String(), `"reminder_id":"r1"`)

	require.NoError(t, s.Destroy(h))
	require.NoError(t, s.Destroy(h))
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("overlay closed")))
}

func TestLogSurfaceRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLogSurface(zerolog.Nop()).Create(ctx, spec("r1", "x", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
