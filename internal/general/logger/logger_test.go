package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLogger_InfoCarriesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("dispatch-service", &buf)

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithRideID(ctx, "ride-1")
	log.Info(ctx, "ride_created", "  Ride created  ", map[string]any{"fare": 500})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "dispatch-service", e.Service)
	assert.Equal(t, "ride_created", e.Action)
	assert.Equal(t, "Ride created", e.Message)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "ride-1", e.RideID)
	assert.Nil(t, e.Error)
}

func TestLogger_ErrorAttachesStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("", &buf)

	log.Error(context.Background(), "", "boom", errors.New("db down"), nil)
	log.Error(context.Background(), "nil_error", "no cause", nil, nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "unknown-service", entries[0].Service)
	assert.Equal(t, "unspecified", entries[0].Action)
	require.NotNil(t, entries[0].Error)
	assert.Equal(t, "db down", entries[0].Error.Msg)
	assert.NotEmpty(t, entries[0].Error.Stack)

	require.NotNil(t, entries[1].Error)
	assert.Equal(t, "unknown error", entries[1].Error.Msg)
}

func TestLogger_UnmarshalableDetailsAreDropped(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("svc", &buf)

	log.Debug(context.Background(), "odd", "channel details", map[string]any{"ch": make(chan int)})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0].Level)
	assert.Nil(t, entries[0].Details)
}

func TestLogger_BlankIDsKeepContext(t *testing.T) {
	log := NewWithWriter("svc", nil)
	ctx := context.Background()

	assert.Equal(t, ctx, log.WithRequestID(ctx, "  "))
	assert.Equal(t, ctx, log.WithRideID(ctx, ""))
}
