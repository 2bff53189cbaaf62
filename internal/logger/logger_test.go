package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", BackendSlog, BackendZap} {
		l, err := New(Config{Level: LevelDebug, Format: "json", Backend: backend})
		require.NoError(t, err, backend)
		assert.Equal(t, LevelDebug, l.Level())
		l.With(String("component", "test")).Debug("backend ready", Int("n", 1))
	}

	_, err := New(Config{Backend: "zerolog"})
	assert.Error(t, err)
}

func TestContextValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	ctx = WithUserID(ctx, "user-1")

	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.Equal(t, "user-1", UserIDFromContext(ctx))

	fields := extractContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "user_id", fields[1].Key)
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	nop := Nop()
	ctx := WithLogger(context.Background(), nop)

	assert.Equal(t, nop, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestErr(t *testing.T) {
	assert.Nil(t, Err(nil).Value)
	assert.Equal(t, "error", Err(assert.AnError).Key)
	assert.Equal(t, assert.AnError.Error(), Err(assert.AnError).Value)
}

func TestCtx_WritesContextFields(t *testing.T) {
	for _, backend := range []string{BackendSlog, BackendZap} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: LevelInfo, Format: "json", Backend: backend, Output: &buf})
			require.NoError(t, err)

			ctx := WithLogger(context.Background(), l)
			ctx = WithRequestID(ctx, "req-1")
			ctx = WithUserID(ctx, "user-1")
			ctx = WithOperation(ctx, "forecast")

			Ctx(ctx).Info("forecast composed", Int("days", 7))
			Ctx(ctx).Debug("dropped below level")

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			require.Len(t, lines, 1)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(lines[0], &entry))
			assert.Equal(t, "req-1", entry["request_id"])
			assert.Equal(t, "user-1", entry["user_id"])
			assert.Equal(t, "forecast", entry["operation"])
			assert.Equal(t, float64(7), entry["days"])
		})
	}
}

func TestNewRequestID_IsV7(t *testing.T) {
	id, err := uuid.Parse(NewRequestID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}
