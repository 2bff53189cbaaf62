package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/time_series_samples", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"value": 1}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "service-key")
	body, err := client.Query(context.Background(), "time_series_samples", map[string]interface{}{
		"user_id": "eq.user-1",
	})

	require.NoError(t, err)
	assert.JSONEq(t, `[{"value": 1}]`, string(body))
}

func TestClient_Insert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "sleep_performance", payload["pattern_type"])

		_, _ = w.Write([]byte("[" + string(raw) + "]"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "service-key")
	_, err := client.Insert(context.Background(), "correlation_patterns", map[string]interface{}{
		"user_id":      "user-1",
		"pattern_type": "sleep_performance",
	})

	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		temporary bool
		notFound  bool
		conflict  bool
	}{
		{"server error", http.StatusServiceUnavailable, true, false, false},
		{"throttled", http.StatusTooManyRequests, true, false, false},
		{"bad request", http.StatusBadRequest, false, false, false},
		{"not found", http.StatusNotFound, false, true, false},
		{"unique violation", http.StatusConflict, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "k").Query(context.Background(), "predictions", nil)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.temporary, apiErr.Temporary())
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.conflict, IsConflict(err))
		})
	}
}

func TestClient_VerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-1","email":"a@example.com"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k")

	user, err := client.VerifyToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	_, err = client.VerifyToken(context.Background(), "bad")
	assert.Error(t, err)
}
