package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

const yamlFixture = `
samples:
  - user_id: user-1
    metric_name: hrv
    timestamp: 2026-03-01T07:00:00Z
    value: 62.5
raw_events:
  - id: evt-1
    user_id: user-1
    domain: calendar
    start_time: 2026-03-01T09:00:00Z
    end_time: 2026-03-01T10:30:00Z
    title: Planning
`

func TestParseFixture_YAML(t *testing.T) {
	fixture, err := parseFixture("demo.yml", []byte(yamlFixture), "")

	require.NoError(t, err)
	require.Len(t, fixture.Samples, 1)
	assert.Equal(t, "hrv", fixture.Samples[0].MetricName)
	assert.Equal(t, 62.5, fixture.Samples[0].Value)
	assert.True(t, fixture.Samples[0].Timestamp.Equal(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)))

	require.Len(t, fixture.RawEvents, 1)
	assert.Equal(t, models.DomainCalendar, fixture.RawEvents[0].Domain)
	require.NotNil(t, fixture.RawEvents[0].EndTime)
	assert.Equal(t, 90*time.Minute, fixture.RawEvents[0].EndTime.Sub(fixture.RawEvents[0].StartTime))
}

func TestParseFixture_JSONWithUserOverride(t *testing.T) {
	raw := []byte(`{"samples":[{"metric_name":"recovery_score","timestamp":"2026-03-01T07:00:00Z","value":71}]}`)

	fixture, err := parseFixture("demo.json", raw, "user-9")

	require.NoError(t, err)
	require.Len(t, fixture.Samples, 1)
	assert.Equal(t, "user-9", fixture.Samples[0].UserID)
	assert.Empty(t, fixture.RawEvents)
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		raw  string
	}{
		{"malformed json", "demo.json", `{"samples":`},
		{"malformed yaml", "demo.yaml", "samples: [\n"},
		{"missing user", "demo.json", `{"samples":[{"metric_name":"hrv","value":1}]}`},
		{"missing domain", "demo.json", `{"raw_events":[{"user_id":"u"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixture(tt.path, []byte(tt.raw), "")
			assert.Error(t, err)
		})
	}
}
