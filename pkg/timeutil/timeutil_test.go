package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	want := time.Date(2021, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 utc", "2021-03-01T12:30:00Z", want},
		{"rfc3339 offset", "2021-03-01T14:30:00+02:00", want},
		{"microseconds", "2021-03-01T12:30:00.000000Z", want},
		{"api naive", "2021-03-01 12:30:00", want},
		{"iso naive", "2021-03-01T12:30:00", want},
		{"date only", "2021-03-01", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("yesterday")
	assert.Error(t, err)

	_, err = Parse("  ")
	assert.Error(t, err)
}

func TestFromUnix(t *testing.T) {
	want := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, v := range []interface{}{1609459200, int64(1609459200), float64(1609459200), json.Number("1609459200"), "1609459200"} {
		got, err := FromUnix(v)
		require.NoError(t, err, "%T", v)
		assert.True(t, want.Equal(got), "%T -> %s", v, got)
	}

	_, err := FromUnix(true)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	ts := time.Date(2021, 3, 1, 14, 30, 0, 0, time.FixedZone("x", 2*3600))
	assert.Equal(t, "2021-03-01T12:30:00.000000Z", Format(ts))
	assert.Equal(t, "2021-03-01", FormatDate(ts))
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), Date(ts))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("2021-03-01 12:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2021-03-01T12:30:00.000000Z", got)
}
