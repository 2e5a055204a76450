// Package timeutil parses and formats the timestamp shapes exchanged with the
// ads API, the connector configuration and the persisted bookmarks.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateTimeFormat is the layout used for every emitted date-time value and bookmark
	DateTimeFormat = "2006-01-02T15:04:05.000000Z"
	// DateFormat is the layout of report window query parameters
	DateFormat = "2006-01-02"
)

// layouts accepted by Parse, tried in order. Layouts without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	DateFormat,
}

// Parse parses an ISO-8601-like timestamp and returns it in UTC
func Parse(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FromUnix converts Unix seconds given as a number or numeric string to UTC
func FromUnix(value interface{}) (time.Time, error) {
	var secs float64
	switch v := value.(type) {
	case int:
		secs = float64(v)
	case int64:
		secs = float64(v)
	case float64:
		secs = v
	case fmt.Stringer: // json.Number
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q: %w", v.String(), err)
		}
		secs = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q: %w", v, err)
		}
		secs = f
	default:
		return time.Time{}, fmt.Errorf("unsupported unix timestamp type %T", value)
	}
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC(), nil
}

// Format renders t in DateTimeFormat
func Format(t time.Time) string {
	return t.UTC().Format(DateTimeFormat)
}

// FormatDate renders the calendar date of t
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// Date truncates t to midnight UTC of its calendar date
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize reparses value and renders it in DateTimeFormat
func Normalize(value string) (string, error) {
	t, err := Parse(value)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}
