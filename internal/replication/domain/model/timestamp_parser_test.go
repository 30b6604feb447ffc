package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTimestampParser_IsTimestampString(t *testing.T) {
	parser := NewTimestampParser()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "ISO 8601 with Z", input: "2025-02-01T15:00:00Z", expected: true},
		{name: "ISO 8601 with offset", input: "2025-02-01T15:00:00-05:00", expected: true},
		{name: "ISO 8601 with millis", input: "2025-02-01T15:00:00.123Z", expected: true},
		{name: "ISO 8601 with compact offset", input: "2025-02-01T15:00:00+0530", expected: true},
		{name: "date only", input: "2025-02-01", expected: true},
		{name: "simple datetime", input: "2025-02-01 15:00:00", expected: true},
		{name: "too short", input: "2025", expected: false},
		{name: "free text", input: "table 4 snacks", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parser.IsTimestampString(tt.input))
		})
	}
}

func TestTimestampParser_TryParse(t *testing.T) {
	parser := NewTimestampParser()
	ref := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input interface{}
		want  time.Time
		ok    bool
	}{
		{name: "time.Time", input: ref, want: ref, ok: true},
		{name: "zero time", input: time.Time{}, ok: false},
		{name: "bson date", input: primitive.NewDateTimeFromTime(ref), want: ref, ok: true},
		{name: "bson timestamp", input: primitive.Timestamp{T: uint32(ref.Unix())}, want: ref, ok: true},
		{name: "rfc3339 string", input: "2025-03-14T18:30:00Z", want: ref, ok: true},
		{name: "offset without colon", input: "2025-03-15T00:00:00+0530", want: ref, ok: true},
		{name: "millis and offset without colon", input: "2025-03-14T13:30:00.000-0500", want: ref, ok: true},
		{name: "epoch millis", input: ref.UnixMilli(), want: ref, ok: true},
		{name: "float millis", input: float64(ref.UnixMilli()), want: ref, ok: true},
		{name: "NaN", input: math.NaN(), ok: false},
		{name: "garbage string", input: "yesterday", ok: false},
		{name: "bool", input: true, ok: false},
		{name: "nil", input: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parser.TryParse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}
