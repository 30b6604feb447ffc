package model

import (
	"math"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimestampParser turns the assorted timestamp representations found in POS
// documents (BSON dates, ISO strings, epoch milliseconds) into time.Time.
type TimestampParser struct{}

// NewTimestampParser creates a new TimestampParser
func NewTimestampParser() *TimestampParser {
	return &TimestampParser{}
}

// Accepted string layouts, most common first.
var supportedTimestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
}

// IsTimestampString reports whether s looks like one of the accepted layouts.
func (tp *TimestampParser) IsTimestampString(s string) bool {
	if len(s) < 10 || len(s) > 35 {
		return false
	}
	for _, pattern := range timestampPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseTimestamp parses s using the first matching layout.
func (tp *TimestampParser) ParseTimestamp(s string) (time.Time, error) {
	for _, format := range supportedTimestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &TimestampParseError{Input: s}
}

// TimestampParseError represents a timestamp parsing error
type TimestampParseError struct {
	Input string
}

func (e *TimestampParseError) Error() string {
	return "cannot parse '" + e.Input + "' as timestamp"
}

// TryParse converts value to a time. Numbers are taken as Unix milliseconds.
func (tp *TimestampParser) TryParse(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case primitive.DateTime:
		return v.Time(), true
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0), v.T != 0
	case string:
		if tp.IsTimestampString(v) {
			if t, err := tp.ParseTimestamp(v); err == nil {
				return t, true
			}
		}
	case int64:
		return time.UnixMilli(v), true
	case int32:
		return time.UnixMilli(int64(v)), true
	case int:
		return time.UnixMilli(int64(v)), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v)), true
	}
	return time.Time{}, false
}
