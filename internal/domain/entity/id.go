package entity

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a lexicographically sortable unique identifier
func NewID() string {
	return ulid.Make().String()
}

// ParseDate parses a calendar date in DateLayout and returns it at UTC midnight
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// DateOf truncates t to its calendar date in t's own location, returned at UTC midnight
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders an optional date, returning an empty string when unset
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
