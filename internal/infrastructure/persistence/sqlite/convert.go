package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/entity"
)

// Calendar dates are stored as TEXT in entity.DateLayout, timestamps as UTC DATETIME.

func dateValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(entity.DateLayout)
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func floatValue(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(entity.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return d, nil
}

func nullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
