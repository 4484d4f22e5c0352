// Package overdue classifies payable invoices by how their due date relates to today.
// Results are computed on every read and never stored.
package overdue

import (
	"time"

	"github.com/Prygunov-Andrei/finance-sub003/internal/domain/workflow"
)

// Bucket is the due-date classification of an invoice
type Bucket string

const (
	BucketNotDue        Bucket = "not_due"
	BucketDueToday      Bucket = "due_today"
	BucketDueThisWeek   Bucket = "due_this_week"
	BucketOverdue       Bucket = "overdue"
	BucketNotApplicable Bucket = "not_applicable"
)

// WeekDays is the length of the due-this-week window, today included
const WeekDays = 7

// Today returns the calendar date of now in now's location, as UTC midnight
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Classify buckets an invoice by status and due date relative to now.
// Due dates are calendar dates; only their year, month and day are compared.
func Classify(status workflow.State, dueDate *time.Time, now time.Time) Bucket {
	if dueDate == nil || !status.IsPayable() {
		return BucketNotApplicable
	}

	today := Today(now)
	due := civil(*dueDate)

	switch {
	case due.Before(today):
		return BucketOverdue
	case due.Equal(today):
		return BucketDueToday
	case due.Before(today.AddDate(0, 0, WeekDays)):
		return BucketDueThisWeek
	default:
		return BucketNotDue
	}
}

// IsOverdue reports whether a payable invoice is past its due date
func IsOverdue(status workflow.State, dueDate *time.Time, now time.Time) bool {
	return Classify(status, dueDate, now) == BucketOverdue
}

// DaysUntil returns the number of calendar days from today to the due date; negative when overdue
func DaysUntil(dueDate time.Time, now time.Time) int {
	return int(civil(dueDate).Sub(Today(now)).Hours() / 24)
}

// InCurrentMonth reports whether the due date falls between today and the end of the current month, inclusive
func InCurrentMonth(dueDate time.Time, now time.Time) bool {
	today := Today(now)
	due := civil(dueDate)
	monthEnd := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return !due.Before(today) && !due.After(monthEnd)
}

// InCurrentWeek reports whether the due date falls within today and the following six days
func InCurrentWeek(dueDate time.Time, now time.Time) bool {
	today := Today(now)
	due := civil(dueDate)
	return !due.Before(today) && due.Before(today.AddDate(0, 0, WeekDays))
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
