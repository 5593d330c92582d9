package model

import "time"

// Subscription is a contiguous [StartsAt, EndsAt) access window tied to at
// most one payment. For a given user at most one row has Active=true.
type Subscription struct {
	ID         string  // UUID
	UserID     string  // UUID
	PaymentID  *string // unique; nil for grants created by hand
	PlanID     string
	PeriodDays int
	StartsAt   time.Time
	EndsAt     time.Time
	Active     bool
	CreatedAt  time.Time
}

// AddPeriod advances start by whole UTC calendar days. Calendar arithmetic
// (AddDate) is used instead of a Duration so windows do not drift across DST
// switches or leap seconds.
func AddPeriod(start time.Time, days int) time.Time {
	return start.UTC().AddDate(0, 0, days)
}
