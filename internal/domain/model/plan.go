package model

import "time"

// Plan groups purchasable variants of one access tier.
type Plan struct {
	ID        string // UUID
	Name      string
	Active    bool
	Trial     bool // trial plans are granted, never sold
	CreatedAt time.Time
}

// PlanVariant is one concrete offer: a period at a price in one currency,
// with a default provider used when the caller does not pick one.
type PlanVariant struct {
	ID              string // UUID
	PlanID          string
	PeriodDays      int
	Amount          int64 // minor units
	Currency        string
	DefaultProvider Provider
	Active          bool
}
