// Package domain holds the types and contracts shared by the optimizer
// pipeline, its providers and its presentation layers.
package domain

import (
	"time"
)

// DateLayout is the layout accepted for holding period dates.
const DateLayout = "2006-01-02"

// PricePoint is one observation of an asset's (adjusted) closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// HoldingPeriod is the historical window prices are requested for.
type HoldingPeriod struct {
	Start time.Time
	End   time.Time
}

// ParseHoldingPeriod parses start and end dates in YYYY-MM-DD form.
// End must be strictly after start.
func ParseHoldingPeriod(start, end string) (HoldingPeriod, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return HoldingPeriod{}, InputError("holding_period", "invalid start date %q (want YYYY-MM-DD)", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return HoldingPeriod{}, InputError("holding_period", "invalid end date %q (want YYYY-MM-DD)", end)
	}
	if !e.After(s) {
		return HoldingPeriod{}, InputError("holding_period", "end date %s must be after start date %s", end, start)
	}
	return HoldingPeriod{Start: s, End: e}, nil
}

// String formats the period as "start..end".
func (p HoldingPeriod) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}
