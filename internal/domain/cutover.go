package domain

import "time"

// DefaultCutoffDay applies when a period has no configured día de corte.
const DefaultCutoffDay = 10

// ResolvePeriod returns the billing period an event falls into: days after the cutoff roll into the
// next calendar month. A zero cutoff means DefaultCutoffDay.
func ResolvePeriod(eventDate time.Time, cutoffDay int) (Period, error) {
	if cutoffDay == 0 {
		cutoffDay = DefaultCutoffDay
	}
	if cutoffDay < 1 || cutoffDay > 31 {
		return Period{}, ErrInvalidCutoffDay.Withf("cutoff day %d must be between 1 and 31", cutoffDay)
	}
	p := PeriodOf(eventDate)
	if eventDate.Day() > cutoffDay {
		return p.Next(), nil
	}
	return p, nil
}
