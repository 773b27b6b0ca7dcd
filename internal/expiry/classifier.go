// Package expiry computes days-until-expiry and alert severity for pantry items.
package expiry

import (
	"time"

	"scanventory-api/internal/model"
)

const (
	// DefaultCriticalDays is the largest day count still classified as critical.
	DefaultCriticalDays = 3

	// DefaultWarningDays is the largest day count that raises an alert at all.
	DefaultWarningDays = 7
)

// StatusGood is reported by Classifier.Status for items that need no alert.
const StatusGood = "good"

// Result is the outcome of classifying one expiration date.
type Result struct {
	DaysUntilExpiry int
	Severity        model.Severity // empty when Alerting is false
	Alerting        bool
}

// Classifier maps an expiration date to a severity using day thresholds.
// The zero value is not usable; use New or Default.
type Classifier struct {
	CriticalDays int
	WarningDays  int
}

// New returns a classifier with the given thresholds.
// Out-of-order thresholds are clamped so that critical never exceeds warning.
func New(criticalDays, warningDays int) Classifier {
	if criticalDays < 0 {
		criticalDays = 0
	}
	if warningDays < criticalDays {
		warningDays = criticalDays
	}
	return Classifier{CriticalDays: criticalDays, WarningDays: warningDays}
}

// Default returns a classifier using DefaultCriticalDays and DefaultWarningDays.
func Default() Classifier {
	return New(DefaultCriticalDays, DefaultWarningDays)
}

// Classify returns the day count and severity of expiration relative to reference.
func (c Classifier) Classify(expiration, reference time.Time) Result {
	days := DaysUntil(expiration, reference)

	switch {
	case days < 0:
		return Result{DaysUntilExpiry: days, Severity: model.SeverityExpired, Alerting: true}
	case days <= c.CriticalDays:
		return Result{DaysUntilExpiry: days, Severity: model.SeverityCritical, Alerting: true}
	case days <= c.WarningDays:
		return Result{DaysUntilExpiry: days, Severity: model.SeverityWarning, Alerting: true}
	}
	return Result{DaysUntilExpiry: days}
}

// Status returns the item-level expiration status: a severity name or "good".
func (c Classifier) Status(expiration, reference time.Time) string {
	r := c.Classify(expiration, reference)
	if !r.Alerting {
		return StatusGood
	}
	return string(r.Severity)
}

// Expiring reports whether expiration falls within [0, WarningDays] days of reference.
func (c Classifier) Expiring(expiration, reference time.Time) bool {
	days := DaysUntil(expiration, reference)
	return days >= 0 && days <= c.WarningDays
}

// DaysUntil returns the number of calendar days from reference to expiration.
// Each instant is reduced to its civil date in its own location, so the time of
// day, DST transitions and zone offsets never change the result.
func DaysUntil(expiration, reference time.Time) int {
	diff := civilNoon(expiration).Sub(civilNoon(reference))
	return int(diff.Hours() / 24)
}

// civilNoon returns noon UTC on t's calendar date.
func civilNoon(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// CivilDate returns midnight UTC on t's calendar date, the canonical form
// used to store expiration and added dates.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
