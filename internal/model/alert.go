package model

import "time"

// Severity is the urgency class of an expiration alert.
type Severity string

const (
	SeverityExpired  Severity = "expired"
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityExpired, SeverityCritical, SeverityWarning:
		return true
	}
	return false
}

// Rank orders severities for presentation: expired first, warning last.
// Unknown severities sort after every known one.
func (s Severity) Rank() int {
	switch s {
	case SeverityExpired:
		return 0
	case SeverityCritical:
		return 1
	case SeverityWarning:
		return 2
	}
	return 3
}

// Alert is an upcoming-expiration notice for a single item.
// ItemName and ExpirationDate are snapshots of the item taken when the alert
// was created or last reconciled.
type Alert struct {
	ID              string    `json:"id" bson:"_id"`
	ItemID          string    `json:"itemId" bson:"item_id"`
	ItemName        string    `json:"itemName" bson:"item_name"`
	ExpirationDate  time.Time `json:"expirationDate" bson:"expiration_date"`
	DaysUntilExpiry int       `json:"daysUntilExpiry" bson:"days_until_expiry"`
	Severity        Severity  `json:"severity" bson:"severity"`
	Dismissed       bool      `json:"dismissed" bson:"dismissed"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updated_at"`
}

// AlertUpdate carries the fields of a partial alert update. Nil fields are left untouched.
type AlertUpdate struct {
	ItemName        *string
	ExpirationDate  *time.Time
	DaysUntilExpiry *int
	Severity        *Severity
	Dismissed       *bool
}

// AlertFilter selects alerts in AlertRepository.Find and UpdateMany.
type AlertFilter struct {
	ItemID    string
	Dismissed *bool // nil matches both
	Severity  Severity
}

// ActiveAlerts returns a filter matching non-dismissed alerts.
func ActiveAlerts() AlertFilter {
	f := false
	return AlertFilter{Dismissed: &f}
}

// ActiveAlertsFor returns a filter matching the non-dismissed alerts of one item.
func ActiveAlertsFor(itemID string) AlertFilter {
	f := ActiveAlerts()
	f.ItemID = itemID
	return f
}

// AlertEvent is published whenever reconciliation or the user changes an alert.
type AlertEvent struct {
	Type      string    `json:"type"`
	AlertID   string    `json:"alertId"`
	ItemID    string    `json:"itemId"`
	ItemName  string    `json:"itemName,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert event types.
const (
	AlertEventCreated   = "alert.created"
	AlertEventUpdated   = "alert.updated"
	AlertEventDismissed = "alert.dismissed"
)
