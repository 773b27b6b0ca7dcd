package uid

import "github.com/google/uuid"

// New generates a new random identifier for items, alerts, requests and lock tokens.
func New() string {
	return uuid.NewString()
}

// NewOrdered generates a time-ordered identifier. Later calls sort after
// earlier ones, so it can break ties between records created the same day.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		return New()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	return uuid.Validate(id) == nil
}
