package service

import (
	"errors"
	"strings"
)

var (
	// ErrItemNotFound is returned when the referenced item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrAlertNotFound is returned when the referenced alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrOutOfStock is returned when a quantity change would go below zero.
	ErrOutOfStock = errors.New("item is out of stock")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when input fails validation. No store
// mutation has happened when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
