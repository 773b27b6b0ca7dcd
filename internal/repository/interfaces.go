package repository

import (
	"context"
	"errors"

	"scanventory-api/internal/model"
)

// ErrActiveAlertExists is returned by AlertRepository.Insert when the item
// already has a non-dismissed alert.
var ErrActiveAlertExists = errors.New("item already has an active alert")

// ItemRepository defines item data access methods.
type ItemRepository interface {
	// Find returns the items matching filter, sorted as the filter asks.
	Find(ctx context.Context, filter model.ItemFilter) ([]model.Item, error)

	// FindByID returns the item or nil if it does not exist.
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// Insert stores a new item. The ID must already be set.
	Insert(ctx context.Context, item *model.Item) (*model.Item, error)

	// Update applies a partial update and returns the new item, or nil if it does not exist.
	Update(ctx context.Context, id string, update model.ItemUpdate) (*model.Item, error)

	// Delete removes the item and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// AlertRepository defines alert data access methods.
type AlertRepository interface {
	// Find returns the alerts matching filter, newest first.
	Find(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error)

	// FindActiveForItem returns the most recent non-dismissed alert of an item, or nil.
	FindActiveForItem(ctx context.Context, itemID string) (*model.Alert, error)

	// Insert stores a new alert. It fails with ErrActiveAlertExists when the
	// alert is active and the item already has an active alert.
	Insert(ctx context.Context, alert *model.Alert) (*model.Alert, error)

	// Update applies a partial update and returns the new alert, or nil if it does not exist.
	Update(ctx context.Context, id string, update model.AlertUpdate) (*model.Alert, error)

	// UpdateMany applies update to every alert matching filter and returns the count changed.
	UpdateMany(ctx context.Context, filter model.AlertFilter, update model.AlertUpdate) (int64, error)
}

// Store bundles the repositories of one storage backend.
type Store interface {
	Items() ItemRepository
	Alerts() AlertRepository

	// GetStats returns statistics about the backing database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the underlying connection.
	Close() error
}
