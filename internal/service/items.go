package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"
	"scanventory-api/pkg/uid"
)

// Scan actions.
const (
	ScanIn  = "in"
	ScanOut = "out"
)

// Scan outcomes reported in ScanResult.Action.
const (
	ScanQuantityIncreased = "quantity_increased"
	ScanScannedOut        = "scanned_out"
	ScanNewItem           = "new_item_scanned"
)

// ItemQuery filters ItemService.List.
type ItemQuery struct {
	Shelf    string
	Category string
	Search   string
	SortBy   string
	Order    string // asc or desc, default desc
}

// ItemChange is the outcome of a write that may remove the item.
// Item is nil when Deleted is true.
type ItemChange struct {
	Item    *model.ItemView
	Deleted bool
}

// ScanResult is the outcome of a barcode scan.
type ScanResult struct {
	Action  string          `json:"action"`
	Barcode string          `json:"barcode"`
	Item    *model.ItemView `json:"item,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// ItemService handles pantry item business logic. Every write holds the
// item lock and reconciles the item's alerts before returning.
type ItemService struct {
	Deps
	alerts *AlertService
}

// NewItemService creates a new item service.
func NewItemService(alerts *AlertService) *ItemService {
	return &ItemService{Deps: alerts.Deps, alerts: alerts}
}

// List returns items matching q, annotated with their expiry state.
func (s *ItemService) List(ctx context.Context, q ItemQuery) ([]model.ItemView, error) {
	filter := model.ItemFilter{
		Shelf:    model.Shelf(q.Shelf),
		Category: model.Category(q.Category),
		Search:   strings.TrimSpace(q.Search),
		SortBy:   q.SortBy,
		Desc:     !strings.EqualFold(q.Order, "asc"),
	}
	if q.SortBy != "" {
		if _, ok := model.ItemSortFields[q.SortBy]; !ok {
			return nil, invalid("sortBy", "must be one of addedDate, name, expirationDate, quantity, shelf, category")
		}
	}

	items, err := s.Store.Items().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	views := make([]model.ItemView, len(items))
	for i := range items {
		views[i] = s.view(&items[i])
	}
	return views, nil
}

// Get returns a single item.
func (s *ItemService) Get(ctx context.Context, id string) (*model.ItemView, error) {
	item, err := s.Store.Items().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading item %s: %w", id, err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	v := s.view(item)
	return &v, nil
}

// Create validates and stores a new item, then raises its alert if due.
func (s *ItemService) Create(ctx context.Context, in ItemInput) (*model.ItemView, error) {
	item, err := in.toItem()
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	item.ID = uid.NewOrdered()
	item.AddedDate = expiry.CivilDate(now)
	item.UpdatedAt = now

	var (
		created *model.Item
		report  ReconcileReport
	)
	err = s.withItemLock(ctx, item.ID, func() error {
		var err error
		if created, err = s.Store.Items().Insert(ctx, item); err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		report, err = s.alerts.reconcileLocked(ctx, created)
		return err
	})
	s.alerts.flush(ctx, &report)
	if err != nil {
		return nil, err
	}

	log.Printf("[ItemService] Created item %s (%s)", created.ID, created.Name)
	s.invalidateDashboard(ctx)
	v := s.view(created)
	return &v, nil
}

// Update applies a partial update. Setting quantity to 0 removes the item.
func (s *ItemService) Update(ctx context.Context, id string, patch ItemPatch) (*ItemChange, error) {
	update, err := patch.toUpdate()
	if err != nil {
		return nil, err
	}

	var (
		change *ItemChange
		report ReconcileReport
	)
	err = s.withItemLock(ctx, id, func() error {
		if update.Quantity != nil && *update.Quantity == 0 {
			deleted, err := s.deleteLocked(ctx, id, &report)
			change = deleted
			return err
		}

		item, err := s.Store.Items().Update(ctx, id, update)
		if err != nil {
			return fmt.Errorf("updating item %s: %w", id, err)
		}
		if item == nil {
			return ErrItemNotFound
		}
		itemReport, err := s.alerts.reconcileLocked(ctx, item)
		report.add(itemReport)
		if err != nil {
			return err
		}
		v := s.view(item)
		change = &ItemChange{Item: &v}
		return nil
	})
	s.alerts.flush(ctx, &report)
	if err != nil {
		return nil, err
	}

	s.invalidateDashboard(ctx)
	return change, nil
}

// Delete removes an item and dismisses its alerts.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	var report ReconcileReport
	err := s.withItemLock(ctx, id, func() error {
		_, err := s.deleteLocked(ctx, id, &report)
		return err
	})
	s.alerts.flush(ctx, &report)
	if err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	return nil
}

// AdjustQuantity adds delta to the item's quantity. Reaching 0 removes the
// item; going below 0 fails with ErrOutOfStock.
func (s *ItemService) AdjustQuantity(ctx context.Context, id string, delta int) (*ItemChange, error) {
	var (
		change *ItemChange
		report ReconcileReport
	)
	err := s.withItemLock(ctx, id, func() error {
		var err error
		change, err = s.adjustLocked(ctx, id, delta, &report)
		return err
	})
	s.alerts.flush(ctx, &report)
	if err != nil {
		return nil, err
	}

	s.invalidateDashboard(ctx)
	return change, nil
}

// Scan handles a barcode scan. Scanning in an unknown barcode reports
// ScanNewItem and changes nothing.
func (s *ItemService) Scan(ctx context.Context, barcode, action string) (*ScanResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, invalid("barcode", "is required")
	}
	if action == "" {
		action = ScanIn
	}
	if action != ScanIn && action != ScanOut {
		return nil, invalid("action", "must be in or out")
	}

	matches, err := s.Store.Items().Find(ctx, model.ItemFilter{Barcode: barcode, SortBy: "addedDate", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("finding barcode %s: %w", barcode, err)
	}

	if len(matches) == 0 {
		if action == ScanOut {
			return nil, ErrItemNotFound
		}
		return &ScanResult{Action: ScanNewItem, Barcode: barcode}, nil
	}

	// Several items may share a barcode; the most recently added one wins.
	target := matches[0].ID
	delta, outcome := 1, ScanQuantityIncreased
	if action == ScanOut {
		delta, outcome = -1, ScanScannedOut
	}

	change, err := s.AdjustQuantity(ctx, target, delta)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Action: outcome, Barcode: barcode, Item: change.Item, Deleted: change.Deleted}, nil
}

// adjustLocked and deleteLocked run under the item lock and queue alert
// events on report for the caller to publish after unlocking.
func (s *ItemService) adjustLocked(ctx context.Context, id string, delta int, report *ReconcileReport) (*ItemChange, error) {
	item, err := s.Store.Items().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading item %s: %w", id, err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	qty := item.Quantity + delta
	switch {
	case qty < 0:
		return nil, ErrOutOfStock
	case qty == 0:
		return s.deleteLocked(ctx, id, report)
	}

	updated, err := s.Store.Items().Update(ctx, id, model.ItemUpdate{Quantity: &qty})
	if err != nil {
		return nil, fmt.Errorf("updating quantity of item %s: %w", id, err)
	}
	if updated == nil {
		return nil, ErrItemNotFound
	}
	itemReport, err := s.alerts.reconcileLocked(ctx, updated)
	report.add(itemReport)
	if err != nil {
		return nil, err
	}
	v := s.view(updated)
	return &ItemChange{Item: &v}, nil
}

// deleteLocked removes the item and cascades the dismissal to its alerts.
func (s *ItemService) deleteLocked(ctx context.Context, id string, report *ReconcileReport) (*ItemChange, error) {
	ok, err := s.Store.Items().Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deleting item %s: %w", id, err)
	}
	if !ok {
		return nil, ErrItemNotFound
	}

	cascade, err := s.alerts.dismissItemAlerts(ctx, id)
	report.add(cascade)
	if err != nil {
		return nil, err
	}
	log.Printf("[ItemService] Deleted item %s, dismissed %d alerts", id, cascade.Dismissed)
	return &ItemChange{Deleted: true}, nil
}

func (s *ItemService) view(item *model.Item) model.ItemView {
	now := s.Clock()
	c := s.Reconciler.Classifier()
	return model.ItemView{
		Item:             *item,
		DaysUntilExpiry:  expiry.DaysUntil(item.ExpirationDate, now),
		ExpirationStatus: c.Status(item.ExpirationDate, now),
	}
}
