package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"
	"scanventory-api/internal/reconcile"
	"scanventory-api/internal/repository"
	"scanventory-api/pkg/uid"
)

// ReconcileReport counts the alert changes made by a reconciliation run.
// It also carries the events of those changes until they are published.
type ReconcileReport struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Dismissed int `json:"dismissed"`

	events []*model.AlertEvent
}

// Changed reports whether the run touched any alert.
func (r ReconcileReport) Changed() bool {
	return r.Created+r.Updated+r.Dismissed > 0
}

func (r *ReconcileReport) add(o ReconcileReport) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Dismissed += o.Dismissed
	r.events = append(r.events, o.events...)
}

// AlertQuery filters AlertService.List.
type AlertQuery struct {
	Dismissed *bool // nil lists both
	Severity  model.Severity
}

// AlertService owns the alert lifecycle: it applies reconciler decisions to
// the store and handles user dismissals.
type AlertService struct {
	Deps
}

// NewAlertService creates a new alert service.
func NewAlertService(deps Deps) *AlertService {
	return &AlertService{Deps: deps.withDefaults()}
}

// List returns alerts ordered expired, critical, warning, then newest first.
// DaysUntilExpiry is recomputed against today for display.
func (s *AlertService) List(ctx context.Context, q AlertQuery) ([]model.Alert, error) {
	alerts, err := s.Store.Alerts().Find(ctx, model.AlertFilter{Dismissed: q.Dismissed, Severity: q.Severity})
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}

	now := s.Clock()
	for i := range alerts {
		alerts[i].DaysUntilExpiry = expiry.DaysUntil(alerts[i].ExpirationDate, now)
	}
	reconcile.SortAlerts(alerts)
	return alerts, nil
}

// DismissOne dismisses a single alert.
func (s *AlertService) DismissOne(ctx context.Context, id string) (*model.Alert, error) {
	dismissed := true
	alert, err := s.Store.Alerts().Update(ctx, id, model.AlertUpdate{Dismissed: &dismissed})
	if err != nil {
		return nil, fmt.Errorf("dismissing alert %s: %w", id, err)
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}

	s.publish(ctx, s.event(model.AlertEventDismissed, alert))
	s.invalidateDashboard(ctx)
	return alert, nil
}

// DismissAll dismisses every active alert and returns how many changed.
func (s *AlertService) DismissAll(ctx context.Context) (int64, error) {
	dismissed := true
	n, err := s.Store.Alerts().UpdateMany(ctx, model.ActiveAlerts(), model.AlertUpdate{Dismissed: &dismissed})
	if err != nil {
		return 0, fmt.Errorf("dismissing all alerts: %w", err)
	}

	log.Printf("[AlertService] Dismissed %d alerts", n)
	s.invalidateDashboard(ctx)
	return n, nil
}

// ReconcileItem brings the alerts of one item in line with its current state.
func (s *AlertService) ReconcileItem(ctx context.Context, itemID string) (ReconcileReport, error) {
	var report ReconcileReport
	err := s.withItemLock(ctx, itemID, func() error {
		item, err := s.Store.Items().FindByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("loading item %s: %w", itemID, err)
		}
		if item == nil {
			return ErrItemNotFound
		}
		report, err = s.reconcileLocked(ctx, item)
		return err
	})
	s.flush(ctx, &report)
	if err == nil && report.Changed() {
		s.invalidateDashboard(ctx)
	}
	return report, err
}

// ReconcileAll runs the bulk path over every item. The plan is computed from
// one snapshot, then each affected item is re-read and reconciled under its
// lock, so concurrent item writes are never overwritten with stale data.
func (s *AlertService) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	items, err := s.Store.Items().Find(ctx, model.ItemFilter{})
	if err != nil {
		return report, fmt.Errorf("loading items: %w", err)
	}
	actives, err := s.Store.Alerts().Find(ctx, model.ActiveAlerts())
	if err != nil {
		return report, fmt.Errorf("loading active alerts: %w", err)
	}

	plan := s.Reconciler.All(items, actives, s.Clock())

	var order []string
	seen := make(map[string]bool)
	for _, m := range plan {
		if !seen[m.ItemID] {
			seen[m.ItemID] = true
			order = append(order, m.ItemID)
		}
	}

	for _, itemID := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var itemReport ReconcileReport
		err := s.withItemLock(ctx, itemID, func() error {
			item, err := s.Store.Items().FindByID(ctx, itemID)
			if err != nil {
				return fmt.Errorf("loading item %s: %w", itemID, err)
			}
			if item == nil {
				itemReport, err = s.dismissItemAlerts(ctx, itemID)
				return err
			}
			itemReport, err = s.reconcileLocked(ctx, item)
			return err
		})
		s.flush(ctx, &itemReport)
		report.add(itemReport)
		if err != nil {
			return report, err
		}
	}

	if report.Changed() {
		s.invalidateDashboard(ctx)
	}
	log.Printf("[AlertService] Reconciled %d items: %d created, %d updated, %d dismissed",
		len(items), report.Created, report.Updated, report.Dismissed)
	return report, nil
}

// reconcileLocked reconciles item against its fresh alert state. The caller
// holds the item lock. An insert that loses the race against another instance
// is retried once with the state that won.
func (s *AlertService) reconcileLocked(ctx context.Context, item *model.Item) (ReconcileReport, error) {
	var report ReconcileReport

	for attempt := 0; ; attempt++ {
		actives, err := s.Store.Alerts().Find(ctx, model.ActiveAlertsFor(item.ID))
		if err != nil {
			return report, fmt.Errorf("loading alerts of item %s: %w", item.ID, err)
		}

		keep, mutations := reconcile.Collapse(actives)
		if len(mutations) > 0 {
			log.Printf("[AlertService] Item %s had %d active alerts, keeping %s", item.ID, len(actives), keep.ID)
		}
		if m := s.Reconciler.Reconcile(item, keep, s.Clock()); m.Action != reconcile.ActionNone {
			mutations = append(mutations, m)
		}

		err = s.apply(ctx, mutations, &report)
		if errors.Is(err, repository.ErrActiveAlertExists) && attempt == 0 {
			continue
		}
		return report, err
	}
}

// dismissItemAlerts dismisses every active alert of a deleted item.
func (s *AlertService) dismissItemAlerts(ctx context.Context, itemID string) (ReconcileReport, error) {
	var report ReconcileReport
	err := s.apply(ctx, []reconcile.Mutation{reconcile.Cascade(itemID)}, &report)
	return report, err
}

// apply writes mutations to the store and queues their events on report.
// Callers publish the queued events with flush once the item lock is released.
func (s *AlertService) apply(ctx context.Context, mutations []reconcile.Mutation, report *ReconcileReport) error {
	alerts := s.Store.Alerts()
	dismissed := true

	for _, m := range mutations {
		switch m.Action {
		case reconcile.ActionCreate:
			now := s.Clock()
			alert := m.Alert
			alert.ID = uid.New()
			alert.CreatedAt = now
			alert.UpdatedAt = now
			created, err := alerts.Insert(ctx, &alert)
			if err != nil {
				return fmt.Errorf("creating alert for item %s: %w", m.ItemID, err)
			}
			report.Created++
			report.events = append(report.events, s.event(model.AlertEventCreated, created))

		case reconcile.ActionUpdate:
			updated, err := alerts.Update(ctx, m.AlertID, model.AlertUpdate{
				ItemName:        &m.Alert.ItemName,
				ExpirationDate:  &m.Alert.ExpirationDate,
				DaysUntilExpiry: &m.Alert.DaysUntilExpiry,
				Severity:        &m.Alert.Severity,
			})
			if err != nil {
				return fmt.Errorf("updating alert %s: %w", m.AlertID, err)
			}
			if updated != nil {
				report.Updated++
				report.events = append(report.events, s.event(model.AlertEventUpdated, updated))
			}

		case reconcile.ActionDismiss:
			updated, err := alerts.Update(ctx, m.AlertID, model.AlertUpdate{Dismissed: &dismissed})
			if err != nil {
				return fmt.Errorf("dismissing alert %s: %w", m.AlertID, err)
			}
			if updated != nil {
				report.Dismissed++
				report.events = append(report.events, s.event(model.AlertEventDismissed, updated))
			}

		case reconcile.ActionDismissCascade:
			actives, err := alerts.Find(ctx, model.ActiveAlertsFor(m.ItemID))
			if err != nil {
				return fmt.Errorf("loading alerts of item %s: %w", m.ItemID, err)
			}
			n, err := alerts.UpdateMany(ctx, model.ActiveAlertsFor(m.ItemID), model.AlertUpdate{Dismissed: &dismissed})
			if err != nil {
				return fmt.Errorf("dismissing alerts of item %s: %w", m.ItemID, err)
			}
			report.Dismissed += int(n)
			for i := range actives {
				actives[i].Dismissed = true
				report.events = append(report.events, s.event(model.AlertEventDismissed, &actives[i]))
			}
		}
	}
	return nil
}

// flush publishes the events queued on report and clears them.
func (s *AlertService) flush(ctx context.Context, report *ReconcileReport) {
	for _, event := range report.events {
		s.publish(ctx, event)
	}
	report.events = nil
}

func (s *AlertService) event(eventType string, alert *model.Alert) *model.AlertEvent {
	return &model.AlertEvent{
		Type:      eventType,
		AlertID:   alert.ID,
		ItemID:    alert.ItemID,
		ItemName:  alert.ItemName,
		Severity:  alert.Severity,
		Timestamp: s.Clock(),
	}
}

// publish emits an alert event. Delivery failures are logged and never fail the mutation.
func (s *AlertService) publish(ctx context.Context, event *model.AlertEvent) {
	if err := s.Publisher.PublishAlertEvent(ctx, event); err != nil {
		log.Printf("[AlertService] Failed to publish %s for alert %s: %v", event.Type, event.AlertID, err)
	}
}
