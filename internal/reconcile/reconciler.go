// Package reconcile derives the alert changes needed to keep expiration alerts
// consistent with the current item set. It performs no I/O.
package reconcile

import (
	"sort"
	"time"

	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"
)

// Action is the kind of change a Mutation asks for.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDismiss
	ActionDismissCascade
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDismiss:
		return "dismiss"
	case ActionDismissCascade:
		return "dismiss-cascade"
	}
	return "none"
}

// Mutation is one alert change produced by reconciliation.
//
// For ActionCreate, Alert holds the new alert without ID or timestamps.
// For ActionUpdate, Alert holds the refreshed alert with its original ID and CreatedAt.
// For ActionDismiss, AlertID names the alert to dismiss.
// For ActionDismissCascade, every alert of ItemID is dismissed.
type Mutation struct {
	Action  Action
	ItemID  string
	AlertID string
	Alert   model.Alert
}

// Reconciler applies the alert rules using a severity classifier.
type Reconciler struct {
	classifier expiry.Classifier
}

// New creates a reconciler backed by c.
func New(c expiry.Classifier) *Reconciler {
	return &Reconciler{classifier: c}
}

// Classifier returns the classifier used for severity decisions.
func (r *Reconciler) Classifier() expiry.Classifier {
	return r.classifier
}

// Reconcile decides what must happen to the active alert of item at reference.
// active is nil when the item has no active alert.
func (r *Reconciler) Reconcile(item *model.Item, active *model.Alert, reference time.Time) Mutation {
	res := r.classifier.Classify(item.ExpirationDate, reference)

	if !res.Alerting {
		if active == nil {
			return Mutation{Action: ActionNone, ItemID: item.ID}
		}
		return Mutation{Action: ActionDismiss, ItemID: item.ID, AlertID: active.ID}
	}

	if active == nil {
		return Mutation{
			Action: ActionCreate,
			ItemID: item.ID,
			Alert: model.Alert{
				ItemID:          item.ID,
				ItemName:        item.Name,
				ExpirationDate:  item.ExpirationDate,
				DaysUntilExpiry: res.DaysUntilExpiry,
				Severity:        res.Severity,
			},
		}
	}

	if active.Severity == res.Severity &&
		active.ExpirationDate.Equal(item.ExpirationDate) &&
		active.ItemName == item.Name {
		return Mutation{Action: ActionNone, ItemID: item.ID, AlertID: active.ID}
	}

	refreshed := *active
	refreshed.ItemName = item.Name
	refreshed.ExpirationDate = item.ExpirationDate
	refreshed.DaysUntilExpiry = res.DaysUntilExpiry
	refreshed.Severity = res.Severity
	return Mutation{Action: ActionUpdate, ItemID: item.ID, AlertID: active.ID, Alert: refreshed}
}

// Cascade returns the mutation that dismisses every alert of a deleted item.
func Cascade(itemID string) Mutation {
	return Mutation{Action: ActionDismissCascade, ItemID: itemID}
}

// Collapse repairs a broken at-most-one-active invariant: it keeps the most
// recently created alert of actives and returns dismissals for the others.
// actives must all belong to the same item. keep is nil when actives is empty.
func Collapse(actives []model.Alert) (keep *model.Alert, dismiss []Mutation) {
	if len(actives) == 0 {
		return nil, nil
	}

	newest := 0
	for i := 1; i < len(actives); i++ {
		if actives[i].CreatedAt.After(actives[newest].CreatedAt) {
			newest = i
		}
	}

	for i := range actives {
		if i == newest {
			continue
		}
		dismiss = append(dismiss, Mutation{
			Action:  ActionDismiss,
			ItemID:  actives[i].ItemID,
			AlertID: actives[i].ID,
		})
	}

	kept := actives[newest]
	return &kept, dismiss
}

// All reconciles every item against the active alerts and returns the
// mutations to apply, omitting no-ops. Active alerts whose item is not in
// items are dismissed. Applying the result and calling All again with the
// same items and reference yields no mutations.
func (r *Reconciler) All(items []model.Item, activeAlerts []model.Alert, reference time.Time) []Mutation {
	byItem := make(map[string][]model.Alert, len(activeAlerts))
	for _, a := range activeAlerts {
		if a.Dismissed {
			continue
		}
		byItem[a.ItemID] = append(byItem[a.ItemID], a)
	}

	var out []Mutation
	seen := make(map[string]bool, len(items))

	for i := range items {
		item := &items[i]
		seen[item.ID] = true

		keep, dismiss := Collapse(byItem[item.ID])
		out = append(out, dismiss...)

		if m := r.Reconcile(item, keep, reference); m.Action != ActionNone {
			out = append(out, m)
		}
	}

	orphaned := make([]string, 0)
	for itemID := range byItem {
		if !seen[itemID] {
			orphaned = append(orphaned, itemID)
		}
	}
	sort.Strings(orphaned)
	for _, itemID := range orphaned {
		for _, a := range byItem[itemID] {
			out = append(out, Mutation{Action: ActionDismiss, ItemID: itemID, AlertID: a.ID})
		}
	}

	return out
}

// SortAlerts orders alerts for presentation: by severity rank ascending, then
// most recently created first.
func SortAlerts(alerts []model.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}
