package reconcile

import (
	"fmt"
	"testing"
	"time"

	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"
)

var ref = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

func newItem(id string, daysOut int) model.Item {
	return model.Item{
		ID:             id,
		Name:           "Item " + id,
		Quantity:       1,
		Shelf:          model.ShelfPantry1,
		Category:       model.CategorySnacks,
		ExpirationDate: expiry.CivilDate(ref).AddDate(0, 0, daysOut),
	}
}

// alertSet is a minimal in-memory alert store used to apply mutations.
type alertSet struct {
	alerts []model.Alert
	next   int
	clock  time.Time
}

func (s *alertSet) active() []model.Alert {
	var out []model.Alert
	for _, a := range s.alerts {
		if !a.Dismissed {
			out = append(out, a)
		}
	}
	return out
}

func (s *alertSet) activeFor(itemID string) []model.Alert {
	var out []model.Alert
	for _, a := range s.active() {
		if a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out
}

func (s *alertSet) apply(t *testing.T, muts []Mutation) {
	t.Helper()
	for _, m := range muts {
		switch m.Action {
		case ActionCreate:
			s.next++
			s.clock = s.clock.Add(time.Second)
			a := m.Alert
			a.ID = fmt.Sprintf("a%d", s.next)
			a.CreatedAt = s.clock
			s.alerts = append(s.alerts, a)
		case ActionUpdate:
			for i := range s.alerts {
				if s.alerts[i].ID == m.AlertID {
					s.alerts[i] = m.Alert
				}
			}
		case ActionDismiss:
			for i := range s.alerts {
				if s.alerts[i].ID == m.AlertID {
					s.alerts[i].Dismissed = true
				}
			}
		case ActionDismissCascade:
			for i := range s.alerts {
				if s.alerts[i].ItemID == m.ItemID {
					s.alerts[i].Dismissed = true
				}
			}
		case ActionNone:
		default:
			t.Fatalf("unexpected action %v", m.Action)
		}
	}
}

func TestReconcileSingleItem(t *testing.T) {
	r := New(expiry.Default())

	t.Run("no alert needed and none active", func(t *testing.T) {
		item := newItem("1", 10)
		if m := r.Reconcile(&item, nil, ref); m.Action != ActionNone {
			t.Errorf("expected none, got %v", m.Action)
		}
	})

	t.Run("create with snapshot", func(t *testing.T) {
		item := newItem("1", 2)
		m := r.Reconcile(&item, nil, ref)
		if m.Action != ActionCreate {
			t.Fatalf("expected create, got %v", m.Action)
		}
		if m.Alert.Severity != model.SeverityCritical {
			t.Errorf("expected critical, got %q", m.Alert.Severity)
		}
		if m.Alert.DaysUntilExpiry != 2 {
			t.Errorf("expected 2 days, got %d", m.Alert.DaysUntilExpiry)
		}
		if m.Alert.ItemName != item.Name || !m.Alert.ExpirationDate.Equal(item.ExpirationDate) {
			t.Error("snapshot fields not copied from item")
		}
		if m.Alert.Dismissed {
			t.Error("new alert must not be dismissed")
		}
	})

	t.Run("dismiss when leaving window", func(t *testing.T) {
		item := newItem("1", 30)
		active := &model.Alert{ID: "a1", ItemID: "1", Severity: model.SeverityWarning}
		m := r.Reconcile(&item, active, ref)
		if m.Action != ActionDismiss || m.AlertID != "a1" {
			t.Errorf("expected dismiss of a1, got %v %q", m.Action, m.AlertID)
		}
	})

	t.Run("update keeps identity", func(t *testing.T) {
		item := newItem("1", -1)
		created := ref.Add(-48 * time.Hour)
		active := &model.Alert{
			ID:             "a1",
			ItemID:         "1",
			ItemName:       item.Name,
			ExpirationDate: item.ExpirationDate,
			Severity:       model.SeverityCritical,
			CreatedAt:      created,
		}
		m := r.Reconcile(&item, active, ref)
		if m.Action != ActionUpdate {
			t.Fatalf("expected update, got %v", m.Action)
		}
		if m.Alert.ID != "a1" || !m.Alert.CreatedAt.Equal(created) {
			t.Error("update must preserve id and createdAt")
		}
		if m.Alert.Severity != model.SeverityExpired {
			t.Errorf("expected expired, got %q", m.Alert.Severity)
		}
	})

	t.Run("update on expiration change within same severity", func(t *testing.T) {
		item := newItem("1", 5)
		active := &model.Alert{
			ID:             "a1",
			ItemID:         "1",
			ItemName:       item.Name,
			ExpirationDate: item.ExpirationDate.AddDate(0, 0, 1),
			Severity:       model.SeverityWarning,
		}
		if m := r.Reconcile(&item, active, ref); m.Action != ActionUpdate {
			t.Errorf("expected update, got %v", m.Action)
		}
	})

	t.Run("no-op when unchanged", func(t *testing.T) {
		item := newItem("1", 5)
		active := &model.Alert{
			ID:              "a1",
			ItemID:          "1",
			ItemName:        item.Name,
			ExpirationDate:  item.ExpirationDate,
			DaysUntilExpiry: 6,
			Severity:        model.SeverityWarning,
		}
		if m := r.Reconcile(&item, active, ref); m.Action != ActionNone {
			t.Errorf("expected none, got %v", m.Action)
		}
	})
}

func TestCollapseKeepsNewest(t *testing.T) {
	actives := []model.Alert{
		{ID: "old", ItemID: "1", CreatedAt: ref.Add(-2 * time.Hour)},
		{ID: "new", ItemID: "1", CreatedAt: ref},
		{ID: "mid", ItemID: "1", CreatedAt: ref.Add(-time.Hour)},
	}

	keep, dismiss := Collapse(actives)
	if keep == nil || keep.ID != "new" {
		t.Fatalf("expected to keep newest alert, got %+v", keep)
	}
	if len(dismiss) != 2 {
		t.Fatalf("expected 2 dismissals, got %d", len(dismiss))
	}
	for _, m := range dismiss {
		if m.Action != ActionDismiss || m.AlertID == "new" {
			t.Errorf("unexpected mutation %+v", m)
		}
	}

	if keep, dismiss := Collapse(nil); keep != nil || dismiss != nil {
		t.Error("expected nothing for empty input")
	}
}

func TestAllIsIdempotent(t *testing.T) {
	r := New(expiry.Default())
	items := []model.Item{
		newItem("expired", -3),
		newItem("critical", 1),
		newItem("warning", 6),
		newItem("fresh", 20),
	}

	set := &alertSet{clock: ref}
	first := r.All(items, set.active(), ref)
	if len(first) != 3 {
		t.Fatalf("expected 3 creates on first run, got %d", len(first))
	}
	set.apply(t, first)

	if second := r.All(items, set.active(), ref); len(second) != 0 {
		t.Fatalf("expected no mutations on second run, got %+v", second)
	}
}

func TestAllProperties(t *testing.T) {
	r := New(expiry.Default())
	set := &alertSet{clock: ref}

	items := []model.Item{newItem("a", -1), newItem("b", 4), newItem("c", 9)}
	set.apply(t, r.All(items, set.active(), ref))

	// Time passes: b moves into critical, c into warning, a stays expired.
	later := ref.AddDate(0, 0, 3)
	set.apply(t, r.All(items, set.active(), later))

	// Push b out of the window.
	items[1].ExpirationDate = items[1].ExpirationDate.AddDate(0, 1, 0)
	set.apply(t, r.All(items, set.active(), later))

	for _, item := range items {
		actives := set.activeFor(item.ID)
		if len(actives) > 1 {
			t.Errorf("item %s has %d active alerts", item.ID, len(actives))
		}
		days := expiry.DaysUntil(item.ExpirationDate, later)
		if days > 7 && len(actives) != 0 {
			t.Errorf("item %s is %d days out but has an active alert", item.ID, days)
		}
		if days < 0 && (len(actives) != 1 || actives[0].Severity != model.SeverityExpired) {
			t.Errorf("item %s is expired but active alerts are %+v", item.ID, actives)
		}
	}

	if got := set.activeFor("c"); len(got) != 1 || got[0].Severity != model.SeverityWarning {
		t.Errorf("expected warning alert for c, got %+v", got)
	}
}

func TestAllCollapsesDuplicatesAndDismissesOrphans(t *testing.T) {
	r := New(expiry.Default())
	item := newItem("1", 5)

	actives := []model.Alert{
		{ID: "x", ItemID: "1", ItemName: item.Name, ExpirationDate: item.ExpirationDate, Severity: model.SeverityWarning, CreatedAt: ref.Add(-time.Hour)},
		{ID: "y", ItemID: "1", ItemName: item.Name, ExpirationDate: item.ExpirationDate, Severity: model.SeverityWarning, CreatedAt: ref},
		{ID: "z", ItemID: "gone", Severity: model.SeverityCritical, CreatedAt: ref},
	}

	muts := r.All([]model.Item{item}, actives, ref)
	if len(muts) != 2 {
		t.Fatalf("expected 2 mutations, got %+v", muts)
	}
	dismissed := map[string]bool{}
	for _, m := range muts {
		if m.Action != ActionDismiss {
			t.Errorf("expected only dismissals, got %v", m.Action)
		}
		dismissed[m.AlertID] = true
	}
	if !dismissed["x"] || !dismissed["z"] {
		t.Errorf("expected x and z dismissed, got %v", dismissed)
	}
}

func TestDismissThenRecurCreatesNewAlert(t *testing.T) {
	r := New(expiry.Default())
	set := &alertSet{clock: ref}
	items := []model.Item{newItem("1", 6)}

	set.apply(t, r.All(items, set.active(), ref))
	original := set.activeFor("1")
	if len(original) != 1 || original[0].Severity != model.SeverityWarning {
		t.Fatalf("expected one warning alert, got %+v", original)
	}

	// User dismisses the alert, then edits the date within the warning window.
	set.apply(t, []Mutation{{Action: ActionDismiss, AlertID: original[0].ID}})
	items[0].ExpirationDate = items[0].ExpirationDate.AddDate(0, 0, -1)
	set.apply(t, r.All(items, set.active(), ref))

	recurred := set.activeFor("1")
	if len(recurred) != 1 {
		t.Fatalf("expected a new active alert, got %+v", recurred)
	}
	if recurred[0].ID == original[0].ID {
		t.Error("dismissed alert was revived instead of creating a new one")
	}
}

func TestCascadeIsNotResurrected(t *testing.T) {
	r := New(expiry.Default())
	set := &alertSet{clock: ref}
	items := []model.Item{newItem("1", 1)}
	set.apply(t, r.All(items, set.active(), ref))

	set.apply(t, []Mutation{Cascade("1")})
	items = nil

	if muts := r.All(items, set.active(), ref); len(muts) != 0 {
		t.Errorf("expected no mutations after cascade, got %+v", muts)
	}
	if len(set.activeFor("1")) != 0 {
		t.Error("cascade left an active alert")
	}
}

func TestSortAlerts(t *testing.T) {
	alerts := []model.Alert{
		{ID: "w-old", Severity: model.SeverityWarning, CreatedAt: ref.Add(-time.Hour)},
		{ID: "c", Severity: model.SeverityCritical, CreatedAt: ref},
		{ID: "w-new", Severity: model.SeverityWarning, CreatedAt: ref},
		{ID: "e", Severity: model.SeverityExpired, CreatedAt: ref.Add(-time.Hour)},
	}
	SortAlerts(alerts)

	want := []string{"e", "c", "w-new", "w-old"}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, alerts[i].ID)
		}
	}
}
