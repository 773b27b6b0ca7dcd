package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"scanventory-api/internal/model"
)

// Dates and timestamps are stored as fixed-width UTC text so that they sort
// chronologically and round-trip identically on every backend.
const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string

	// schema is executed statement by statement at startup.
	schema []string

	// numbered placeholders ($1, $2, ...) instead of '?'.
	numbered bool

	// isUniqueViolation reports whether err is a unique constraint failure.
	isUniqueViolation func(err error) bool

	// sizeQuery returns the database size in bytes, or is empty when unsupported.
	sizeQuery string
}

// rebind rewrites '?' placeholders for dialects that use numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	items   *sqlItemRepository
	alerts  *sqlAlertRepository
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	s := &SQLStore{db: db, dialect: d}
	s.items = &sqlItemRepository{store: s}
	s.alerts = &sqlAlertRepository{store: s}
	return s, nil
}

// Items returns the item repository.
func (s *SQLStore) Items() ItemRepository { return s.items }

// Alerts returns the alert repository.
func (s *SQLStore) Alerts() AlertRepository { return s.alerts }

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// GetStats returns statistics about the pantry database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = s.dialect.name

	var items, alerts, active int64
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&items); err != nil {
		return nil, err
	}
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM alerts").Scan(&alerts); err != nil {
		return nil, err
	}
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM alerts WHERE dismissed = ?", false).Scan(&active); err != nil {
		return nil, err
	}
	stats["total_items"] = items
	stats["total_alerts"] = alerts
	stats["active_alerts"] = active

	if s.dialect.sizeQuery != "" {
		var size sql.NullInt64
		if err := s.queryRow(ctx, s.dialect.sizeQuery).Scan(&size); err == nil && size.Valid {
			stats["db_size_bytes"] = size.Int64
		}
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}

	return stats, nil
}

// Close closes the database connection pool.
func (s *SQLStore) Close() error {
	log.Printf("[%sStore] Closing database", s.dialect.name)
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// --- items ---

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

const itemColumns = "id, name, quantity, shelf, category, expiration_date, barcode, added_date, updated_at"

type sqlItemRepository struct {
	store *SQLStore
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var shelf, category string
	var expiration, added, updated string
	if err := row.Scan(&item.ID, &item.Name, &item.Quantity, &shelf, &category,
		&expiration, &item.Barcode, &added, &updated); err != nil {
		return nil, err
	}
	item.Shelf = model.Shelf(shelf)
	item.Category = model.Category(category)

	var err error
	if item.ExpirationDate, err = parseDate(expiration); err != nil {
		return nil, fmt.Errorf("invalid expiration_date for item %s: %w", item.ID, err)
	}
	if item.AddedDate, err = parseDate(added); err != nil {
		return nil, fmt.Errorf("invalid added_date for item %s: %w", item.ID, err)
	}
	if item.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at for item %s: %w", item.ID, err)
	}
	return &item, nil
}

// Find returns the items matching filter.
func (r *sqlItemRepository) Find(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Shelf != "" {
		where = append(where, "shelf = ?")
		args = append(args, string(filter.Shelf))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Barcode != "" {
		where = append(where, "barcode = ?")
		args = append(args, filter.Barcode)
	}
	if filter.Search != "" {
		where = append(where, "LOWER(name) LIKE ? ESCAPE '!'")
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(filter.Search))+"%")
	}

	query := "SELECT " + itemColumns + " FROM items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", filter.SortColumn(), direction, direction)

	rows, err := r.store.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// FindByID returns the item or nil if it does not exist.
func (r *sqlItemRepository) FindByID(ctx context.Context, id string) (*model.Item, error) {
	row := r.store.queryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// Insert stores a new item.
func (r *sqlItemRepository) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	_, err := r.store.exec(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Quantity, string(item.Shelf), string(item.Category),
		formatDate(item.ExpirationDate), item.Barcode, formatDate(item.AddedDate),
		formatTimestamp(item.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	return r.FindByID(ctx, item.ID)
}

// Update applies a partial update.
func (r *sqlItemRepository) Update(ctx context.Context, id string, update model.ItemUpdate) (*model.Item, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTimestamp(time.Now())}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *update.Quantity)
	}
	if update.Shelf != nil {
		sets = append(sets, "shelf = ?")
		args = append(args, string(*update.Shelf))
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*update.Category))
	}
	if update.ExpirationDate != nil {
		sets = append(sets, "expiration_date = ?")
		args = append(args, formatDate(*update.ExpirationDate))
	}
	if update.Barcode != nil {
		sets = append(sets, "barcode = ?")
		args = append(args, *update.Barcode)
	}
	args = append(args, id)

	if _, err := r.store.exec(ctx, "UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return r.FindByID(ctx, id)
}

// Delete removes the item.
func (r *sqlItemRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.store.exec(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- alerts ---

const alertColumns = "id, item_id, item_name, expiration_date, days_until_expiry, severity, dismissed, created_at, updated_at"

type sqlAlertRepository struct {
	store *SQLStore
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var alert model.Alert
	var severity string
	var expiration, created, updated string
	if err := row.Scan(&alert.ID, &alert.ItemID, &alert.ItemName, &expiration,
		&alert.DaysUntilExpiry, &severity, &alert.Dismissed, &created, &updated); err != nil {
		return nil, err
	}
	alert.Severity = model.Severity(severity)

	var err error
	if alert.ExpirationDate, err = parseDate(expiration); err != nil {
		return nil, fmt.Errorf("invalid expiration_date for alert %s: %w", alert.ID, err)
	}
	if alert.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, fmt.Errorf("invalid created_at for alert %s: %w", alert.ID, err)
	}
	if alert.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at for alert %s: %w", alert.ID, err)
	}
	return &alert, nil
}

func alertWhere(filter model.AlertFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ItemID != "" {
		where = append(where, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.Dismissed != nil {
		where = append(where, "dismissed = ?")
		args = append(args, *filter.Dismissed)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// Find returns the alerts matching filter, newest first.
func (r *sqlAlertRepository) Find(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	where, args := alertWhere(filter)
	rows, err := r.store.query(ctx, "SELECT "+alertColumns+" FROM alerts"+where+" ORDER BY created_at DESC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// FindActiveForItem returns the most recent active alert of an item, or nil.
func (r *sqlAlertRepository) FindActiveForItem(ctx context.Context, itemID string) (*model.Alert, error) {
	row := r.store.queryRow(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE item_id = ? AND dismissed = ? ORDER BY created_at DESC LIMIT 1",
		itemID, false)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active alert: %w", err)
	}
	return alert, nil
}

func (r *sqlAlertRepository) findByID(ctx context.Context, id string) (*model.Alert, error) {
	row := r.store.queryRow(ctx, "SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// Insert stores a new alert.
func (r *sqlAlertRepository) Insert(ctx context.Context, alert *model.Alert) (*model.Alert, error) {
	_, err := r.store.exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.ItemID, alert.ItemName, formatDate(alert.ExpirationDate),
		alert.DaysUntilExpiry, string(alert.Severity), alert.Dismissed,
		formatTimestamp(alert.CreatedAt), formatTimestamp(alert.UpdatedAt),
	)
	if err != nil {
		if r.store.dialect.isUniqueViolation(err) {
			return nil, ErrActiveAlertExists
		}
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return r.findByID(ctx, alert.ID)
}

func alertSets(update model.AlertUpdate) ([]string, []interface{}) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTimestamp(time.Now())}

	if update.ItemName != nil {
		sets = append(sets, "item_name = ?")
		args = append(args, *update.ItemName)
	}
	if update.ExpirationDate != nil {
		sets = append(sets, "expiration_date = ?")
		args = append(args, formatDate(*update.ExpirationDate))
	}
	if update.DaysUntilExpiry != nil {
		sets = append(sets, "days_until_expiry = ?")
		args = append(args, *update.DaysUntilExpiry)
	}
	if update.Severity != nil {
		sets = append(sets, "severity = ?")
		args = append(args, string(*update.Severity))
	}
	if update.Dismissed != nil {
		sets = append(sets, "dismissed = ?")
		args = append(args, *update.Dismissed)
	}
	return sets, args
}

// Update applies a partial update.
func (r *sqlAlertRepository) Update(ctx context.Context, id string, update model.AlertUpdate) (*model.Alert, error) {
	sets, args := alertSets(update)
	args = append(args, id)

	if _, err := r.store.exec(ctx, "UPDATE alerts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		if r.store.dialect.isUniqueViolation(err) {
			return nil, ErrActiveAlertExists
		}
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return r.findByID(ctx, id)
}

// UpdateMany applies update to every alert matching filter.
func (r *sqlAlertRepository) UpdateMany(ctx context.Context, filter model.AlertFilter, update model.AlertUpdate) (int64, error) {
	sets, args := alertSets(update)
	where, whereArgs := alertWhere(filter)
	args = append(args, whereArgs...)

	result, err := r.store.exec(ctx, "UPDATE alerts SET "+strings.Join(sets, ", ")+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update alerts: %w", err)
	}
	return result.RowsAffected()
}

// Ensure the SQL repositories implement the repository interfaces
var (
	_ Store           = (*SQLStore)(nil)
	_ ItemRepository  = (*sqlItemRepository)(nil)
	_ AlertRepository = (*sqlAlertRepository)(nil)
)
