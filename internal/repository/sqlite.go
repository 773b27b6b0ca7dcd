package repository

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "SQLite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
			shelf TEXT NOT NULL,
			category TEXT NOT NULL,
			expiration_date TEXT NOT NULL,
			barcode TEXT NOT NULL DEFAULT '',
			added_date TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_shelf ON items(shelf)`,
		`CREATE INDEX IF NOT EXISTS idx_items_expiration ON items(expiration_date)`,
		`CREATE INDEX IF NOT EXISTS idx_items_barcode ON items(barcode)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			item_name TEXT NOT NULL,
			expiration_date TEXT NOT NULL,
			days_until_expiry INTEGER NOT NULL,
			severity TEXT NOT NULL CHECK (severity IN ('critical', 'warning', 'expired')),
			dismissed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_item ON alerts(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_dismissed ON alerts(dismissed)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_alerts_active_item ON alerts(item_id) WHERE dismissed = 0`,
	},
	isUniqueViolation: func(err error) bool {
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
	sizeQuery: "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
}

// NewSQLiteStore opens (or creates) a SQLite pantry database.
// dbPath is a file path such as "./data/pantry.db", or ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer, and an in-memory database lives on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return store, nil
}
