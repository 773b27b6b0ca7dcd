package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL has no partial indexes; active_item_id is NULL for dismissed alerts so
// the unique key only constrains active ones.
var mysqlDialect = dialect{
	name: "MySQL",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			shelf VARCHAR(32) NOT NULL,
			category VARCHAR(32) NOT NULL,
			expiration_date VARCHAR(10) NOT NULL,
			barcode VARCHAR(64) NOT NULL DEFAULT '',
			added_date VARCHAR(10) NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			INDEX idx_items_shelf (shelf),
			INDEX idx_items_expiration (expiration_date),
			INDEX idx_items_barcode (barcode)
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR(36) PRIMARY KEY,
			item_id VARCHAR(36) NOT NULL,
			item_name VARCHAR(100) NOT NULL,
			expiration_date VARCHAR(10) NOT NULL,
			days_until_expiry INT NOT NULL,
			severity VARCHAR(16) NOT NULL,
			dismissed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at VARCHAR(40) NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			active_item_id VARCHAR(36) AS (IF(dismissed, NULL, item_id)) STORED,
			INDEX idx_alerts_item (item_id),
			INDEX idx_alerts_dismissed (dismissed),
			UNIQUE KEY ux_alerts_active_item (active_item_id)
		) CHARACTER SET utf8mb4`,
	},
	isUniqueViolation: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
	sizeQuery: `SELECT SUM(data_length + index_length) FROM information_schema.tables WHERE table_schema = DATABASE()`,
}

// NewMySQLStore creates a MySQL pantry store.
// dsn format: "user:password@tcp(host:port)/dbname"
func NewMySQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Println("[MySQLStore] Initialized")
	return store, nil
}
