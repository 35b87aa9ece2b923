// Package store holds the copilot's durable SQLite ledger: offer instances,
// buy fills, lots, realized trades, recommendations, and the profit-tracking
// tables. It owns the single process-wide write lock described in the
// concurrency model — every mutation goes through WithWrite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ge-copilot/internal/logger"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database connection and the write lock that
// serializes every ledger mutation.
type Store struct {
	sql *sql.DB
	mu  sync.Mutex
}

func dbPath(configured string) string {
	if configured != "" {
		return configured
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "ge-copilot.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "ge-copilot.db")
}

// Open opens (or creates) the SQLite ledger and runs migrations.
func Open(path string) (*Store, error) {
	resolved := dbPath(path)
	sqlDB, err := sql.Open("sqlite", resolved+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: sqlDB}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("STORE", fmt.Sprintf("opened %s", resolved))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// WithWrite runs fn inside the single process-wide write lock and a SQL
// transaction, rolling back on any error fn or the commit returns.
func (s *Store) WithWrite(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// WithRead runs fn against the underlying *sql.DB under the same write lock,
// per the spec's "reads run under the same lock for simplicity" rule.
func (s *Store) WithRead(fn func(db *sql.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.sql)
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS offer_instances (
				offer_id                  INTEGER PRIMARY KEY AUTOINCREMENT,
				box_id                    INTEGER NOT NULL,
				status                    TEXT NOT NULL,
				item_id                   INTEGER NOT NULL,
				price                     INTEGER NOT NULL,
				amount_total              INTEGER NOT NULL,
				amount_traded_last_seen   INTEGER NOT NULL DEFAULT 0,
				start_ts                  INTEGER NOT NULL,
				first_fill_ts             INTEGER,
				done_ts                   INTEGER,
				last_seen_ts              INTEGER NOT NULL,
				last_trade_ts             INTEGER,
				active                    INTEGER NOT NULL DEFAULT 1,
				linked_rec_id             TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_offer_box_done ON offer_instances(box_id, done_ts);
			CREATE INDEX IF NOT EXISTS idx_offer_item_done ON offer_instances(item_id, done_ts);

			CREATE TABLE IF NOT EXISTS buy_fills (
				fill_id    INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id    INTEGER NOT NULL,
				qty        INTEGER NOT NULL,
				buy_price  INTEGER NOT NULL,
				fill_ts    INTEGER NOT NULL,
				offer_id   INTEGER NOT NULL REFERENCES offer_instances(offer_id),
				rec_id     TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_buyfills_item_ts ON buy_fills(item_id, fill_ts);

			CREATE TABLE IF NOT EXISTS lots (
				tx_id         INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id       INTEGER NOT NULL,
				buy_price     INTEGER NOT NULL,
				qty_remaining INTEGER NOT NULL,
				buy_ts        INTEGER NOT NULL,
				buy_offer_id  INTEGER NOT NULL,
				buy_rec_id    TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_lots_item_remaining ON lots(item_id, qty_remaining, buy_ts);

			CREATE TABLE IF NOT EXISTS realized_trades (
				trade_id      INTEGER PRIMARY KEY AUTOINCREMENT,
				item_id       INTEGER NOT NULL,
				qty           INTEGER NOT NULL,
				buy_price     INTEGER NOT NULL,
				sell_price    INTEGER NOT NULL,
				buy_ts        INTEGER NOT NULL,
				sell_ts       INTEGER NOT NULL,
				profit        INTEGER NOT NULL,
				sell_offer_id INTEGER NOT NULL,
				sell_rec_id   TEXT,
				buy_rec_id    TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_realized_item_selltts ON realized_trades(item_id, sell_ts);
			CREATE INDEX IF NOT EXISTS idx_realized_sellts ON realized_trades(sell_ts);

			CREATE TABLE IF NOT EXISTS recommendations (
				rec_id                TEXT PRIMARY KEY,
				issued_ts             INTEGER NOT NULL,
				rec_type              TEXT NOT NULL,
				box_id                INTEGER NOT NULL,
				item_id               INTEGER NOT NULL,
				price                 INTEGER NOT NULL,
				qty                   INTEGER NOT NULL,
				expected_profit       INTEGER NOT NULL DEFAULT 0,
				expected_duration     REAL NOT NULL DEFAULT 0,
				note                  TEXT NOT NULL DEFAULT '',
				linked_offer_id       INTEGER,
				outcome_status        TEXT NOT NULL DEFAULT 'issued',
				buy_first_fill_ts     INTEGER,
				buy_done_ts           INTEGER,
				buy_phase_seconds     REAL,
				sell_phase_seconds    REAL,
				realized_profit       INTEGER,
				realized_cost         INTEGER,
				realized_roi          REAL,
				realized_vs_expected  REAL,
				closed_ts             INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_rec_item_issued ON recommendations(item_id, issued_ts);
			CREATE INDEX IF NOT EXISTS idx_rec_type_box_issued ON recommendations(rec_type, box_id, issued_ts);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("STORE", "applied migration v1 (offer/lot/trade/recommendation tables)")
	}

	if version < 2 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS pt_accounts (
				account_id    INTEGER PRIMARY KEY,
				display_name  TEXT NOT NULL UNIQUE,
				created_ts    INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS pt_flips (
				flip_uuid           TEXT PRIMARY KEY,
				display_name        TEXT NOT NULL,
				account_id          INTEGER NOT NULL,
				item_id             INTEGER NOT NULL,
				opened_time         INTEGER NOT NULL,
				opened_qty          INTEGER NOT NULL DEFAULT 0,
				spent               INTEGER NOT NULL DEFAULT 0,
				closed_time         INTEGER NOT NULL DEFAULT 0,
				closed_qty          INTEGER NOT NULL DEFAULT 0,
				received_post_tax   INTEGER NOT NULL DEFAULT 0,
				profit              INTEGER NOT NULL DEFAULT 0,
				tax_paid            INTEGER NOT NULL DEFAULT 0,
				status              INTEGER NOT NULL DEFAULT 0,
				updated_time        INTEGER NOT NULL,
				deleted             INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_ptflips_account_updated ON pt_flips(account_id, updated_time);
			CREATE INDEX IF NOT EXISTS idx_ptflips_open ON pt_flips(display_name, item_id, status, deleted);

			CREATE TABLE IF NOT EXISTS pt_transactions (
				tx_id                  TEXT PRIMARY KEY,
				display_name           TEXT NOT NULL,
				account_id             INTEGER NOT NULL,
				flip_uuid              TEXT NOT NULL,
				time                   INTEGER NOT NULL,
				item_id                INTEGER NOT NULL,
				quantity               INTEGER NOT NULL,
				price                  INTEGER NOT NULL,
				box_id                 INTEGER NOT NULL DEFAULT 0,
				amount_spent           INTEGER NOT NULL DEFAULT 0,
				was_copilot_suggestion INTEGER NOT NULL DEFAULT 0,
				copilot_price_used     INTEGER NOT NULL DEFAULT 0,
				login                  TEXT NOT NULL DEFAULT '',
				raw_json               TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_pttx_display_time ON pt_transactions(display_name, time);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("STORE", "applied migration v2 (profit-tracking tables)")
	}

	if version < 3 {
		// Aborts issued by the suggestion engine carry a free-text reason; early
		// deployments only stored the rec note, not a separate abort reason.
		recommendationsExists, err := s.tableExists("recommendations")
		if err != nil {
			return fmt.Errorf("migration v3 check recommendations exists: %w", err)
		}
		if recommendationsExists {
			if err := s.ensureTableColumn("recommendations", "abort_reason", "TEXT NOT NULL DEFAULT ''"); err != nil {
				return fmt.Errorf("migration v3 add recommendations.abort_reason: %w", err)
			}
		}
		if _, err := s.sql.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (3);`); err != nil {
			return fmt.Errorf("migration v3: %w", err)
		}
		logger.Info("STORE", "applied migration v3 (recommendations.abort_reason)")
	}

	return nil
}

func (s *Store) tableExists(tableName string) (bool, error) {
	var name string
	err := s.sql.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1`,
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ensureTableColumn(tableName, columnName, columnDef string) error {
	rows, err := s.sql.Query("PRAGMA table_info(" + tableName + ")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, columnName) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.sql.Exec("ALTER TABLE " + tableName + " ADD COLUMN " + columnName + " " + columnDef)
	return err
}

// SqlDB exposes the underlying *sql.DB for read-only diagnostic queries.
func (s *Store) SqlDB() *sql.DB {
	return s.sql
}
