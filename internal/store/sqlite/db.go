package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to the database file, e.g. "data/dashboard.db"
}

// Store persists trades and watchlist items. It implements
// model.TradeRepository and model.WatchlistRepository.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker       TEXT    NOT NULL,
			direction    TEXT    NOT NULL,
			entry_date   TEXT    NOT NULL,
			entry_price  REAL    NOT NULL,
			target_price REAL,
			stop_loss    REAL,
			exit_date    TEXT,
			exit_price   REAL,
			entry_reason TEXT    NOT NULL DEFAULT '',
			exit_reason  TEXT,
			pnl          REAL,
			pnl_pct      REAL,
			status       TEXT    NOT NULL DEFAULT 'open',
			tags         TEXT    NOT NULL DEFAULT '[]',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades (ticker);
		CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);

		CREATE TABLE IF NOT EXISTS watchlist (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker     TEXT    NOT NULL UNIQUE,
			name       TEXT,
			sector     TEXT,
			added_date TEXT    NOT NULL,
			memo       TEXT    NOT NULL DEFAULT '',
			status     TEXT    NOT NULL DEFAULT 'active'
		);
	`)
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
