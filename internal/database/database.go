// Package database persists users, items, swaps and reviews in SQLite.
//
// Query methods live on an unexported store that is shared by DB (plain
// connection) and Tx (inside WithTx), so every read used by a state
// transition can be made against the same transaction that writes it.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type store struct {
	q querier
}

// DB wraps a SQLite connection.
type DB struct {
	store
	conn *sql.DB
}

// Tx is a database transaction opened by WithTx.
type Tx struct {
	store
}

// New opens (or creates) the SQLite database and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers. This also serializes transactions,
	// which the swap engine relies on for its status compare-and-swap.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{store: store{q: conn}, conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction. The transaction commits only if fn
// returns nil; errors returned by fn are passed through unchanged so
// callers can return their own sentinel errors.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(fmt.Errorf("begin: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{store: store{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return dbErr(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	username        TEXT NOT NULL DEFAULT '',
	co2_saved       REAL NOT NULL DEFAULT 0,
	waste_reduced   REAL NOT NULL DEFAULT 0,
	swaps_completed INTEGER NOT NULL DEFAULT 0,
	rating_average  REAL NOT NULL DEFAULT 0,
	rating_count    INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL REFERENCES users(id),
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL,
	condition     TEXT NOT NULL,
	available     BOOLEAN NOT NULL DEFAULT 1,
	co2_saved     REAL NOT NULL DEFAULT 0,
	waste_reduced REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_available ON items(available);

CREATE TABLE IF NOT EXISTS swaps (
	id                TEXT PRIMARY KEY,
	initiator_id      TEXT NOT NULL REFERENCES users(id),
	receiver_id       TEXT NOT NULL REFERENCES users(id),
	initiator_item_id TEXT NOT NULL REFERENCES items(id),
	receiver_item_id  TEXT NOT NULL REFERENCES items(id),
	status            TEXT NOT NULL DEFAULT 'pending',
	message           TEXT NOT NULL DEFAULT '',
	meetup_location   TEXT NOT NULL DEFAULT '',
	meetup_time       DATETIME,
	co2_saved         REAL NOT NULL DEFAULT 0,
	waste_reduced     REAL NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	completed_at      DATETIME,
	CHECK (initiator_id <> receiver_id)
);

CREATE INDEX IF NOT EXISTS idx_swaps_initiator_id ON swaps(initiator_id);
CREATE INDEX IF NOT EXISTS idx_swaps_receiver_id ON swaps(receiver_id);
CREATE INDEX IF NOT EXISTS idx_swaps_status ON swaps(status);

CREATE TABLE IF NOT EXISTS item_offers (
	item_id    TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	swap_id    TEXT NOT NULL REFERENCES swaps(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (item_id, swap_id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id          TEXT PRIMARY KEY,
	swap_id     TEXT NOT NULL REFERENCES swaps(id),
	reviewer_id TEXT NOT NULL REFERENCES users(id),
	reviewee_id TEXT NOT NULL REFERENCES users(id),
	direction   TEXT NOT NULL,
	rating      INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	UNIQUE (swap_id, reviewer_id)
);

CREATE INDEX IF NOT EXISTS idx_reviews_reviewee_id ON reviews(reviewee_id);
`

// migrate creates tables if they do not exist.
func migrate(conn *sql.DB) error {
	_, err := conn.Exec(schema)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
