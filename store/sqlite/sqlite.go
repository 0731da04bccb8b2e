/*
Package sqlite provides the SQLite-backed order revision store.

PURPOSE:
  Implements disbursement.OrderStore: every order memento is appended as
  a new revision row, never updated, never deleted. The revision history
  of a correlation id is the audit trail of one running payment across
  recalculations. Also persists the statutory policy configuration and
  the processed-message registry used for cross-restart idempotency.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on order_revisions
  - No DELETE statements on order_revisions
  - Supersession happens by appending the next revision

KEY TABLES:
  order_revisions:    One row per memento snapshot
  processed_messages: Triggering-identity registry (replay detection)
  policies:           Versioned statutory parameter JSON

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/sickpay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - disbursement: the OrderStore contract and Snapshot type
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/sickpay-engine/disbursement"
)

// Store implements disbursement.OrderStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Order revisions (append-only memento log)
	CREATE TABLE IF NOT EXISTS order_revisions (
		order_id TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		order_type TEXT NOT NULL,
		state TEXT NOT NULL,
		employer_net INTEGER NOT NULL,
		employee_net INTEGER NOT NULL,
		memento_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (correlation_id, revision)
	);

	CREATE INDEX IF NOT EXISTS idx_order_revisions_order
		ON order_revisions(order_id);
	CREATE INDEX IF NOT EXISTS idx_order_revisions_state
		ON order_revisions(state);

	-- Processed inbound messages (replay detection across restarts)
	CREATE TABLE IF NOT EXISTS processed_messages (
		message_id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		handled_at TEXT NOT NULL
	);

	-- Statutory policy configuration (versioned)
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORDER STORE
// =============================================================================

// AppendRevision stores one snapshot as the next revision of its
// correlation id.
func (s *Store) AppendRevision(ctx context.Context, snap disbursement.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize memento: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0) + 1 FROM order_revisions WHERE correlation_id = ?`,
		snap.CorrelationID.String(),
	).Scan(&next)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_revisions
			(order_id, correlation_id, revision, order_type, state, employer_net, employee_net, memento_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID.String(),
		snap.CorrelationID.String(),
		next,
		string(snap.Type),
		string(snap.State),
		snap.EmployerNet,
		snap.EmployeeNet,
		string(body),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Revisions returns every snapshot for the correlation id, oldest first.
func (s *Store) Revisions(ctx context.Context, correlationID uuid.UUID) ([]disbursement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT memento_json FROM order_revisions WHERE correlation_id = ? ORDER BY revision`,
		correlationID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []disbursement.Snapshot
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var snap disbursement.Snapshot
		if err := json.Unmarshal([]byte(body), &snap); err != nil {
			return nil, fmt.Errorf("failed to deserialize memento: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LatestRevision returns the newest snapshot for the correlation id.
func (s *Store) LatestRevision(ctx context.Context, correlationID uuid.UUID) (*disbursement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT memento_json FROM order_revisions WHERE correlation_id = ? ORDER BY revision DESC LIMIT 1`,
		correlationID.String(),
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", disbursement.ErrRevisionNotFound, correlationID)
	}
	if err != nil {
		return nil, err
	}

	var snap disbursement.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, fmt.Errorf("failed to deserialize memento: %w", err)
	}
	return &snap, nil
}

// MarkHandled records a triggering message id. Returns false when the id
// was already recorded.
func (s *Store) MarkHandled(ctx context.Context, messageID string, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (message_id, order_id, handled_at) VALUES (?, ?, ?)`,
		messageID, orderID.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WasHandled reports whether a triggering message id was already recorded.
func (s *Store) WasHandled(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = ?`, messageID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// POLICY CONFIGURATION
// =============================================================================

// SavePolicy stores (or versions up) a statutory parameter JSON blob.
func (s *Store) SavePolicy(ctx context.Context, id, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, config_json, version, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			version = policies.version + 1`,
		id, configJSON, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// LoadPolicy returns a stored parameter JSON blob.
func (s *Store) LoadPolicy(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var config string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM policies WHERE id = ?`, id,
	).Scan(&config)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("policy %s not found", id)
	}
	return config, err
}
