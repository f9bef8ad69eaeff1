// Package kv provides the external key-value store backing template and
// data-source persistence: a single sqlite table of string keys to string
// values, written whole-document at a time.
package kv

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/persistence/database"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// Store is a sqlite-backed key-value store.
type Store struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewStore creates the store and its backing table.
func NewStore(db *database.DB, logger *logging.ChanneledLogger) (*Store, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	s := &Store{db: db, logger: logger}
	if err := s.createTable(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return nil
}

// Get returns the value for a key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	start := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	s.logger.Database().Debug("KV write", "key", key, "bytes", len(value), "duration", time.Since(start))
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix, ordered.
func (s *Store) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv_store WHERE key LIKE ? || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
