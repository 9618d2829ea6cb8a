package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const schemaQuery = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		k          VARCHAR(191) NOT NULL PRIMARY KEY,
		v          MEDIUMBLOB   NOT NULL,
		updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`

// upsertQuery replaces the whole value; the store never appends incrementally.
const upsertQuery = `
	INSERT INTO kv_entries (k, v) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE
		v          = VALUES(v),
		updated_at = CURRENT_TIMESTAMP`

// KVRepository is a MySQL-backed Storage.
type KVRepository struct {
	db *sql.DB
}

// NewKVRepository creates a new KVRepository.
func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

// EnsureSchema creates the kv_entries table if it does not exist.
func (r *KVRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaQuery); err != nil {
		return fmt.Errorf("create kv_entries: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT v FROM kv_entries WHERE k = ?`

	var value []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	return value, nil
}

// Save inserts or replaces the value stored under key.
func (r *KVRepository) Save(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, upsertQuery, key, value)
	return err
}

// Remove deletes key. A missing key is not an error.
func (r *KVRepository) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE k = ?`

	_, err := r.db.ExecContext(ctx, query, key)
	return err
}
