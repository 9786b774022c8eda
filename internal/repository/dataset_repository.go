package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const appStateSchema = `CREATE TABLE IF NOT EXISTS app_state (
    key TEXT PRIMARY KEY,
    value JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DatasetRepository persists named JSON documents in the app_state table.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// EnsureSchema creates the app_state table when missing.
func (r *DatasetRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, appStateSchema); err != nil {
		return fmt.Errorf("ensure app_state schema: %w", err)
	}
	return nil
}

// Load decodes the named dataset into dest. found is false when no row exists.
func (r *DatasetRepository) Load(ctx context.Context, name string, dest interface{}) (bool, error) {
	const query = `SELECT value FROM app_state WHERE key = $1`
	var raw types.JSONText
	if err := r.db.GetContext(ctx, &raw, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load dataset %s: %w", name, err)
	}
	if err := raw.Unmarshal(dest); err != nil {
		return false, fmt.Errorf("decode dataset %s: %w", name, err)
	}
	return true, nil
}

// Save upserts the named dataset. The last writer wins.
func (r *DatasetRepository) Save(ctx context.Context, name string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", name, err)
	}
	const query = `INSERT INTO app_state (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, name, types.JSONText(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("save dataset %s: %w", name, err)
	}
	return nil
}
