package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

type SeenRepo struct {
	db *sql.DB
}

func NewSeenRepo(db *sql.DB) *SeenRepo {
	return &SeenRepo{db: db}
}

func (r *SeenRepo) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM seen_keys WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check seen key: %w", err)
	}
	return exists, nil
}

func (r *SeenRepo) AddKey(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO seen_keys (key) VALUES (?)`, key); err != nil {
		return fmt.Errorf("failed to add seen key: %w", err)
	}
	return nil
}

// ClearKeys forgets every seen key and reports how many there were.
func (r *SeenRepo) ClearKeys(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seen_keys`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear seen keys: %w", err)
	}
	return res.RowsAffected()
}
