package store

import (
	"database/sql"
	"errors"
	"time"
)

// Tier names a storage tier in the kv table.
type Tier string

const (
	// TierLocal holds credentials that outlive the daemon process.
	TierLocal Tier = "local"
	// TierPrefs holds client preferences such as the last open conversation.
	TierPrefs Tier = "prefs"
)

type kvRow struct {
	Value     string `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

// GetKV returns the value stored under key in tier and whether it exists.
func (db *DB) GetKV(tier Tier, key string) (string, bool, error) {
	var row kvRow
	err := db.DB.Get(&row, `SELECT value, updated_at FROM kv WHERE tier = ? AND key = ?`, string(tier), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// PutKV stores value under key in tier.
func (db *DB) PutKV(tier Tier, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO kv (tier, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(tier, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(tier), key, value, time.Now().UnixMilli())
	return err
}

// DeleteKV removes key from tier. Deleting an absent key is not an error.
func (db *DB) DeleteKV(tier Tier, key string) error {
	_, err := db.Exec(`DELETE FROM kv WHERE tier = ? AND key = ?`, string(tier), key)
	return err
}
