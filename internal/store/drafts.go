package store

import (
	"database/sql"
	"errors"
	"time"
)

// Draft is unsent composer text for one conversation.
type Draft struct {
	PeerKind  string `db:"peer_kind"`
	PeerID    string `db:"peer_id"`
	Body      string `db:"body"`
	UpdatedAt int64  `db:"updated_at"`
}

// SaveDraft stores body for the conversation; an empty body deletes the draft.
func (db *DB) SaveDraft(peerKind, peerID, body string) error {
	if body == "" {
		_, err := db.Exec(`DELETE FROM drafts WHERE peer_kind = ? AND peer_id = ?`, peerKind, peerID)
		return err
	}
	_, err := db.Exec(`
		INSERT INTO drafts (peer_kind, peer_id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(peer_kind, peer_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		peerKind, peerID, body, time.Now().UnixMilli())
	return err
}

// GetDraft returns the draft for a conversation, or nil when none is saved.
func (db *DB) GetDraft(peerKind, peerID string) (*Draft, error) {
	var d Draft
	err := db.DB.Get(&d, `SELECT peer_kind, peer_id, body, updated_at FROM drafts WHERE peer_kind = ? AND peer_id = ?`, peerKind, peerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDrafts returns all drafts, most recently edited first.
func (db *DB) ListDrafts() ([]Draft, error) {
	var drafts []Draft
	err := db.Select(&drafts, `SELECT peer_kind, peer_id, body, updated_at FROM drafts ORDER BY updated_at DESC`)
	return drafts, err
}
