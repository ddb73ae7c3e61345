// Package snapshot keeps the serialized active session in a local SQLite
// file so a restart can resume it.
package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrCorrupt is returned by Load when the stored bytes do not match their
// checksum.
var ErrCorrupt = errors.New("snapshot checksum mismatch")

// Store holds at most one snapshot.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at dir/session.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "session.db"))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS active_session (
		slot        INTEGER PRIMARY KEY CHECK (slot = 1),
		session_id  TEXT NOT NULL,
		data        BLOB NOT NULL,
		hash        TEXT NOT NULL,
		saved_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, sessionID uuid.UUID, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO active_session (slot, session_id, data, hash, saved_at)
		 VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)`,
		sessionID.String(), data, checksum(data),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot of %s: %w", sessionID, err)
	}
	return nil
}

// Load returns the stored snapshot, or nil if there is none.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, hash FROM active_session WHERE slot = 1`,
	).Scan(&data, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if checksum(data) != hash {
		return nil, ErrCorrupt
	}
	return data, nil
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_session`); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
