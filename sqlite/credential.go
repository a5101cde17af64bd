package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fwojciec/pluck"
)

// Compile-time interface verification.
var _ pluck.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements pluck.CredentialStore using SQLite.
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// GetCredential retrieves the value stored under key for profile.
func (s *CredentialStore) GetCredential(ctx context.Context, profile, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM credentials
		WHERE profile = ? AND key = ?
	`, profile, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", pluck.Errorf(pluck.ENOTFOUND, "credential %q not found", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetCredential stores value under key for profile, replacing any previous value.
func (s *CredentialStore) SetCredential(ctx context.Context, profile, key, value string) error {
	if profile == "" {
		return pluck.Errorf(pluck.EINVALID, "profile required")
	}
	if key == "" {
		return pluck.Errorf(pluck.EINVALID, "credential key required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (profile, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, profile, key, value, time.Now().UTC().Format(time.RFC3339))

	return err
}

// DeleteCredential removes key for profile.
func (s *CredentialStore) DeleteCredential(ctx context.Context, profile, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM credentials WHERE profile = ? AND key = ?
	`, profile, key)
	return err
}
