package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sydlexius/lightstick/internal/encryption"
)

// Credential keys stored in the settings table.
const (
	CredSpotifyClientID     = "credential.spotify.client_id"
	CredSpotifyClientSecret = "credential.spotify.client_secret"
	CredGoogleAPIKey        = "credential.google.api_key"
	CredGoogleCX            = "credential.google.cx"
	CredRenderToken         = "credential.render.token"
)

// Credentials supplies adapter secrets at request time.
type Credentials interface {
	Get(ctx context.Context, key string) (string, error)
}

// CredentialsService stores adapter credentials encrypted in the settings
// table. Values seeded from config/env act as defaults; anything stored via
// Set wins.
type CredentialsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
	defaults  map[string]string
}

// NewCredentialsService creates a CredentialsService. The defaults map holds
// config-supplied values returned when no stored value exists.
func NewCredentialsService(db *sql.DB, encryptor *encryption.Encryptor, defaults map[string]string) *CredentialsService {
	if defaults == nil {
		defaults = map[string]string{}
	}
	return &CredentialsService{db: db, encryptor: encryptor, defaults: defaults}
}

// Get retrieves and decrypts the credential for a key. It falls back to the
// config-supplied default, then to empty string.
func (s *CredentialsService) Get(ctx context.Context, key string) (string, error) {
	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return s.defaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential %s: %w", key, err)
	}

	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting credential %s: %w", key, err)
	}
	return plaintext, nil
}

// Set encrypts and stores a credential. An empty value deletes the stored
// row so the config default applies again.
func (s *CredentialsService) Set(ctx context.Context, key, value string) error {
	if value == "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("clearing credential %s: %w", key, err)
		}
		return nil
	}

	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting credential %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, encrypted)
	if err != nil {
		return fmt.Errorf("storing credential %s: %w", key, err)
	}
	return nil
}

// StaticCredentials is a Credentials implementation backed by a plain map,
// for tests and database-less runs.
type StaticCredentials map[string]string

// Get returns the value for key, or empty string.
func (c StaticCredentials) Get(_ context.Context, key string) (string, error) {
	return c[key], nil
}
