// Package integration stores per-tenant credentials for tools that depend on
// connected external accounts. Payloads are opaque to the agent core and
// encrypted at rest.
package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Credentials is one tenant's connection to an external service.
type Credentials struct {
	Enabled      bool              `json:"enabled"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	Expiry       time.Time         `json:"expiry,omitzero"`
	CalendarID   string            `json:"calendar_id,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Expired reports whether the access token is past its expiry. A zero
// expiry never expires.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

// Store persists encrypted credential documents keyed by tenant and
// integration name.
type Store struct {
	db     *sql.DB
	cipher *Cipher
	logger zerolog.Logger
}

// NewStore creates a Store on the given database and ensures its schema.
func NewStore(db *sql.DB, cipher *Cipher, logger zerolog.Logger) (*Store, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS integration_credentials (
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (tenant_id, name)
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init integration schema: %w", err)
	}
	return &Store{
		db:     db,
		cipher: cipher,
		logger: logger.With().Str("component", "integration_store").Logger(),
	}, nil
}

// Get returns the tenant's credentials for the named integration, or
// (nil, nil) when none are stored.
func (s *Store) Get(ctx context.Context, tenantID, name string) (*Credentials, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM integration_credentials WHERE tenant_id = ? AND name = ?`,
		tenantID, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials %s/%s: %w", tenantID, name, err)
	}

	plaintext, err := s.cipher.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials %s/%s: %w", tenantID, name, err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s/%s: %w", tenantID, name, err)
	}
	return &creds, nil
}

// Put stores the tenant's credentials for the named integration.
func (s *Store) Put(ctx context.Context, tenantID, name string, creds Credentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	payload, err := s.cipher.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO integration_credentials (tenant_id, name, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, name) DO UPDATE SET
			payload = excluded.payload, updated_at = excluded.updated_at`,
		tenantID, name, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store credentials %s/%s: %w", tenantID, name, err)
	}

	s.logger.Info().Str("tenant", tenantID).Str("integration", name).Msg("Credentials stored")
	return nil
}

// Delete removes the tenant's credentials for the named integration.
func (s *Store) Delete(ctx context.Context, tenantID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM integration_credentials WHERE tenant_id = ? AND name = ?`, tenantID, name)
	if err != nil {
		return fmt.Errorf("delete credentials %s/%s: %w", tenantID, name, err)
	}
	return nil
}
