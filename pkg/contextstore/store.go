// Package contextstore persists the rolling per-lead conversation history,
// aggregate metadata, and a side-channel tool audit log.
package contextstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DefaultMaxHistory is the rolling window size: the store keeps at most this
// many turns per lead, trimming oldest first.
const DefaultMaxHistory = 20

// Turn is one stored message entry in a conversation.
type Turn struct {
	Role       string    `json:"role"` // user | assistant
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ToolsUsed  []string  `json:"tools_used,omitempty"`
	TokensUsed int       `json:"tokens_used,omitempty"`
}

// Metadata aggregates a lead's conversation totals.
type Metadata struct {
	TotalInteractions int       `json:"total_interactions"`
	TotalTokensUsed   int       `json:"total_tokens_used"`
	LastResponseAt    time.Time `json:"last_response_at,omitzero"`
}

// Context is a bounded conversation snapshot, oldest turn first.
type Context struct {
	History  []Turn   `json:"history"`
	Metadata Metadata `json:"metadata"`
}

// Interaction is one user message plus the agent's reply.
type Interaction struct {
	UserMessage string
	AIResponse  string
	ToolsUsed   []string
	TokensUsed  int
}

// ToolExecution is an audit entry for one tool invocation. It is not part of
// the model-visible history.
type ToolExecution struct {
	ToolName   string
	Parameters map[string]interface{}
	Result     map[string]interface{}
	Success    bool
}

// Store is a SQLite-backed context store. Read failures degrade to empty
// results and write failures are logged and swallowed; message delivery never
// blocks on context persistence.
type Store struct {
	db         *sql.DB
	logger     zerolog.Logger
	maxHistory int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxHistory overrides the rolling window size.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store on the given database and ensures its schema.
func New(db *sql.DB, logger zerolog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		db:         db,
		logger:     logger.With().Str("component", "context_store").Logger(),
		maxHistory: DefaultMaxHistory,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init context store schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	// The AUTOINCREMENT id is the per-lead ordering tiebreaker: both turns
	// of one interaction share a timestamp, so ordering by timestamp alone
	// is ambiguous.
	const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT NOT NULL,
	lead_id     TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	tools_used  TEXT NOT NULL DEFAULT '[]',
	tokens_used INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_lead ON conversation_turns(tenant_id, lead_id, id);

CREATE TABLE IF NOT EXISTS conversation_metadata (
	tenant_id          TEXT NOT NULL,
	lead_id            TEXT NOT NULL,
	total_interactions INTEGER NOT NULL DEFAULT 0,
	total_tokens_used  INTEGER NOT NULL DEFAULT 0,
	last_response_at   TIMESTAMP,
	PRIMARY KEY (tenant_id, lead_id)
);

CREATE TABLE IF NOT EXISTS tool_audit (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	lead_id    TEXT NOT NULL,
	tool_name  TEXT NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	result     TEXT NOT NULL DEFAULT '{}',
	success    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_lead ON tool_audit(tenant_id, lead_id, created_at);
`
	_, err := s.db.Exec(schema)
	return err
}

// GetContext returns the lead's bounded history (oldest to newest, at most
// the window size) and metadata. It never fails: read errors degrade to an
// empty history and zero-valued metadata.
func (s *Store) GetContext(ctx context.Context, tenantID, leadID string) Context {
	history, err := s.recentTurns(ctx, tenantID, leadID)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Str("lead", leadID).Msg("Failed to load history")
		history = nil
	}
	return Context{
		History:  history,
		Metadata: s.GetStats(ctx, tenantID, leadID),
	}
}

func (s *Store) recentTurns(ctx context.Context, tenantID, leadID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tools_used, tokens_used, created_at
		FROM conversation_turns
		WHERE tenant_id = ? AND lead_id = ?
		ORDER BY id DESC
		LIMIT ?`, tenantID, leadID, s.maxHistory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []Turn
	for rows.Next() {
		var t Turn
		var toolsJSON string
		if err := rows.Scan(&t.Role, &t.Content, &toolsJSON, &t.TokensUsed, &t.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(toolsJSON), &t.ToolsUsed); err != nil {
			t.ToolsUsed = nil
		}
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	history := make([]Turn, len(newestFirst))
	for i, t := range newestFirst {
		history[len(newestFirst)-1-i] = t
	}
	return history, nil
}

// AddInteraction appends one user and one assistant turn sharing a single
// write timestamp, updates the metadata aggregates, and trims the window.
// Failures are logged and swallowed.
func (s *Store) AddInteraction(ctx context.Context, tenantID, leadID string, in Interaction) {
	now := s.now().UTC()

	toolsJSON, err := json.Marshal(orEmpty(in.ToolsUsed))
	if err != nil {
		toolsJSON = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Str("lead", leadID).Msg("Failed to persist interaction")
		return
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_turns (tenant_id, lead_id, role, content, created_at)
		VALUES (?, ?, 'user', ?, ?)`,
		tenantID, leadID, in.UserMessage, now)
	if err == nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_turns (tenant_id, lead_id, role, content, tools_used, tokens_used, created_at)
			VALUES (?, ?, 'assistant', ?, ?, ?, ?)`,
			tenantID, leadID, in.AIResponse, string(toolsJSON), in.TokensUsed, now)
	}
	if err == nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_metadata (tenant_id, lead_id, total_interactions, total_tokens_used, last_response_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(tenant_id, lead_id) DO UPDATE SET
				total_interactions = total_interactions + 1,
				total_tokens_used  = total_tokens_used + excluded.total_tokens_used,
				last_response_at   = excluded.last_response_at`,
			tenantID, leadID, in.TokensUsed, now)
	}
	if err == nil {
		err = s.trimLocked(ctx, tx, tenantID, leadID)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Str("lead", leadID).Msg("Failed to persist interaction")
	}
}

func (s *Store) trimLocked(ctx context.Context, tx *sql.Tx, tenantID, leadID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_turns
		WHERE tenant_id = ? AND lead_id = ? AND id NOT IN (
			SELECT id FROM conversation_turns
			WHERE tenant_id = ? AND lead_id = ?
			ORDER BY id DESC
			LIMIT ?
		)`, tenantID, leadID, tenantID, leadID, s.maxHistory)
	return err
}

// AddToolExecution records a tool audit entry. Failures are logged and
// swallowed.
func (s *Store) AddToolExecution(ctx context.Context, tenantID, leadID string, exec ToolExecution) {
	id, err := gonanoid.New()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate audit id")
		return
	}

	paramsJSON, _ := json.Marshal(exec.Parameters)
	resultJSON, _ := json.Marshal(exec.Result)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_audit (id, tenant_id, lead_id, tool_name, parameters, result, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, leadID, exec.ToolName, string(paramsJSON), string(resultJSON), exec.Success, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Str("tool", exec.ToolName).Msg("Failed to persist tool audit entry")
	}
}

// ClearContext deletes all turns, audit entries, and metadata for the lead.
// Clearing an empty context is a no-op.
func (s *Store) ClearContext(ctx context.Context, tenantID, leadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear context: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"conversation_turns", "conversation_metadata", "tool_audit"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ? AND lead_id = ?", table),
			tenantID, leadID); err != nil {
			return fmt.Errorf("clear context: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear context: %w", err)
	}
	s.logger.Info().Str("tenant", tenantID).Str("lead", leadID).Msg("Context cleared")
	return nil
}

// GetStats returns the lead's metadata snapshot, zero-valued if absent or on
// read failure.
func (s *Store) GetStats(ctx context.Context, tenantID, leadID string) Metadata {
	var meta Metadata
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT total_interactions, total_tokens_used, last_response_at
		FROM conversation_metadata
		WHERE tenant_id = ? AND lead_id = ?`, tenantID, leadID).
		Scan(&meta.TotalInteractions, &meta.TotalTokensUsed, &last)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error().Err(err).Str("tenant", tenantID).Str("lead", leadID).Msg("Failed to load metadata")
		}
		return Metadata{}
	}
	if last.Valid {
		meta.LastResponseAt = last.Time
	}
	return meta
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
