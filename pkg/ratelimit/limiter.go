// Package ratelimit enforces per-tenant daily usage ceilings on messages,
// tool calls, and tokens, and keeps the day-keyed counters behind them.
package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/pkg/tenant"
)

// Kind is the category of rate-limited operation.
type Kind string

const (
	KindMessage  Kind = "message"
	KindToolCall Kind = "tool_call"

	kindTokens = "tokens" // internal counter row, never checked directly
)

// ErrLimitExceeded marks a rejected operation. Callers match it with
// errors.Is.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Limits are the daily ceilings applied when the tenant configuration leaves
// a value unset.
type Limits struct {
	MessagesPerLeadPerDay int
	ToolCallsPerDay       int
	TokensPerDay          int
}

// DefaultLimits mirrors the product defaults.
var DefaultLimits = Limits{
	MessagesPerLeadPerDay: 50,
	ToolCallsPerDay:       100,
	TokensPerDay:          1_000_000,
}

// Token pricing used for the daily cost estimate: $5/M input and $15/M
// output, averaged assuming a 50/50 split.
const avgPricePerToken = (5.0 + 15.0) / 2 / 1_000_000

// retentionDays is the counter retention horizon.
const retentionDays = 30

// Stats aggregates one tenant day.
type Stats struct {
	Date              string  `json:"date"`
	MessagesProcessed int     `json:"messages_processed"`
	ToolCallsExecuted int     `json:"tool_calls_executed"`
	TokensUsed        int     `json:"tokens_used"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
}

// Limiter is a SQLite-backed daily usage limiter. Check and increment are
// two separate operations: two concurrent requests for the same lead can
// both pass the check before either increments. That soft-limit race is
// accepted in exchange for availability.
type Limiter struct {
	db      *sql.DB
	configs tenant.ConfigStore
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, mostly for day-boundary tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter on the given database and ensures its schema.
func New(db *sql.DB, configs tenant.ConfigStore, logger zerolog.Logger, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		db:      db,
		configs: configs,
		logger:  logger.With().Str("component", "rate_limiter").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS usage_counters (
	tenant_id TEXT NOT NULL,
	day       TEXT NOT NULL,
	lead_id   TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL,
	count     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, day, lead_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_usage_day ON usage_counters(tenant_id, day);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init usage counter schema: %w", err)
	}
	return l, nil
}

// CheckLimit fails with ErrLimitExceeded iff the current day's counter for
// the (tenant, lead, kind) key is already at or above the applicable
// ceiling. Counter read failures are logged and allow the operation through
// rather than blocking traffic.
func (l *Limiter) CheckLimit(ctx context.Context, tenantID, leadID string, kind Kind) error {
	day := l.dayKey(l.now())
	limits := l.tenantLimits(ctx, tenantID)

	switch kind {
	case KindMessage:
		count, err := l.counter(ctx, tenantID, day, leadID, string(KindMessage))
		if err != nil {
			l.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to read message counter, allowing")
			return nil
		}
		if count >= limits.MessagesPerLeadPerDay {
			return fmt.Errorf("%w: maximum %d messages per lead per day", ErrLimitExceeded, limits.MessagesPerLeadPerDay)
		}
	case KindToolCall:
		count, err := l.counter(ctx, tenantID, day, "", string(KindToolCall))
		if err != nil {
			l.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to read tool call counter, allowing")
			return nil
		}
		if count >= limits.ToolCallsPerDay {
			return fmt.Errorf("%w: maximum %d tool calls per day", ErrLimitExceeded, limits.ToolCallsPerDay)
		}
	default:
		return fmt.Errorf("unknown rate limit kind: %s", kind)
	}
	return nil
}

// IncrementUsage adds to the day's counters: the per-lead message count or
// the tenant-wide tool-call count, plus the tenant-wide token sum when
// tokens > 0. It is best-effort and safe to call unconditionally; failures
// are logged and swallowed.
func (l *Limiter) IncrementUsage(ctx context.Context, tenantID, leadID string, kind Kind, tokens int) {
	day := l.dayKey(l.now())

	switch kind {
	case KindMessage:
		if leadID != "" {
			l.add(ctx, tenantID, day, leadID, string(KindMessage), 1)
		}
	case KindToolCall:
		l.add(ctx, tenantID, day, "", string(KindToolCall), 1)
	}

	if tokens > 0 {
		l.add(ctx, tenantID, day, "", kindTokens, tokens)
	}
}

func (l *Limiter) add(ctx context.Context, tenantID, day, leadID, kind string, n int) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_counters (tenant_id, day, lead_id, kind, count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, day, lead_id, kind) DO UPDATE SET count = count + excluded.count`,
		tenantID, day, leadID, kind, n)
	if err != nil {
		l.logger.Error().Err(err).Str("tenant", tenantID).Str("kind", kind).Msg("Failed to increment usage counter")
	}
}

// GetUsageStats aggregates the given day (today when date is empty) for a
// tenant: messages across all leads, tool calls, tokens, and the estimated
// cost from the fixed price table.
func (l *Limiter) GetUsageStats(ctx context.Context, tenantID, date string) (Stats, error) {
	if date == "" {
		date = l.dayKey(l.now())
	}
	stats := Stats{Date: date}

	err := l.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'message'   THEN count END), 0),
			COALESCE(SUM(CASE WHEN kind = 'tool_call' THEN count END), 0),
			COALESCE(SUM(CASE WHEN kind = 'tokens'    THEN count END), 0)
		FROM usage_counters
		WHERE tenant_id = ? AND day = ?`, tenantID, date).
		Scan(&stats.MessagesProcessed, &stats.ToolCallsExecuted, &stats.TokensUsed)
	if err != nil {
		return Stats{Date: date}, fmt.Errorf("read usage stats: %w", err)
	}

	stats.EstimatedCostUSD = estimateCost(stats.TokensUsed)
	return stats, nil
}

// CleanOldUsage purges the tenant's counters older than the retention
// horizon.
func (l *Limiter) CleanOldUsage(ctx context.Context, tenantID string) error {
	cutoff := l.dayKey(l.now().AddDate(0, 0, -retentionDays))

	res, err := l.db.ExecContext(ctx,
		`DELETE FROM usage_counters WHERE tenant_id = ? AND day < ?`, tenantID, cutoff)
	if err != nil {
		return fmt.Errorf("clean old usage: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		l.logger.Info().Str("tenant", tenantID).Int64("purged", n).Msg("Purged old usage counters")
	}
	return nil
}

// CleanAllOldUsage purges expired counters for every tenant present in the
// counter table.
func (l *Limiter) CleanAllOldUsage(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM usage_counters`)
	if err != nil {
		return fmt.Errorf("list tenants with usage: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("list tenants with usage: %w", err)
		}
		tenants = append(tenants, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tenants with usage: %w", err)
	}

	for _, id := range tenants {
		if err := l.CleanOldUsage(ctx, id); err != nil {
			l.logger.Error().Err(err).Str("tenant", id).Msg("Failed to purge usage counters")
		}
	}
	return nil
}

func (l *Limiter) counter(ctx context.Context, tenantID, day, leadID, kind string) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT count FROM usage_counters
		WHERE tenant_id = ? AND day = ? AND lead_id = ? AND kind = ?`,
		tenantID, day, leadID, kind).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (l *Limiter) tenantLimits(ctx context.Context, tenantID string) Limits {
	limits := DefaultLimits

	cfg, err := l.configs.AgentConfig(ctx, tenantID)
	if err != nil {
		l.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to load tenant limits, using defaults")
		return limits
	}
	if cfg == nil {
		return limits
	}

	if cfg.RateLimits.MaxMessagesPerLeadPerDay > 0 {
		limits.MessagesPerLeadPerDay = cfg.RateLimits.MaxMessagesPerLeadPerDay
	}
	if cfg.RateLimits.MaxToolCallsPerDay > 0 {
		limits.ToolCallsPerDay = cfg.RateLimits.MaxToolCallsPerDay
	}
	if cfg.RateLimits.MaxTokensPerDay > 0 {
		limits.TokensPerDay = cfg.RateLimits.MaxTokensPerDay
	}
	return limits
}

func (l *Limiter) dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func estimateCost(tokens int) float64 {
	cost := float64(tokens) * avgPricePerToken
	return math.Round(cost*10000) / 10000
}
