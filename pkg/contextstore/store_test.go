package contextstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return s
}

func TestStore_GetContext_Empty(t *testing.T) {
	s := newTestStore(t)

	got := s.GetContext(context.Background(), "acme", "lead-1")
	assert.Empty(t, got.History)
	assert.Equal(t, Metadata{}, got.Metadata)
}

func TestStore_AddInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddInteraction(ctx, "acme", "lead-1", Interaction{
		UserMessage: "Hello",
		AIResponse:  "Hi! How can I help?",
		ToolsUsed:   []string{"echo"},
		TokensUsed:  42,
	})

	got := s.GetContext(ctx, "acme", "lead-1")
	require.Len(t, got.History, 2)

	user, assistant := got.History[0], got.History[1]
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, "Hello", user.Content)
	assert.Equal(t, "assistant", assistant.Role)
	assert.Equal(t, "Hi! How can I help?", assistant.Content)
	assert.Equal(t, []string{"echo"}, assistant.ToolsUsed)
	assert.Equal(t, 42, assistant.TokensUsed)

	// Both turns of one interaction share the write timestamp.
	assert.True(t, user.Timestamp.Equal(assistant.Timestamp))

	assert.Equal(t, 1, got.Metadata.TotalInteractions)
	assert.Equal(t, 42, got.Metadata.TotalTokensUsed)
	assert.False(t, got.Metadata.LastResponseAt.IsZero())
}

func TestStore_AddInteraction_MetadataAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.AddInteraction(ctx, "acme", "lead-1", Interaction{
			UserMessage: fmt.Sprintf("msg %d", i),
			AIResponse:  "ok",
			TokensUsed:  10,
		})
	}

	meta := s.GetStats(ctx, "acme", "lead-1")
	assert.Equal(t, 3, meta.TotalInteractions)
	assert.Equal(t, 30, meta.TotalTokensUsed)
}

func TestStore_RollingWindowTrims(t *testing.T) {
	s := newTestStore(t, WithMaxHistory(20))
	ctx := context.Background()

	// 15 interactions produce 30 turns; only the newest 20 survive.
	for i := 0; i < 15; i++ {
		s.AddInteraction(ctx, "acme", "lead-1", Interaction{
			UserMessage: fmt.Sprintf("question %d", i),
			AIResponse:  fmt.Sprintf("answer %d", i),
			TokensUsed:  1,
		})
	}

	got := s.GetContext(ctx, "acme", "lead-1")
	require.Len(t, got.History, 20)

	// Oldest surviving turn is the user half of interaction 5.
	assert.Equal(t, "user", got.History[0].Role)
	assert.Equal(t, "question 5", got.History[0].Content)
	assert.Equal(t, "answer 14", got.History[19].Content)

	// Metadata still counts everything ever seen.
	assert.Equal(t, 15, got.Metadata.TotalInteractions)
}

func TestStore_OrderingStableWithinInteraction(t *testing.T) {
	// A fixed clock gives every turn the same timestamp; insertion order
	// must still hold.
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s.AddInteraction(ctx, "acme", "lead-1", Interaction{
			UserMessage: fmt.Sprintf("u%d", i),
			AIResponse:  fmt.Sprintf("a%d", i),
		})
	}

	got := s.GetContext(ctx, "acme", "lead-1")
	require.Len(t, got.History, 8)
	for i := 0; i < 4; i++ {
		assert.Equal(t, fmt.Sprintf("u%d", i), got.History[2*i].Content)
		assert.Equal(t, fmt.Sprintf("a%d", i), got.History[2*i+1].Content)
	}
}

func TestStore_IsolationBetweenLeadsAndTenants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddInteraction(ctx, "acme", "lead-1", Interaction{UserMessage: "a", AIResponse: "b"})
	s.AddInteraction(ctx, "acme", "lead-2", Interaction{UserMessage: "c", AIResponse: "d"})
	s.AddInteraction(ctx, "globex", "lead-1", Interaction{UserMessage: "e", AIResponse: "f"})

	assert.Len(t, s.GetContext(ctx, "acme", "lead-1").History, 2)
	assert.Len(t, s.GetContext(ctx, "acme", "lead-2").History, 2)
	assert.Len(t, s.GetContext(ctx, "globex", "lead-1").History, 2)
	assert.Equal(t, "a", s.GetContext(ctx, "acme", "lead-1").History[0].Content)
}

func TestStore_ClearContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddInteraction(ctx, "acme", "lead-1", Interaction{UserMessage: "a", AIResponse: "b", TokensUsed: 5})
	s.AddToolExecution(ctx, "acme", "lead-1", ToolExecution{ToolName: "echo", Success: true})

	require.NoError(t, s.ClearContext(ctx, "acme", "lead-1"))

	got := s.GetContext(ctx, "acme", "lead-1")
	assert.Empty(t, got.History)
	assert.Equal(t, Metadata{}, got.Metadata)

	// Clearing an already empty context is a no-op.
	require.NoError(t, s.ClearContext(ctx, "acme", "lead-1"))
}

func TestStore_AddToolExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddToolExecution(ctx, "acme", "lead-1", ToolExecution{
		ToolName:   "manage_lead",
		Parameters: map[string]interface{}{"action": "add_tags"},
		Result:     map[string]interface{}{"success": true},
		Success:    true,
	})

	// Audit entries never appear in the model-visible history.
	assert.Empty(t, s.GetContext(ctx, "acme", "lead-1").History)
}
