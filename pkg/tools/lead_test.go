package tools

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

func newLeadFixture() (*LeadTool, *tenant.MemoryStore) {
	store := tenant.NewMemoryStore()
	store.PutLead("acme", &tenant.Lead{
		ID:     "lead-1",
		Name:   "Ana",
		Phone:  "5215512345678",
		Status: "new",
		Tags:   []string{"inbound"},
		Source: "whatsapp",
	})
	return NewLeadTool(store, zerolog.Nop()), store
}

func TestLeadTool_AddTags(t *testing.T) {
	lt, store := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{
			"action": "add_tags",
			"tags":   []interface{}{"vip", "hot"},
		},
	})

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "vip")

	lead, err := store.Lead(context.Background(), "acme", "lead-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inbound", "vip", "hot"}, lead.Tags)
}

func TestLeadTool_AddTags_Empty(t *testing.T) {
	lt, _ := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{"action": "add_tags"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tag")
}

func TestLeadTool_RemoveTags(t *testing.T) {
	lt, store := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{
			"action": "remove_tags",
			"tags":   []interface{}{"inbound", "missing"},
		},
	})

	require.True(t, res.Success)
	lead, err := store.Lead(context.Background(), "acme", "lead-1")
	require.NoError(t, err)
	assert.Empty(t, lead.Tags)
}

func TestLeadTool_SetStatus(t *testing.T) {
	lt, store := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{
			"action": "set_status",
			"status": "qualified",
		},
	})

	require.True(t, res.Success)
	lead, err := store.Lead(context.Background(), "acme", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "qualified", lead.Status)
}

func TestLeadTool_GetInfo(t *testing.T) {
	lt, _ := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{"action": "get_info"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "Ana", res.Data["name"])
	assert.Equal(t, "new", res.Data["status"])
}

func TestLeadTool_GetInfo_Missing(t *testing.T) {
	lt, _ := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "ghost",
		Parameters: map[string]interface{}{"action": "get_info"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestLeadTool_UnknownAction(t *testing.T) {
	lt, _ := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "lead-1",
		Parameters: map[string]interface{}{"action": "explode"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown action")
}

func TestLeadTool_MutationOnMissingLeadFails(t *testing.T) {
	lt, _ := newLeadFixture()

	res := lt.Execute(context.Background(), tool.Request{
		TenantID: "acme", LeadID: "ghost",
		Parameters: map[string]interface{}{
			"action": "set_status",
			"status": "qualified",
		},
	})
	assert.False(t, res.Success)
}

func TestStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringSlice([]string{"a", "b"}))
	assert.Equal(t, []string{"a"}, stringSlice([]interface{}{"a", 3, ""}))
	assert.Nil(t, stringSlice("a"))
	assert.Nil(t, stringSlice(nil))
}
