package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

func TestNewOpenAIGateway_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGateway("")
	assert.Error(t, err)

	g, err := NewOpenAIGateway("sk-test")
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestFormatToolsForOpenAI(t *testing.T) {
	defs := []tool.Definition{
		{
			Name:        "manage_lead",
			Description: "Tag and qualify leads",
			Parameters: map[string]tool.Property{
				"action": {Type: "string", Description: "Action", Enum: []string{"add_tags"}},
			},
			Required: []string{"action"},
		},
	}

	tools := FormatToolsForOpenAI(defs)
	require.Len(t, tools, 1)

	assert.Equal(t, "manage_lead", tools[0].Function.Name)
	assert.Equal(t, "Tag and qualify leads", tools[0].Function.Description.Value)

	params := map[string]interface{}(tools[0].Function.Parameters)
	assert.Equal(t, "object", params["type"])

	props, ok := params["properties"].(map[string]interface{})
	require.True(t, ok)
	action, ok := props["action"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", action["type"])

	required, ok := params["required"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"action"}, required)
}

func TestToOpenAIMessages(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
		{Role: RoleAssistant, Content: "", ToolCalls: []tool.Call{
			{ID: "call-1", Name: "echo", Parameters: map[string]interface{}{"message": "x"}},
		}},
		{Role: RoleTool, Content: `{"success":true}`, ToolCallID: "call-1"},
	}

	messages, err := toOpenAIMessages(history)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestToOpenAIMessages_UnknownRole(t *testing.T) {
	_, err := toOpenAIMessages([]Message{{Role: "system", Content: "x"}})
	assert.Error(t, err)
}

func TestUsage_Add(t *testing.T) {
	a := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	b := Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}

	sum := a.Add(b)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20}, sum)
}
