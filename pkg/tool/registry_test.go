package tool

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/pkg/tenant"
)

type fakeTool struct {
	def     Definition
	result  Result
	checkOK bool
}

func (f *fakeTool) Execute(ctx context.Context, req Request) Result { return f.result }
func (f *fakeTool) VerifyIntegration(ctx context.Context, tenantID string) bool {
	return f.checkOK
}
func (f *fakeTool) Definition() Definition { return f.def }

func newFakeTool(name string) *fakeTool {
	return &fakeTool{
		def: Definition{
			Name:        name,
			Description: "A test tool",
			Parameters: map[string]Property{
				"message": {Type: "string", Description: "Message input"},
			},
			Required: []string{"message"},
		},
		result:  Result{Success: true, Message: "ok"},
		checkOK: true,
	}
}

func newTestRegistry(configs tenant.ConfigStore) *Registry {
	if configs == nil {
		configs = tenant.NewMemoryStore()
	}
	return NewRegistry(configs, zerolog.Nop())
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(nil)

	err := r.Register(newFakeTool("echo"))
	require.NoError(t, err)

	assert.NotNil(t, r.Get("echo"))
	assert.Nil(t, r.Get("missing"))
}

func TestRegistry_Register_InvalidDefinition(t *testing.T) {
	r := newTestRegistry(nil)

	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "empty name",
			def:  Definition{Description: "Test"},
		},
		{
			name: "empty description",
			def:  Definition{Name: "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(&fakeTool{def: tt.def})
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Register_Overwrite(t *testing.T) {
	r := newTestRegistry(nil)

	first := newFakeTool("echo")
	second := newFakeTool("echo")
	second.def.Description = "Replacement"

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	assert.Equal(t, "Replacement", r.Get("echo").Definition().Description)
	assert.Len(t, r.All(), 1)
}

func TestRegistry_All_SortedByName(t *testing.T) {
	r := newTestRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(newFakeTool(name)))
	}

	var names []string
	for _, tl := range r.All() {
		names = append(names, tl.Definition().Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegistry_EnabledForTenant(t *testing.T) {
	store := tenant.NewMemoryStore()
	store.SetAgentConfig("acme", &tenant.AgentConfig{
		Enabled:      true,
		EnabledTools: []string{"echo", "manage_lead", "not_registered"},
	})

	r := newTestRegistry(store)
	require.NoError(t, r.Register(newFakeTool("echo")))
	require.NoError(t, r.Register(newFakeTool("manage_lead")))
	require.NoError(t, r.Register(newFakeTool("create_calendar_event")))

	defs := r.EnabledForTenant(context.Background(), "acme")
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "manage_lead", defs[1].Name)
}

func TestRegistry_EnabledForTenant_FailsClosed(t *testing.T) {
	r := newTestRegistry(tenant.NewMemoryStore())
	require.NoError(t, r.Register(newFakeTool("echo")))

	// Unknown tenant has no configuration, so nothing is enabled.
	assert.Empty(t, r.EnabledForTenant(context.Background(), "unknown"))
}

func TestRegistry_IsEnabled(t *testing.T) {
	store := tenant.NewMemoryStore()
	store.SetAgentConfig("acme", &tenant.AgentConfig{EnabledTools: []string{"echo"}})

	r := newTestRegistry(store)
	require.NoError(t, r.Register(newFakeTool("echo")))

	assert.True(t, r.IsEnabled(context.Background(), "echo", "acme"))
	assert.False(t, r.IsEnabled(context.Background(), "manage_lead", "acme"))
	assert.False(t, r.IsEnabled(context.Background(), "echo", "other"))
}

func TestRegistry_Validate(t *testing.T) {
	r := newTestRegistry(nil)
	tl := &fakeTool{
		def: Definition{
			Name:        "manage_lead",
			Description: "Lead management",
			Parameters: map[string]Property{
				"action": {Type: "string", Description: "Action", Enum: []string{"add_tags", "set_status"}},
				"tags":   {Type: "array", Description: "Tags"},
				"count":  {Type: "number", Description: "Count"},
			},
			Required: []string{"action"},
		},
	}
	require.NoError(t, r.Register(tl))

	tests := []struct {
		name   string
		params map[string]interface{}
		valid  bool
	}{
		{
			name:   "valid",
			params: map[string]interface{}{"action": "add_tags", "tags": []interface{}{"vip"}},
			valid:  true,
		},
		{
			name:   "missing required",
			params: map[string]interface{}{"tags": []interface{}{"vip"}},
			valid:  false,
		},
		{
			name:   "wrong type",
			params: map[string]interface{}{"action": "add_tags", "count": "three"},
			valid:  false,
		},
		{
			name:   "enum violation",
			params: map[string]interface{}{"action": "explode"},
			valid:  false,
		},
		{
			name:   "undeclared params allowed",
			params: map[string]interface{}{"action": "set_status", "extra": 1},
			valid:  true,
		},
		{
			name:   "nil params fails required",
			params: nil,
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Validate("manage_lead", tt.params)
			assert.Equal(t, tt.valid, v.Valid)
			if !tt.valid {
				assert.NotEmpty(t, v.Errors)
			}
		})
	}
}

func TestRegistry_Validate_UnknownTool(t *testing.T) {
	r := newTestRegistry(nil)
	v := r.Validate("missing", map[string]interface{}{})
	assert.False(t, v.Valid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "unknown tool")
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(newFakeTool("echo")))

	assert.True(t, r.Unregister("echo"))
	assert.False(t, r.Unregister("echo"))
	assert.Nil(t, r.Get("echo"))
}

func TestRegistry_ToolsInfo(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(newFakeTool("echo")))

	infos := r.ToolsInfo()
	require.Len(t, infos, 1)
	assert.Equal(t, "echo", infos[0].Name)
	assert.Equal(t, 1, infos[0].ParameterCount)
	assert.Equal(t, []string{"message"}, infos[0].RequiredParams)
}
