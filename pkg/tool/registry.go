package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/leadpilot/leadpilot/pkg/tenant"
)

// Registry holds every registered tool keyed by definition name. It is an
// owned, dependency-injected instance: each tool registers itself through an
// explicit bootstrap call, so tests can assemble a registry containing only
// the tools under test.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	configs tenant.ConfigStore
	logger  zerolog.Logger
}

// NewRegistry creates a registry scoped by the given tenant config store.
func NewRegistry(configs tenant.ConfigStore, logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
		configs: configs,
		logger:  logger.With().Str("component", "tool_registry").Logger(),
	}
}

// Register adds a tool under its definition name. Re-registration under the
// same name overwrites the previous tool with a warning.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool definition has empty name")
	}
	if def.Description == "" {
		return fmt.Errorf("tool %s has empty description", def.Name)
	}

	schema, err := def.CompileSchema()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		r.logger.Warn().Str("tool", def.Name).Msg("Tool already registered, overwriting")
	}
	r.tools[def.Name] = t
	r.schemas[def.Name] = schema

	r.logger.Info().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns every registered tool, sorted by name for stable iteration.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// AllDefinitions returns the definitions of every registered tool.
func (r *Registry) AllDefinitions() []Definition {
	all := r.All()
	defs := make([]Definition, 0, len(all))
	for _, t := range all {
		defs = append(defs, t.Definition())
	}
	return defs
}

// EnabledForTenant intersects the registered tools with the tenant's
// enabled-tools allow list. A missing or absent configuration yields an
// empty result; enablement fails closed.
func (r *Registry) EnabledForTenant(ctx context.Context, tenantID string) []Definition {
	cfg, err := r.configs.AgentConfig(ctx, tenantID)
	if err != nil {
		r.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to load agent config, no tools enabled")
		return nil
	}
	if cfg == nil || len(cfg.EnabledTools) == 0 {
		return nil
	}

	enabled := make(map[string]bool, len(cfg.EnabledTools))
	for _, name := range cfg.EnabledTools {
		enabled[name] = true
	}

	var defs []Definition
	for _, t := range r.All() {
		def := t.Definition()
		if enabled[def.Name] {
			defs = append(defs, def)
		}
	}
	return defs
}

// IsEnabled reports whether the named tool is in the tenant's allow list.
func (r *Registry) IsEnabled(ctx context.Context, name, tenantID string) bool {
	cfg, err := r.configs.AgentConfig(ctx, tenantID)
	if err != nil || cfg == nil {
		return false
	}
	for _, enabled := range cfg.EnabledTools {
		if enabled == name {
			return true
		}
	}
	return false
}

// Validate checks params against the named tool's compiled parameter schema.
// Validation covers required-field presence and primitive type agreement for
// present fields.
func (r *Registry) Validate(name string, params map[string]interface{}) Validation {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()

	if schema == nil {
		return Validation{Valid: false, Errors: []string{fmt.Sprintf("unknown tool: %s", name)}}
	}
	return validateAgainst(schema, params)
}

// Unregister removes a tool. It reports whether the tool was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	delete(r.schemas, name)
	r.logger.Info().Str("tool", name).Msg("Tool unregistered")
	return true
}

// Clear removes every registered tool.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]Tool)
	r.schemas = make(map[string]*gojsonschema.Schema)
	r.logger.Info().Msg("All tools cleared")
}

// Info summarizes one registered tool for UI and debug consumption.
type Info struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ParameterCount int      `json:"parameter_count"`
	RequiredParams []string `json:"required_params"`
}

// ToolsInfo returns a summary of every registered tool.
func (r *Registry) ToolsInfo() []Info {
	all := r.All()
	infos := make([]Info, 0, len(all))
	for _, t := range all {
		def := t.Definition()
		infos = append(infos, Info{
			Name:           def.Name,
			Description:    def.Description,
			ParameterCount: len(def.Parameters),
			RequiredParams: def.Required,
		})
	}
	return infos
}
