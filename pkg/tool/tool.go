// Package tool defines the capability contract for pluggable agent actions
// and the registry that scopes them per tenant.
package tool

import "context"

// Property describes one parameter in a tool definition. Only the primitive
// shape is declared; nested object and array contents are not validated.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Definition is the model-facing description of a tool. Names are unique
// across the whole process; per-tenant enablement is an allow-list filter
// over that single namespace.
type Definition struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  map[string]Property `json:"parameters"`
	Required    []string            `json:"required,omitempty"`
}

// Call is a model-issued request to invoke a named tool. ID is the
// correlation key linking the call to its result.
type Call struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Result is the outcome of one tool execution. User and input errors are
// represented as Success=false, never as a Go error; only genuinely
// unexpected faults are converted at the executor boundary.
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CallResult pairs a correlation id with the result of its call.
type CallResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result Result `json:"result"`
}

// Request carries the execution context for one tool invocation.
type Request struct {
	TenantID   string
	LeadID     string
	Parameters map[string]interface{}
}

// Tool is the capability contract every pluggable action implements.
// Adding a tool means implementing this interface and registering it;
// shared code never branches on the concrete type.
type Tool interface {
	// Execute runs the tool. Input problems must come back as a failed
	// Result, not an error.
	Execute(ctx context.Context, req Request) Result

	// VerifyIntegration reports whether the tenant has the external
	// account or credentials this tool depends on. Tools without an
	// external dependency return true.
	VerifyIntegration(ctx context.Context, tenantID string) bool

	// Definition returns the model-facing tool definition.
	Definition() Definition
}

// Failure builds a failed Result with the given error text.
func Failure(errText string) Result {
	return Result{Success: false, Error: errText}
}
