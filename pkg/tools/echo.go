// Package tools contains the built-in tool implementations and their
// explicit registration bootstrap.
package tools

import (
	"context"
	"fmt"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

// EchoTool repeats its input. It exists for configuration diagnostics: a
// tenant can verify the whole tool pipeline without side effects.
type EchoTool struct{}

// NewEchoTool creates an EchoTool.
func NewEchoTool() *EchoTool {
	return &EchoTool{}
}

// Execute implements tool.Tool.
func (t *EchoTool) Execute(_ context.Context, req tool.Request) tool.Result {
	message, _ := req.Parameters["message"].(string)
	if message == "" {
		return tool.Failure("message is required")
	}
	return tool.Result{
		Success: true,
		Message: fmt.Sprintf("Echo: %s", message),
		Data:    map[string]interface{}{"message": message},
	}
}

// VerifyIntegration implements tool.Tool. Echo has no external dependency.
func (t *EchoTool) VerifyIntegration(context.Context, string) bool {
	return true
}

// Definition implements tool.Tool.
func (t *EchoTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "echo",
		Description: "Repeats a message back. Used only to verify that the agent's tool pipeline is working.",
		Parameters: map[string]tool.Property{
			"message": {
				Type:        "string",
				Description: "The message to repeat",
			},
		},
		Required: []string{"message"},
	}
}
