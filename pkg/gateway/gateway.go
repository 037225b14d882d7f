// Package gateway abstracts the LLM provider behind a single interface:
// one ordered prompt in, text plus optional tool calls and usage out.
package gateway

import (
	"context"
	"errors"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

// ErrGateway marks any transport or provider failure. The orchestrator is
// the only layer that decides on fallback; everything below wraps into this.
var ErrGateway = errors.New("model gateway error")

// Conversation roles at the gateway boundary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn at the gateway boundary. An assistant turn may carry
// tool calls; a tool turn carries the correlation id of the call it answers.
type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []tool.Call `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// Usage reports the token consumption of one provider call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add sums two usage reports.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Request is the first model round-trip: system prompt, prior history in
// order, then the new user turn. Tools are advertised without forcing
// invocation; the model decides autonomously whether to call any.
type Request struct {
	SystemPrompt string
	History      []Message
	UserMessage  string
	Model        string
	MaxTokens    int
	Tools        []tool.Definition
}

// Response is the model's answer to a Request.
type Response struct {
	Text         string
	ToolCalls    []tool.Call
	Usage        Usage
	FinishReason string
}

// FinalRequest is the finalize round-trip: one result turn per tool result,
// correlated by id, appended to a history that already includes the
// assistant's tool-call turn. No further tool access is offered.
type FinalRequest struct {
	ToolResults []tool.CallResult
	History     []Message
	Model       string
	MaxTokens   int
}

// FinalResponse is the synthesized natural-language reply.
type FinalResponse struct {
	Text  string
	Usage Usage
}

// Gateway talks to one LLM provider.
type Gateway interface {
	SendMessage(ctx context.Context, req Request) (*Response, error)
	SendToolResults(ctx context.Context, req FinalRequest) (*FinalResponse, error)
}
