package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

// AnthropicGateway implements Gateway on the Anthropic Messages API.
type AnthropicGateway struct {
	client anthropic.Client
}

// NewAnthropicGateway creates a gateway for the given API key.
func NewAnthropicGateway(apiKey string) (*AnthropicGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicGateway{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// SendMessage implements Gateway.
func (g *AnthropicGateway) SendMessage(ctx context.Context, req Request) (*Response, error) {
	messages, err := toAnthropicMessages(req.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(orDefaultInt(req.MaxTokens, DefaultMaxTokens)),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = formatToolsForAnthropic(req.Tools)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic message: %v", ErrGateway, err)
	}

	out := &Response{
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		FinishReason: string(resp.StopReason),
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += b.Text
		case anthropic.ToolUseBlock:
			var parameters map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &parameters); err != nil {
				return nil, fmt.Errorf("%w: parse tool input for %s: %v", ErrGateway, b.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, tool.Call{
				ID:         b.ID,
				Name:       b.Name,
				Parameters: parameters,
			})
		}
	}
	return out, nil
}

// SendToolResults implements Gateway.
func (g *AnthropicGateway) SendToolResults(ctx context.Context, req FinalRequest) (*FinalResponse, error) {
	messages, err := toAnthropicMessages(req.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	for _, tr := range req.ToolResults {
		content, err := json.Marshal(tr.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal result for tool %s: %v", ErrGateway, tr.Name, err)
		}
		messages = append(messages, anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(tr.ID, string(content), !tr.Result.Success),
		))
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(orDefaultInt(req.MaxTokens, DefaultMaxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic tool result message: %v", ErrGateway, err)
	}

	out := &FinalResponse{
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.Text += b.Text
		}
	}
	return out, nil
}

func formatToolsForAnthropic(defs []tool.Definition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := def.SchemaMap()
		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		if len(def.Required) > 0 {
			toolParam.InputSchema.Required = def.Required
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}

func toAnthropicMessages(history []Message) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		switch {
		case msg.Role == RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Parameters, tc.Name))
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case msg.Role == RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		case msg.Role == RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}
	return messages, nil
}
