package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

// Defaults applied when the tenant configuration leaves them unset.
const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// OpenAIGateway implements Gateway on the OpenAI chat completions API with
// function calling.
type OpenAIGateway struct {
	client openai.Client
}

// NewOpenAIGateway creates a gateway for the given API key.
func NewOpenAIGateway(apiKey string) (*OpenAIGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return &OpenAIGateway{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// SendMessage implements Gateway.
func (g *OpenAIGateway) SendMessage(ctx context.Context, req Request) (*Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.SystemPrompt),
	}
	history, err := toOpenAIMessages(req.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	messages = append(messages, history...)
	messages = append(messages, openai.UserMessage(req.UserMessage))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(orDefault(req.Model, DefaultModel)),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(orDefaultInt(req.MaxTokens, DefaultMaxTokens))),
		Temperature: openai.Float(defaultTemperature),
	}
	if len(req.Tools) > 0 {
		params.Tools = FormatToolsForOpenAI(req.Tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat completion: %v", ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrGateway)
	}

	choice := resp.Choices[0]
	out := &Response{
		Text:         choice.Message.Content,
		Usage:        usageFrom(resp.Usage),
		FinishReason: string(choice.FinishReason),
	}

	for _, tc := range choice.Message.ToolCalls {
		var parameters map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &parameters); err != nil {
			return nil, fmt.Errorf("%w: parse tool arguments for %s: %v", ErrGateway, tc.Function.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, tool.Call{
			ID:         tc.ID,
			Name:       tc.Function.Name,
			Parameters: parameters,
		})
	}
	return out, nil
}

// SendToolResults implements Gateway. The history must already contain the
// assistant's tool-call turn; one tool message per result is appended,
// correlated by id, and the model is asked for a final synthesis with no
// tool access.
func (g *OpenAIGateway) SendToolResults(ctx context.Context, req FinalRequest) (*FinalResponse, error) {
	messages, err := toOpenAIMessages(req.History)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	for _, tr := range req.ToolResults {
		content, err := json.Marshal(tr.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal result for tool %s: %v", ErrGateway, tr.Name, err)
		}
		messages = append(messages, openai.ToolMessage(string(content), tr.ID))
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(orDefault(req.Model, DefaultModel)),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(orDefaultInt(req.MaxTokens, DefaultMaxTokens))),
		Temperature: openai.Float(defaultTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai tool result completion: %v", ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrGateway)
	}

	return &FinalResponse{
		Text:  resp.Choices[0].Message.Content,
		Usage: usageFrom(resp.Usage),
	}, nil
}

// FormatToolsForOpenAI translates internal tool definitions into the OpenAI
// function-call schema.
func FormatToolsForOpenAI(defs []tool.Definition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		schema := def.SchemaMap()
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return tools
}

func toOpenAIMessages(history []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Parameters)
				if err != nil {
					return nil, fmt.Errorf("marshal parameters for tool call %s: %v", tc.ID, err)
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			assistantMsg := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: toolCalls,
			}
			messages = append(messages, assistantMsg.ToParam())
		case RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}
	return messages, nil
}

func usageFrom(u openai.CompletionUsage) Usage {
	return Usage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
