// Package agent is the top-level message pipeline: it composes the rate
// limiter, context store, registry, prompt composer, model gateway, and tool
// executor into a single ProcessMessage entry point.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/internal/metrics"
	"github.com/leadpilot/leadpilot/pkg/channel"
	"github.com/leadpilot/leadpilot/pkg/contextstore"
	"github.com/leadpilot/leadpilot/pkg/gateway"
	"github.com/leadpilot/leadpilot/pkg/prompt"
	"github.com/leadpilot/leadpilot/pkg/ratelimit"
	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
	"github.com/leadpilot/leadpilot/pkg/toolexec"
)

// Outcome is the result of one inbound message. Handled=false defers to the
// caller's own static fallback; Response carries the delivered text when
// Handled is true.
type Outcome struct {
	Handled  bool   `json:"handled"`
	Response string `json:"response,omitempty"`
}

// Limiter is the slice of the rate limiter the pipeline needs.
type Limiter interface {
	CheckLimit(ctx context.Context, tenantID, leadID string, kind ratelimit.Kind) error
	IncrementUsage(ctx context.Context, tenantID, leadID string, kind ratelimit.Kind, tokens int)
}

// Service orchestrates message processing. Each invocation is an
// independent, stateless call chain; invocations may run concurrently,
// including for the same lead.
type Service struct {
	configs  tenant.ConfigStore
	leads    tenant.LeadReader
	registry *tool.Registry
	executor *toolexec.Executor
	limiter  Limiter
	contexts *contextstore.Store
	gateway  gateway.Gateway
	channel  channel.Deliverer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// Config holds Service dependencies. Metrics is optional.
type Config struct {
	Configs  tenant.ConfigStore
	Leads    tenant.LeadReader
	Registry *tool.Registry
	Executor *toolexec.Executor
	Limiter  Limiter
	Contexts *contextstore.Store
	Gateway  gateway.Gateway
	Channel  channel.Deliverer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Configs == nil:
		return nil, fmt.Errorf("tenant config store is required")
	case cfg.Leads == nil:
		return nil, fmt.Errorf("lead reader is required")
	case cfg.Registry == nil:
		return nil, fmt.Errorf("tool registry is required")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("tool executor is required")
	case cfg.Limiter == nil:
		return nil, fmt.Errorf("rate limiter is required")
	case cfg.Contexts == nil:
		return nil, fmt.Errorf("context store is required")
	case cfg.Gateway == nil:
		return nil, fmt.Errorf("model gateway is required")
	case cfg.Channel == nil:
		return nil, fmt.Errorf("channel deliverer is required")
	}

	return &Service{
		configs:  cfg.Configs,
		leads:    cfg.Leads,
		registry: cfg.Registry,
		executor: cfg.Executor,
		limiter:  cfg.Limiter,
		contexts: cfg.Contexts,
		gateway:  cfg.Gateway,
		channel:  cfg.Channel,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "agent").Logger(),
	}, nil
}

// ProcessMessage routes one inbound user message through the agent. All
// failures inside the pipeline are contained: the tenant's configured
// fallback behavior selects the outer outcome, and the caller only ever sees
// Handled true or false.
func (s *Service) ProcessMessage(ctx context.Context, tenantID, leadID, message string, leadData tenant.Lead) Outcome {
	start := time.Now()
	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("tenant", tenantID).
		Str("lead", leadID).
		Logger()
	logger.Debug().Msg("Processing inbound message")

	// Rate-limit rejection is a soft failure, decided before any model
	// call so a capped lead costs nothing.
	if err := s.limiter.CheckLimit(ctx, tenantID, leadID, ratelimit.KindMessage); err != nil {
		logger.Warn().Err(err).Msg("Message rejected by rate limiter")
		s.metrics.ObserveRateLimitRejection(tenantID, string(ratelimit.KindMessage))
		s.metrics.ObserveMessage(tenantID, false, time.Since(start))
		return Outcome{Handled: false}
	}

	outcome, err := s.run(ctx, tenantID, leadID, message, leadData, logger)
	if err != nil {
		outcome = s.fallback(ctx, tenantID, err, logger)
	}

	s.metrics.ObserveMessage(tenantID, outcome.Handled, time.Since(start))
	return outcome
}

// TestMessage runs the pipeline against an ephemeral lead so tenants can
// verify their configuration without a live channel.
func (s *Service) TestMessage(ctx context.Context, tenantID, message string, leadData tenant.Lead) Outcome {
	suffix, err := gonanoid.New()
	if err != nil {
		suffix = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	leadID := "test_" + suffix

	leadData = leadData.Merge(tenant.Lead{
		Name:  "Test User",
		Phone: "1234567890",
	})
	return s.ProcessMessage(ctx, tenantID, leadID, message, leadData)
}

// run is the fallible part of the pipeline; any returned error is mapped
// through the tenant's fallback behavior by the caller.
func (s *Service) run(ctx context.Context, tenantID, leadID, message string, leadData tenant.Lead, logger zerolog.Logger) (Outcome, error) {
	cfg, err := s.configs.AgentConfig(ctx, tenantID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load agent config: %w", err)
	}
	if cfg == nil || !cfg.Enabled {
		logger.Debug().Msg("Agent not enabled for tenant")
		return Outcome{Handled: false}, nil
	}

	convo := s.contexts.GetContext(ctx, tenantID, leadID)
	lead := s.resolveLead(ctx, tenantID, leadID, leadData, logger)
	enabledTools := s.registry.EnabledForTenant(ctx, tenantID)
	logger.Debug().Int("tools", len(enabledTools)).Int("history", len(convo.History)).Msg("Context assembled")

	systemPrompt := prompt.Build(prompt.Input{
		Personality:     cfg.Personality,
		BusinessContext: cfg.BusinessContext,
		AvailableTools:  enabledTools,
		Lead:            lead,
	})

	history := toGatewayHistory(convo.History)
	resp, err := s.gateway.SendMessage(ctx, gateway.Request{
		SystemPrompt: systemPrompt,
		History:      history,
		UserMessage:  message,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		Tools:        enabledTools,
	})
	if err != nil {
		s.metrics.ObserveModelCall(false)
		return Outcome{}, err
	}
	s.metrics.ObserveModelCall(true)

	if len(resp.ToolCalls) == 0 {
		return s.finish(ctx, tenantID, leadID, lead, message, resp.Text, nil, resp.Usage, logger)
	}

	logger.Info().Int("tool_calls", len(resp.ToolCalls)).Msg("Model requested tool calls")
	results := s.executor.ExecuteAll(ctx, tenantID, leadID, resp.ToolCalls)

	// The finalize round-trip needs the assistant's tool-call turn in
	// place before the result turns are appended.
	extended := append(history,
		gateway.Message{Role: gateway.RoleUser, Content: message},
		gateway.Message{Role: gateway.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls},
	)
	final, err := s.gateway.SendToolResults(ctx, gateway.FinalRequest{
		ToolResults: results,
		History:     extended,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		s.metrics.ObserveModelCall(false)
		return Outcome{}, err
	}
	s.metrics.ObserveModelCall(true)

	toolsUsed := make([]string, 0, len(results))
	for _, r := range results {
		toolsUsed = append(toolsUsed, r.Name)
	}
	return s.finish(ctx, tenantID, leadID, lead, message, final.Text, toolsUsed, resp.Usage.Add(final.Usage), logger)
}

// finish delivers the reply, persists the interaction, and increments usage.
// Only delivery is fatal; persistence and accounting are best-effort.
func (s *Service) finish(ctx context.Context, tenantID, leadID string, lead tenant.Lead, message, replyText string, toolsUsed []string, usage gateway.Usage, logger zerolog.Logger) (Outcome, error) {
	if err := s.channel.Deliver(ctx, tenantID, lead.Destination(), replyText); err != nil {
		return Outcome{}, fmt.Errorf("deliver reply: %w", err)
	}

	s.contexts.AddInteraction(ctx, tenantID, leadID, contextstore.Interaction{
		UserMessage: message,
		AIResponse:  replyText,
		ToolsUsed:   toolsUsed,
		TokensUsed:  usage.TotalTokens,
	})
	s.limiter.IncrementUsage(ctx, tenantID, leadID, ratelimit.KindMessage, usage.TotalTokens)
	s.metrics.ObserveTokens(tenantID, usage.TotalTokens)

	logger.Info().Int("tokens", usage.TotalTokens).Int("tools_used", len(toolsUsed)).Msg("Message handled")
	return Outcome{Handled: true, Response: replyText}, nil
}

// resolveLead loads the full lead profile, falling back to the
// caller-supplied data on any lookup failure.
func (s *Service) resolveLead(ctx context.Context, tenantID, leadID string, supplied tenant.Lead, logger zerolog.Logger) tenant.Lead {
	stored, err := s.leads.Lead(ctx, tenantID, leadID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load lead profile, using supplied data")
		return supplied
	}
	if stored == nil {
		return supplied
	}
	return stored.Merge(supplied)
}

// fallback maps a pipeline error through the tenant's configured fallback
// behavior. Every branch resolves to Handled=false; the branches differ
// only in operator signaling.
func (s *Service) fallback(ctx context.Context, tenantID string, pipelineErr error, logger zerolog.Logger) Outcome {
	logger.Error().Err(pipelineErr).Msg("Message pipeline failed")

	cfg, err := s.configs.AgentConfig(ctx, tenantID)
	if err != nil || cfg == nil {
		return Outcome{Handled: false}
	}

	switch cfg.Fallback.OnError {
	case tenant.OnErrorTrigger:
		logger.Info().Str("trigger", cfg.Fallback.DefaultTrigger).Msg("Falling back to static sequence")
	case tenant.OnErrorNotifyAdmin:
		logger.Error().Bool("notify_admin", true).Msg("Admin notification required for agent failure")
	}
	return Outcome{Handled: false}
}

func toGatewayHistory(turns []contextstore.Turn) []gateway.Message {
	history := make([]gateway.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, gateway.Message{Role: t.Role, Content: t.Content})
	}
	return history
}
