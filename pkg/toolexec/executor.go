// Package toolexec runs model-requested tool calls against the registry with
// validation, integration checks, and rate limiting. Every call produces
// exactly one result, regardless of outcome; no failure escapes as an error.
package toolexec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/internal/metrics"
	"github.com/leadpilot/leadpilot/pkg/contextstore"
	"github.com/leadpilot/leadpilot/pkg/ratelimit"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

// DefaultTimeout bounds a single tool execution. A hung tool blocks the
// whole pipeline for its message, so every call carries a deadline.
const DefaultTimeout = 30 * time.Second

// RateLimiter is the slice of the rate limiter the executor needs.
type RateLimiter interface {
	CheckLimit(ctx context.Context, tenantID, leadID string, kind ratelimit.Kind) error
	IncrementUsage(ctx context.Context, tenantID, leadID string, kind ratelimit.Kind, tokens int)
}

// Auditor records tool executions outside the model-visible history.
type Auditor interface {
	AddToolExecution(ctx context.Context, tenantID, leadID string, exec contextstore.ToolExecution)
}

// Executor validates, authorizes, and runs tool calls.
type Executor struct {
	registry *tool.Registry
	limiter  RateLimiter
	audit    Auditor
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	timeout  time.Duration
}

// Config holds executor dependencies. Audit and Metrics are optional.
type Config struct {
	Registry *tool.Registry
	Limiter  RateLimiter
	Audit    Auditor
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Timeout  time.Duration
}

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		registry: cfg.Registry,
		limiter:  cfg.Limiter,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "tool_executor").Logger(),
		timeout:  timeout,
	}, nil
}

// ExecuteAll runs the calls sequentially, in request order, and returns
// exactly one result per call with the same id at the same position.
// Sequential execution keeps per-lead side-effect ordering deterministic and
// bounds load on the external systems tools reach.
func (e *Executor) ExecuteAll(ctx context.Context, tenantID, leadID string, calls []tool.Call) []tool.CallResult {
	results := make([]tool.CallResult, len(calls))
	for i, call := range calls {
		results[i] = e.ExecuteSingle(ctx, tenantID, leadID, call)
	}
	return results
}

// ExecuteParallel runs the same per-call pipeline concurrently. Results keep
// the input order; audit and completion order become non-deterministic, so
// the default orchestrator path uses ExecuteAll instead.
func (e *Executor) ExecuteParallel(ctx context.Context, tenantID, leadID string, calls []tool.Call) []tool.CallResult {
	results := make([]tool.CallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call tool.Call) {
			defer wg.Done()
			results[i] = e.ExecuteSingle(ctx, tenantID, leadID, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// ExecuteSingle runs one call through the full pipeline: rate limit,
// registry lookup, parameter validation, integration check, execution.
// Every stage short-circuits into a structured failure result; nothing is
// ever thrown to the caller.
func (e *Executor) ExecuteSingle(ctx context.Context, tenantID, leadID string, call tool.Call) tool.CallResult {
	logger := e.logger.With().
		Str("tenant", tenantID).
		Str("lead", leadID).
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Logger()

	fail := func(errText string) tool.CallResult {
		e.metrics.ObserveToolExecution(call.Name, false, 0)
		return tool.CallResult{ID: call.ID, Name: call.Name, Result: tool.Failure(errText)}
	}

	if err := e.limiter.CheckLimit(ctx, tenantID, leadID, ratelimit.KindToolCall); err != nil {
		logger.Warn().Err(err).Msg("Tool call rejected by rate limiter")
		return fail(fmt.Sprintf("rate limit exceeded: %v", err))
	}

	impl := e.registry.Get(call.Name)
	if impl == nil {
		logger.Warn().Msg("Requested tool is not registered")
		return fail(fmt.Sprintf("tool %s is not available", call.Name))
	}

	if validation := e.registry.Validate(call.Name, call.Parameters); !validation.Valid {
		logger.Warn().Strs("errors", validation.Errors).Msg("Tool parameters failed validation")
		return fail("invalid parameters: " + strings.Join(validation.Errors, "; "))
	}

	if !impl.VerifyIntegration(ctx, tenantID) {
		logger.Warn().Msg("Tool integration not configured for tenant")
		return fail(fmt.Sprintf("tool %s requires additional configuration", call.Name))
	}

	start := time.Now()
	result := e.run(ctx, impl, tool.Request{
		TenantID:   tenantID,
		LeadID:     leadID,
		Parameters: call.Parameters,
	})
	duration := time.Since(start)

	logger.Debug().
		Bool("success", result.Success).
		Dur("duration", duration).
		Msg("Tool execution finished")
	e.metrics.ObserveToolExecution(call.Name, result.Success, duration)

	if result.Success {
		e.limiter.IncrementUsage(ctx, tenantID, leadID, ratelimit.KindToolCall, 0)
	}

	if e.audit != nil {
		e.audit.AddToolExecution(ctx, tenantID, leadID, contextstore.ToolExecution{
			ToolName:   call.Name,
			Parameters: call.Parameters,
			Result:     resultDoc(result),
			Success:    result.Success,
		})
	}

	return tool.CallResult{ID: call.ID, Name: call.Name, Result: result}
}

// run executes the tool under a deadline and converts panics into failure
// results so a misbehaving tool cannot abort the conversation.
func (e *Executor) run(ctx context.Context, impl tool.Tool, req tool.Request) (result tool.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Tool execution panicked")
			result = tool.Failure(fmt.Sprintf("tool execution failed unexpectedly: %v", r))
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan tool.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- tool.Failure(fmt.Sprintf("tool execution failed unexpectedly: %v", r))
			}
		}()
		done <- impl.Execute(execCtx, req)
	}()

	select {
	case result = <-done:
		return result
	case <-execCtx.Done():
		return tool.Failure(fmt.Sprintf("tool execution timeout after %v", e.timeout))
	}
}

func resultDoc(r tool.Result) map[string]interface{} {
	doc := map[string]interface{}{"success": r.Success}
	if r.Message != "" {
		doc["message"] = r.Message
	}
	if r.Data != nil {
		doc["data"] = r.Data
	}
	if r.Error != "" {
		doc["error"] = r.Error
	}
	return doc
}
