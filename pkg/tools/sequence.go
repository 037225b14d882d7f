package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

// SequenceInfo describes one automated message sequence.
type SequenceInfo struct {
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	MessageCount int    `json:"message_count"`
}

// SequenceScheduler is the automated-sequence collaborator. The scheduling
// engine itself lives outside this repository.
type SequenceScheduler interface {
	// Activate schedules the named sequence for the lead and returns the
	// number of steps scheduled; zero means the sequence does not exist
	// or is already active.
	Activate(ctx context.Context, tenantID, leadID, trigger string) (int, error)
	Cancel(ctx context.Context, tenantID, leadID, trigger string) (int, error)
	CancelAll(ctx context.Context, tenantID, leadID string) error
	Pause(ctx context.Context, tenantID, leadID string) error
	Resume(ctx context.Context, tenantID, leadID string) error
	List(ctx context.Context, tenantID string) ([]SequenceInfo, error)
}

// SequenceTool lets the model drive automated message sequences for the
// lead.
type SequenceTool struct {
	scheduler SequenceScheduler
	logger    zerolog.Logger
}

// NewSequenceTool creates a SequenceTool over the given scheduler.
func NewSequenceTool(scheduler SequenceScheduler, logger zerolog.Logger) *SequenceTool {
	return &SequenceTool{
		scheduler: scheduler,
		logger:    logger.With().Str("tool", "manage_sequences").Logger(),
	}
}

// Execute implements tool.Tool.
func (t *SequenceTool) Execute(ctx context.Context, req tool.Request) tool.Result {
	action, _ := req.Parameters["action"].(string)
	trigger, _ := req.Parameters["trigger"].(string)
	t.logger.Debug().Str("action", action).Str("trigger", trigger).Str("lead", req.LeadID).Msg("Executing sequence action")

	switch action {
	case "activate":
		if trigger == "" {
			return tool.Failure("the sequence name (trigger) is required")
		}
		steps, err := t.scheduler.Activate(ctx, req.TenantID, req.LeadID, trigger)
		if err != nil {
			return tool.Failure(fmt.Sprintf("could not activate sequence %q: %v", trigger, err))
		}
		if steps == 0 {
			return tool.Failure(fmt.Sprintf("could not activate sequence %q: it may already be active or not exist", trigger))
		}
		return tool.Result{
			Success: true,
			Message: fmt.Sprintf("Sequence %q activated with %d steps", trigger, steps),
			Data:    map[string]interface{}{"trigger": trigger, "steps": steps},
		}

	case "cancel":
		if trigger == "" {
			return tool.Failure("the sequence name (trigger) to cancel is required")
		}
		cancelled, err := t.scheduler.Cancel(ctx, req.TenantID, req.LeadID, trigger)
		if err != nil {
			return tool.Failure(fmt.Sprintf("could not cancel sequence %q: %v", trigger, err))
		}
		return tool.Result{
			Success: true,
			Message: fmt.Sprintf("Sequence %q cancelled", trigger),
			Data:    map[string]interface{}{"trigger": trigger, "cancelled": cancelled},
		}

	case "cancel_all":
		if err := t.scheduler.CancelAll(ctx, req.TenantID, req.LeadID); err != nil {
			return tool.Failure(fmt.Sprintf("could not cancel sequences: %v", err))
		}
		return tool.Result{Success: true, Message: "All sequences cancelled"}

	case "pause":
		if err := t.scheduler.Pause(ctx, req.TenantID, req.LeadID); err != nil {
			return tool.Failure(fmt.Sprintf("could not pause sequences: %v", err))
		}
		return tool.Result{Success: true, Message: "Sequences paused"}

	case "resume":
		if err := t.scheduler.Resume(ctx, req.TenantID, req.LeadID); err != nil {
			return tool.Failure(fmt.Sprintf("could not resume sequences: %v", err))
		}
		return tool.Result{Success: true, Message: "Sequences resumed"}

	case "list":
		sequences, err := t.scheduler.List(ctx, req.TenantID)
		if err != nil {
			return tool.Failure(fmt.Sprintf("could not list sequences: %v", err))
		}
		items := make([]interface{}, 0, len(sequences))
		for _, seq := range sequences {
			items = append(items, map[string]interface{}{
				"name":          seq.Name,
				"active":        seq.Active,
				"message_count": seq.MessageCount,
			})
		}
		return tool.Result{
			Success: true,
			Message: fmt.Sprintf("%d sequences available", len(sequences)),
			Data:    map[string]interface{}{"sequences": items},
		}

	default:
		return tool.Failure("unknown action: " + action)
	}
}

// VerifyIntegration implements tool.Tool. Sequences run inside the product.
func (t *SequenceTool) VerifyIntegration(context.Context, string) bool {
	return true
}

// Definition implements tool.Tool.
func (t *SequenceTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "manage_sequences",
		Description: "Manages automated message sequences for the lead. Can activate, cancel, pause, or resume sequences, or list the available ones.",
		Parameters: map[string]tool.Property{
			"action": {
				Type:        "string",
				Enum:        []string{"activate", "cancel", "cancel_all", "pause", "resume", "list"},
				Description: "Action to perform: activate (start a sequence), cancel (cancel one), cancel_all (cancel all), pause, resume, list (show available)",
			},
			"trigger": {
				Type:        "string",
				Description: "Sequence name (required for activate and cancel). Use \"list\" first to see the available ones.",
			},
		},
		Required: []string{"action"},
	}
}
