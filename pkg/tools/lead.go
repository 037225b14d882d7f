package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

// LeadTool lets the model manage the lead it is talking to: tags, status,
// and profile lookup.
type LeadTool struct {
	leads  tenant.LeadStore
	logger zerolog.Logger
}

// NewLeadTool creates a LeadTool over the given lead store.
func NewLeadTool(leads tenant.LeadStore, logger zerolog.Logger) *LeadTool {
	return &LeadTool{
		leads:  leads,
		logger: logger.With().Str("tool", "manage_lead").Logger(),
	}
}

// Execute implements tool.Tool.
func (t *LeadTool) Execute(ctx context.Context, req tool.Request) tool.Result {
	action, _ := req.Parameters["action"].(string)
	t.logger.Debug().Str("action", action).Str("lead", req.LeadID).Msg("Executing lead action")

	switch action {
	case "add_tags":
		tags := stringSlice(req.Parameters["tags"])
		if len(tags) == 0 {
			return tool.Failure("at least one tag is required")
		}
		if err := t.leads.AddTags(ctx, req.TenantID, req.LeadID, tags); err != nil {
			return tool.Failure(fmt.Sprintf("could not add tags: %v", err))
		}
		return tool.Result{
			Success: true,
			Message: "Tags added: " + strings.Join(tags, ", "),
			Data:    map[string]interface{}{"tags": tags},
		}

	case "remove_tags":
		tags := stringSlice(req.Parameters["tags"])
		if len(tags) == 0 {
			return tool.Failure("at least one tag to remove is required")
		}
		if err := t.leads.RemoveTags(ctx, req.TenantID, req.LeadID, tags); err != nil {
			return tool.Failure(fmt.Sprintf("could not remove tags: %v", err))
		}
		return tool.Result{
			Success: true,
			Message: "Tags removed: " + strings.Join(tags, ", "),
			Data:    map[string]interface{}{"tags": tags},
		}

	case "set_status":
		status, _ := req.Parameters["status"].(string)
		if status == "" {
			return tool.Failure("the new status is required")
		}
		if err := t.leads.SetStatus(ctx, req.TenantID, req.LeadID, status); err != nil {
			return tool.Failure(fmt.Sprintf("could not change status: %v", err))
		}
		return tool.Result{
			Success: true,
			Message: "Status changed to: " + status,
			Data:    map[string]interface{}{"status": status},
		}

	case "get_info":
		lead, err := t.leads.Lead(ctx, req.TenantID, req.LeadID)
		if err != nil {
			return tool.Failure(fmt.Sprintf("could not load lead: %v", err))
		}
		if lead == nil {
			return tool.Failure("lead not found")
		}
		return tool.Result{
			Success: true,
			Message: "Lead info retrieved",
			Data: map[string]interface{}{
				"name":   lead.Name,
				"phone":  lead.Phone,
				"status": lead.Status,
				"tags":   lead.Tags,
				"source": lead.Source,
			},
		}

	default:
		return tool.Failure("unknown action: " + action)
	}
}

// VerifyIntegration implements tool.Tool. Lead management only touches the
// product's own store.
func (t *LeadTool) VerifyIntegration(context.Context, string) bool {
	return true
}

// Definition implements tool.Tool.
func (t *LeadTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "manage_lead",
		Description: "Manages the current lead. Can add or remove tags, change the lead's status, or look up the lead's information.",
		Parameters: map[string]tool.Property{
			"action": {
				Type:        "string",
				Enum:        []string{"add_tags", "remove_tags", "set_status", "get_info"},
				Description: "Action: add_tags (add tags), remove_tags (remove tags), set_status (change status), get_info (view lead info)",
			},
			"tags": {
				Type:        "array",
				Description: "Tags to add or remove (for add_tags and remove_tags)",
			},
			"status": {
				Type:        "string",
				Description: "New lead status (for set_status). Examples: new, contacted, interested, converted",
			},
		},
		Required: []string{"action"},
	}
}

func stringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
