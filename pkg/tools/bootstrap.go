package tools

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/pkg/integration"
	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

// Deps holds the collaborators the built-in tools need. Optional fields gate
// which tools are registered, so a deployment without a calendar provider or
// sequence engine simply ships without those tools.
type Deps struct {
	Leads       tenant.LeadStore
	Scheduler   SequenceScheduler
	Credentials *integration.Store
	CalendarAPI CalendarAPI
	Refresher   TokenRefresher
	Logger      zerolog.Logger
}

// RegisterAll registers every built-in tool whose dependencies are present.
// Registration is an explicit bootstrap call rather than an import-time side
// effect, so tests can assemble a registry with only the tools under test.
func RegisterAll(registry *tool.Registry, deps Deps) error {
	if err := registry.Register(NewEchoTool()); err != nil {
		return fmt.Errorf("register echo tool: %w", err)
	}

	if deps.Leads != nil {
		if err := registry.Register(NewLeadTool(deps.Leads, deps.Logger)); err != nil {
			return fmt.Errorf("register lead tool: %w", err)
		}
	}

	if deps.Scheduler != nil {
		if err := registry.Register(NewSequenceTool(deps.Scheduler, deps.Logger)); err != nil {
			return fmt.Errorf("register sequence tool: %w", err)
		}
	}

	if deps.Credentials != nil && deps.CalendarAPI != nil && deps.Refresher != nil {
		if err := registry.Register(NewCalendarTool(deps.Credentials, deps.CalendarAPI, deps.Refresher, deps.Logger)); err != nil {
			return fmt.Errorf("register calendar tool: %w", err)
		}
	}

	return nil
}
