package tools

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadpilot/leadpilot/pkg/integration"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

// CalendarIntegration is the credential document name for the calendar
// connection.
const CalendarIntegration = "google-calendar"

const defaultTimeZone = "America/Mexico_City"

// ErrUnauthorized is returned by a CalendarAPI when the access token is
// rejected; the tool refreshes once and retries.
var ErrUnauthorized = errors.New("calendar: unauthorized")

// CalendarEvent is the event to create.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       string // RFC 3339 local date-time
	End         string
	TimeZone    string
	GuestEmail  string
	WithMeet    bool
	CalendarID  string
}

// CreatedEvent describes the event the provider created.
type CreatedEvent struct {
	ID       string
	HTMLLink string
	MeetLink string
	Start    string
	End      string
	Summary  string
}

// CalendarAPI creates events against the external calendar provider.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, accessToken string, event CalendarEvent) (*CreatedEvent, error)
}

// TokenRefresher exchanges a refresh token for fresh credentials. The OAuth
// mechanics are owned by the integration layer, not the tool.
type TokenRefresher interface {
	Refresh(ctx context.Context, tenantID string, creds integration.Credentials) (*integration.Credentials, error)
}

// CalendarTool schedules appointments on the tenant's connected calendar.
// It is integration-gated: tenants without stored, enabled credentials fail
// the integration check and the tool never runs.
type CalendarTool struct {
	credentials *integration.Store
	api         CalendarAPI
	refresher   TokenRefresher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCalendarTool creates a CalendarTool.
func NewCalendarTool(credentials *integration.Store, api CalendarAPI, refresher TokenRefresher, logger zerolog.Logger) *CalendarTool {
	return &CalendarTool{
		credentials: credentials,
		api:         api,
		refresher:   refresher,
		logger:      logger.With().Str("tool", "create_calendar_event").Logger(),
		now:         time.Now,
	}
}

// Execute implements tool.Tool.
func (t *CalendarTool) Execute(ctx context.Context, req tool.Request) tool.Result {
	title, _ := req.Parameters["title"].(string)
	start, _ := req.Parameters["start_date_time"].(string)
	end, _ := req.Parameters["end_date_time"].(string)
	if title == "" || start == "" || end == "" {
		return tool.Failure("missing required parameters: title, start_date_time, end_date_time")
	}

	creds, err := t.credentials.Get(ctx, req.TenantID, CalendarIntegration)
	if err != nil {
		t.logger.Error().Err(err).Str("tenant", req.TenantID).Msg("Failed to load calendar credentials")
		return tool.Failure("the calendar is not connected. Please ask an administrator to set it up.")
	}
	if creds == nil || !creds.Enabled {
		return tool.Failure("the calendar is not connected. Please ask an administrator to set it up.")
	}

	if creds.Expired(t.now()) {
		refreshed, err := t.refresh(ctx, req.TenantID, *creds)
		if err != nil {
			return tool.Failure("the calendar connection has expired. Please reconnect the account in settings.")
		}
		creds = refreshed
	}

	event := t.eventFromParams(req)
	created, err := t.api.CreateEvent(ctx, creds.AccessToken, event)
	if errors.Is(err, ErrUnauthorized) {
		// Token rejected mid-flight: refresh once and retry.
		refreshed, refreshErr := t.refresh(ctx, req.TenantID, *creds)
		if refreshErr != nil {
			return tool.Failure("the calendar connection has expired. Please reconnect the account in settings.")
		}
		created, err = t.api.CreateEvent(ctx, refreshed.AccessToken, event)
	}
	if err != nil {
		t.logger.Error().Err(err).Str("tenant", req.TenantID).Msg("Failed to create calendar event")
		return tool.Failure("I could not schedule the appointment right now. Please try again later.")
	}

	t.logger.Info().Str("tenant", req.TenantID).Str("event_id", created.ID).Msg("Calendar event created")

	data := map[string]interface{}{
		"event_id":   created.ID,
		"event_link": created.HTMLLink,
		"start_time": created.Start,
		"end_time":   created.End,
		"title":      created.Summary,
	}
	if created.MeetLink != "" {
		data["meet_link"] = created.MeetLink
	}
	return tool.Result{
		Success: true,
		Message: "Appointment scheduled successfully",
		Data:    data,
	}
}

func (t *CalendarTool) refresh(ctx context.Context, tenantID string, creds integration.Credentials) (*integration.Credentials, error) {
	refreshed, err := t.refresher.Refresh(ctx, tenantID, creds)
	if err != nil {
		t.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to refresh calendar token")
		return nil, err
	}
	if err := t.credentials.Put(ctx, tenantID, CalendarIntegration, *refreshed); err != nil {
		t.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to store refreshed credentials")
	}
	return refreshed, nil
}

func (t *CalendarTool) eventFromParams(req tool.Request) CalendarEvent {
	title, _ := req.Parameters["title"].(string)
	description, _ := req.Parameters["description"].(string)
	if description == "" {
		description = "Appointment scheduled via chat"
	}
	start, _ := req.Parameters["start_date_time"].(string)
	end, _ := req.Parameters["end_date_time"].(string)
	timeZone, _ := req.Parameters["time_zone"].(string)
	if timeZone == "" {
		timeZone = defaultTimeZone
	}
	guestEmail, _ := req.Parameters["guest_email"].(string)

	withMeet := true
	if v, ok := req.Parameters["include_meet"].(bool); ok {
		withMeet = v
	}

	return CalendarEvent{
		Summary:     title,
		Description: description,
		Start:       start,
		End:         end,
		TimeZone:    timeZone,
		GuestEmail:  guestEmail,
		WithMeet:    withMeet,
	}
}

// VerifyIntegration implements tool.Tool: the tenant must have stored,
// enabled calendar credentials.
func (t *CalendarTool) VerifyIntegration(ctx context.Context, tenantID string) bool {
	creds, err := t.credentials.Get(ctx, tenantID, CalendarIntegration)
	if err != nil {
		t.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to verify calendar integration")
		return false
	}
	return creds != nil && creds.Enabled
}

// Definition implements tool.Tool.
func (t *CalendarTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "create_calendar_event",
		Description: "Schedules an appointment or meeting on the calendar. Use this tool when the customer asks to schedule, book, or reserve an appointment, meeting, or visit.",
		Parameters: map[string]tool.Property{
			"title": {
				Type:        "string",
				Description: "Descriptive title for the appointment (e.g. \"Apartment viewing\", \"Meeting with customer\")",
			},
			"description": {
				Type:        "string",
				Description: "Detailed description of the appointment (optional)",
			},
			"start_date_time": {
				Type:        "string",
				Description: "Start date and time in ISO 8601 format (e.g. \"2024-02-15T14:00:00\"). Make sure to use the date and time the customer asked for.",
			},
			"end_date_time": {
				Type:        "string",
				Description: "End date and time in ISO 8601 format (e.g. \"2024-02-15T15:00:00\"). By default, one hour after the start.",
			},
			"guest_email": {
				Type:        "string",
				Description: "Guest email address (optional). Leave empty if the customer does not provide one.",
			},
			"time_zone": {
				Type:        "string",
				Description: "Time zone (e.g. \"America/Mexico_City\"). Optional.",
			},
			"include_meet": {
				Type:        "boolean",
				Description: "Whether to attach a video call link. Defaults to true.",
			},
		},
		Required: []string{"title", "start_date_time", "end_date_time"},
	}
}
