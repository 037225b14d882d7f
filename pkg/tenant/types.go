package tenant

import "time"

// AgentConfig is the per-tenant agent configuration document. It is created
// at tenant provisioning and mutated only by tenant admins; the agent core
// treats it as read-only.
type AgentConfig struct {
	Enabled         bool             `json:"enabled"`
	Model           string           `json:"model"`
	MaxTokens       int              `json:"max_tokens,omitempty"`
	Personality     Personality      `json:"personality"`
	BusinessContext BusinessContext  `json:"business_context"`
	EnabledTools    []string         `json:"enabled_tools"`
	RateLimits      RateLimits       `json:"rate_limits"`
	Fallback        FallbackBehavior `json:"fallback_behavior"`
}

// Personality configures the agent's persona. Both fields are optional.
type Personality struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	Tone         string `json:"tone,omitempty"`
}

// BusinessContext describes the tenant's business. Every field is optional.
type BusinessContext struct {
	CompanyName string   `json:"company_name,omitempty"`
	Services    []string `json:"services,omitempty"`
	Schedule    string   `json:"schedule,omitempty"`
	Description string   `json:"description,omitempty"`
}

// RateLimits holds the tenant's usage ceilings. A zero value means the
// hardcoded default applies.
type RateLimits struct {
	MaxMessagesPerLeadPerDay int `json:"max_messages_per_lead_per_day,omitempty"`
	MaxToolCallsPerDay       int `json:"max_tool_calls_per_day,omitempty"`
	MaxTokensPerDay          int `json:"max_tokens_per_day,omitempty"`
}

// Fallback behavior values for FallbackBehavior.OnError.
const (
	OnErrorTrigger     = "trigger"
	OnErrorNotifyAdmin = "notify-admin"
)

// FallbackBehavior selects what happens when the agent cannot answer.
type FallbackBehavior struct {
	OnError        string `json:"on_error,omitempty"`
	DefaultTrigger string `json:"default_trigger,omitempty"`
}

// Lead is a conversation thread with one end user. Callers may supply a
// partially filled Lead; the orchestrator resolves the full profile from the
// lead store and falls back to the supplied value when the lookup fails.
type Lead struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	JID       string    `json:"jid,omitempty"`
	Status    string    `json:"status,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Destination returns the channel address for the lead, preferring the
// channel JID over the raw phone number.
func (l Lead) Destination() string {
	if l.JID != "" {
		return l.JID
	}
	return l.Phone
}

// Merge fills zero-valued fields of l from fallback.
func (l Lead) Merge(fallback Lead) Lead {
	if l.Name == "" {
		l.Name = fallback.Name
	}
	if l.Phone == "" {
		l.Phone = fallback.Phone
	}
	if l.JID == "" {
		l.JID = fallback.JID
	}
	if l.Status == "" {
		l.Status = fallback.Status
	}
	if len(l.Tags) == 0 {
		l.Tags = fallback.Tags
	}
	return l
}
