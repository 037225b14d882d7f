// Package channel abstracts the outbound messaging transport. The transport
// itself (WhatsApp, Telegram, SMS) lives outside this repository; the agent
// core only needs a way to hand off the final reply.
package channel

import (
	"context"

	"github.com/rs/zerolog"
)

// Deliverer sends one text message to a destination owned by a tenant.
type Deliverer interface {
	Deliver(ctx context.Context, tenantID, destination, text string) error
}

// LogDeliverer logs outbound messages instead of sending them. It stands in
// for a real transport in the CLI and during configuration testing.
type LogDeliverer struct {
	logger zerolog.Logger
}

// NewLogDeliverer creates a LogDeliverer.
func NewLogDeliverer(logger zerolog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger.With().Str("component", "channel").Logger()}
}

// Deliver implements Deliverer.
func (d *LogDeliverer) Deliver(_ context.Context, tenantID, destination, text string) error {
	d.logger.Info().
		Str("tenant", tenantID).
		Str("destination", destination).
		Int("length", len(text)).
		Msg("Outbound message")
	return nil
}
