package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveMessage("acme", true, time.Second)
		m.ObserveModelCall(false)
		m.ObserveTokens("acme", 100)
		m.ObserveToolExecution("manage_lead", true, time.Millisecond)
		m.ObserveRateLimitRejection("acme", "message")
	})
}

func TestObserveMessage(t *testing.T) {
	m := New()

	m.ObserveMessage("acme", true, 100*time.Millisecond)
	m.ObserveMessage("acme", true, 200*time.Millisecond)
	m.ObserveMessage("acme", false, 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesProcessedTotal.WithLabelValues("acme", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesProcessedTotal.WithLabelValues("acme", "false")))
}

func TestObserveToolExecution(t *testing.T) {
	m := New()

	m.ObserveToolExecution("echo", true, time.Millisecond)
	m.ObserveToolExecution("echo", false, time.Millisecond)
	m.ObserveToolExecution("echo", false, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("echo", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolExecutionsTotal.WithLabelValues("echo", "error")))
}

func TestObserveRateLimitRejection(t *testing.T) {
	m := New()

	m.ObserveRateLimitRejection("acme", "tool_call")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejectionsTotal.WithLabelValues("acme", "tool_call")))
}
