package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/pkg/tool"
)

type fakeScheduler struct {
	steps     int
	err       error
	sequences []SequenceInfo
	calls     []string
}

func (f *fakeScheduler) Activate(ctx context.Context, tenantID, leadID, trigger string) (int, error) {
	f.calls = append(f.calls, "activate:"+trigger)
	return f.steps, f.err
}

func (f *fakeScheduler) Cancel(ctx context.Context, tenantID, leadID, trigger string) (int, error) {
	f.calls = append(f.calls, "cancel:"+trigger)
	return f.steps, f.err
}

func (f *fakeScheduler) CancelAll(ctx context.Context, tenantID, leadID string) error {
	f.calls = append(f.calls, "cancel_all")
	return f.err
}

func (f *fakeScheduler) Pause(ctx context.Context, tenantID, leadID string) error {
	f.calls = append(f.calls, "pause")
	return f.err
}

func (f *fakeScheduler) Resume(ctx context.Context, tenantID, leadID string) error {
	f.calls = append(f.calls, "resume")
	return f.err
}

func (f *fakeScheduler) List(ctx context.Context, tenantID string) ([]SequenceInfo, error) {
	f.calls = append(f.calls, "list")
	return f.sequences, f.err
}

func seqRequest(params map[string]interface{}) tool.Request {
	return tool.Request{TenantID: "acme", LeadID: "lead-1", Parameters: params}
}

func TestSequenceTool_Activate(t *testing.T) {
	sched := &fakeScheduler{steps: 3}
	st := NewSequenceTool(sched, zerolog.Nop())

	res := st.Execute(context.Background(), seqRequest(map[string]interface{}{
		"action": "activate", "trigger": "welcome",
	}))

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "3 steps")
	assert.Equal(t, []string{"activate:welcome"}, sched.calls)
}

func TestSequenceTool_Activate_ZeroSteps(t *testing.T) {
	st := NewSequenceTool(&fakeScheduler{steps: 0}, zerolog.Nop())

	res := st.Execute(context.Background(), seqRequest(map[string]interface{}{
		"action": "activate", "trigger": "welcome",
	}))
	assert.False(t, res.Success)
}

func TestSequenceTool_Activate_MissingTrigger(t *testing.T) {
	st := NewSequenceTool(&fakeScheduler{}, zerolog.Nop())

	res := st.Execute(context.Background(), seqRequest(map[string]interface{}{
		"action": "activate",
	}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "trigger")
}

func TestSequenceTool_LifecycleActions(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{"cancel_all", "cancel_all"},
		{"pause", "pause"},
		{"resume", "resume"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			sched := &fakeScheduler{}
			st := NewSequenceTool(sched, zerolog.Nop())

			res := st.Execute(context.Background(), seqRequest(map[string]interface{}{
				"action": tt.action,
			}))
			require.True(t, res.Success)
			assert.Equal(t, []string{tt.want}, sched.calls)
		})
	}
}

func TestSequenceTool_List(t *testing.T) {
	sched := &fakeScheduler{sequences: []SequenceInfo{
		{Name: "welcome", Active: true, MessageCount: 3},
		{Name: "followup", Active: false, MessageCount: 5},
	}}
	st := NewSequenceTool(sched, zerolog.Nop())

	res := st.Execute(context.Background(), seqRequest(map[string]interface{}{"action": "list"}))

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "2 sequences")
	items, ok := res.Data["sequences"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestSequenceTool_SchedulerError(t *testing.T) {
	st := NewSequenceTool(&fakeScheduler{err: fmt.Errorf("backend down")}, zerolog.Nop())

	res := st.Execute(context.Background(), seqRequest(map[string]interface{}{
		"action": "cancel", "trigger": "welcome",
	}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "backend down")
}

func TestEchoTool(t *testing.T) {
	et := NewEchoTool()

	res := et.Execute(context.Background(), tool.Request{
		Parameters: map[string]interface{}{"message": "ping"},
	})
	require.True(t, res.Success)
	assert.Equal(t, "Echo: ping", res.Message)

	res = et.Execute(context.Background(), tool.Request{Parameters: map[string]interface{}{}})
	assert.False(t, res.Success)
}
