package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcplus/scheduling-agent/internal/scheduling"
	"github.com/hcplus/scheduling-agent/internal/session"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

type scriptedLLM struct {
	responses []LLMResponse
	errs      []error
	requests  []LLMRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i >= len(s.responses) {
		return LLMResponse{}, fmt.Errorf("scripted llm: unexpected call %d", i)
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return LLMResponse{}, s.errs[i]
	}
	return s.responses[i], nil
}

func newTestService(t *testing.T, llm LLMClient, executor *fakeExecutor) (*Service, *session.Store) {
	t.Helper()
	sessions := session.NewStore(16, logging.Default())
	toolbox := NewToolbox(&fakeResolver{}, executor, nil, logging.Default())
	svc := NewService(llm, toolbox, sessions, nil, nil, ServiceConfig{
		Model:       "test-model",
		ClinicName:  "HealthCare Plus Medical Center",
		ClinicPhone: "(555) 123-4567",
		Timezone:    "Asia/Kolkata",
	}, logging.Default())
	return svc, sessions
}

func TestProcessTurnPlainText(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		{Text: "Hello! What kind of appointment do you need?"},
	}}
	svc, sessions := newTestService(t, llm, &fakeExecutor{})

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello! What kind of appointment do you need?", result.VisibleText)
	assert.Empty(t, result.ActionKind)
	assert.Nil(t, result.StructuredData)

	history := sessions.Get("sess-1").History()
	require.Len(t, history, 2)
	assert.Equal(t, ChatRoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, ChatRoleAssistant, history[1].Role)

	require.Len(t, llm.requests, 1)
	assert.NotEmpty(t, llm.requests[0].Tools)
	assert.NotEmpty(t, llm.requests[0].System)
}

func TestProcessTurnBookingToolLoop(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		{ToolCalls: []ToolCall{{
			ID:   "call-1",
			Name: toolBookAppointment,
			Input: []byte(`{"event_type_uri":"https://api.calendly.com/event_types/bbb",` +
				`"start_time":"2026-03-10T04:00:00Z","slot_time":"2026-03-10 9:30 AM",` +
				`"patient_name":"Jane Doe","patient_email":"jane@example.com"}`),
		}}},
		{Text: "You're booked for 9:30 AM on March 10th!"},
	}}
	executor := &fakeExecutor{bookOutcome: scheduling.Outcome{
		Kind:    scheduling.OutcomeSuccess,
		Message: "Your appointment is confirmed",
		Booking: &scheduling.BookingRecord{
			BookingUUID:  "inv-123",
			EventURI:     "https://api.calendly.com/scheduled_events/evt-123",
			Status:       "active",
			PatientName:  "Jane Doe",
			PatientEmail: "jane@example.com",
			SlotTime:     "2026-03-10 9:30 AM",
		},
	}}
	svc, sessions := newTestService(t, llm, executor)

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "book the 9:30 slot, I'm Jane Doe, jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, "You're booked for 9:30 AM on March 10th!", result.VisibleText)
	assert.Equal(t, ActionBooking, result.ActionKind)
	require.NotNil(t, result.StructuredData)
	assert.Equal(t, "inv-123", result.StructuredData["booking_uuid"])

	// Booking facts persist on the session for later reschedule/cancel.
	data := sessions.Get("sess-1").BookingData()
	assert.Equal(t, "inv-123", data["booking_uuid"])
	assert.Equal(t, "https://api.calendly.com/scheduled_events/evt-123", data["event_uri"])

	// Second round carried the tool result back to the model.
	require.Len(t, llm.requests, 2)
	last := llm.requests[1].Messages
	require.NotEmpty(t, last)
	toolMsg := last[len(last)-1]
	require.Len(t, toolMsg.ToolResults, 1)
	assert.Equal(t, "call-1", toolMsg.ToolResults[0].ID)
	assert.Equal(t, "Your appointment is confirmed", toolMsg.ToolResults[0].Content)
}

func TestProcessTurnCancellationClearsBookingData(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		{ToolCalls: []ToolCall{{
			ID:    "call-1",
			Name:  toolCancelAppointment,
			Input: []byte(`{}`),
		}}},
		{Text: "Your appointment has been cancelled."},
	}}
	executor := &fakeExecutor{cancelOutcome: scheduling.Outcome{
		Kind:                 scheduling.OutcomeSuccess,
		Message:              "Cancelled",
		CancelledBookingUUID: "inv-123",
	}}
	svc, sessions := newTestService(t, llm, executor)

	sessions.Get("sess-1").MergeBookingData(map[string]any{
		"booking_uuid": "inv-123",
		"event_uri":    "https://api.calendly.com/scheduled_events/evt-123",
	})

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "please cancel my appointment")
	require.NoError(t, err)

	assert.Equal(t, ActionCancellation, result.ActionKind)
	assert.Empty(t, sessions.Get("sess-1").BookingData())
	// The executor received the identifiers from the session.
	assert.Equal(t, "inv-123", executor.lastCancel.BookingUUID)
	assert.Equal(t, "evt-123", executor.lastCancel.ScheduledEventUUID)
}

func TestProcessTurnStripsStrayMarkers(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		{Text: `All done! BOOKING_DATA: {"booking_uuid":"inv-777","event_uri":"https://api.calendly.com/scheduled_events/evt-777"}`},
	}}
	svc, sessions := newTestService(t, llm, &fakeExecutor{})

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "thanks")
	require.NoError(t, err)

	assert.Equal(t, "All done!", result.VisibleText)
	assert.Equal(t, ActionBooking, result.ActionKind)
	assert.Equal(t, "inv-777", sessions.Get("sess-1").BookingData()["booking_uuid"])
}

func TestProcessTurnRateLimited(t *testing.T) {
	llm := &scriptedLLM{
		responses: []LLMResponse{{}},
		errs:      []error{fmt.Errorf("bedrock: %w", ErrRateLimited)},
	}
	svc, _ := newTestService(t, llm, &fakeExecutor{})

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, highDemandMessage, result.VisibleText)
}

func TestProcessTurnLLMFailure(t *testing.T) {
	llm := &scriptedLLM{
		responses: []LLMResponse{{}},
		errs:      []error{fmt.Errorf("network down")},
	}
	svc, _ := newTestService(t, llm, &fakeExecutor{})

	_, err := svc.ProcessTurn(context.Background(), "sess-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sess-1")
}

func TestProcessTurnEmptyUtterance(t *testing.T) {
	llm := &scriptedLLM{}
	svc, _ := newTestService(t, llm, &fakeExecutor{})

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "  \x07 ")
	require.NoError(t, err)
	assert.Equal(t, emptyInputMessage, result.VisibleText)
	assert.Empty(t, llm.requests)
}

func TestProcessTurnToolBudgetExhausted(t *testing.T) {
	var responses []LLMResponse
	for i := 0; i < defaultMaxToolRounds; i++ {
		responses = append(responses, LLMResponse{ToolCalls: []ToolCall{{
			ID:    fmt.Sprintf("call-%d", i),
			Name:  toolCancelAppointment,
			Input: []byte(`{}`),
		}}})
	}
	llm := &scriptedLLM{responses: responses}
	executor := &fakeExecutor{cancelOutcome: scheduling.Outcome{
		Kind:    scheduling.OutcomeUserMessage,
		Message: "I don't have a booking on file",
	}}
	svc, _ := newTestService(t, llm, executor)

	result, err := svc.ProcessTurn(context.Background(), "sess-1", "cancel it")
	require.NoError(t, err)
	assert.Equal(t, stalledMessage, result.VisibleText)
	assert.Len(t, llm.requests, defaultMaxToolRounds)
}
