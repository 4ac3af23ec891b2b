package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcplus/scheduling-agent/internal/agent"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

type fakeProcessor struct {
	result        agent.TurnResult
	err           error
	lastSessionID string
	lastUtterance string
	calls         int
}

func (f *fakeProcessor) ProcessTurn(ctx context.Context, sessionID, utterance string) (agent.TurnResult, error) {
	f.calls++
	f.lastSessionID = sessionID
	f.lastUtterance = utterance
	return f.result, f.err
}

func postChat(t *testing.T, h *ChatHandler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	processor := &fakeProcessor{result: agent.TurnResult{
		VisibleText:    "Your appointment is confirmed!",
		ActionKind:     agent.ActionBooking,
		StructuredData: map[string]any{"booking_uuid": "inv-123"},
	}}
	h := NewChatHandler(processor, logging.Default())

	rec := postChat(t, h, map[string]string{
		"message":    "book the 9:30 slot",
		"session_id": "sess-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Your appointment is confirmed!", resp.Response)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "booking", resp.Action)
	assert.Equal(t, "inv-123", resp.BookingDetails["booking_uuid"])
	assert.Equal(t, "sess-1", processor.lastSessionID)
}

func TestChatGeneratesSessionID(t *testing.T) {
	processor := &fakeProcessor{result: agent.TurnResult{VisibleText: "Hello!"}}
	h := NewChatHandler(processor, logging.Default())

	rec := postChat(t, h, map[string]string{"message": "hi"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, processor.lastSessionID)
}

func TestChatRequiresMessage(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewChatHandler(processor, logging.Default())

	rec := postChat(t, h, map[string]string{"session_id": "sess-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, processor.calls)
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	h := NewChatHandler(&fakeProcessor{}, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatProcessorFailure(t *testing.T) {
	processor := &fakeProcessor{err: assert.AnError}
	h := NewChatHandler(processor, logging.Default())

	rec := postChat(t, h, map[string]string{"message": "hi", "session_id": "sess-1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}
