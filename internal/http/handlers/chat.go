// Package handlers holds the HTTP surface of the scheduling agent.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hcplus/scheduling-agent/internal/agent"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const maxChatBodyBytes = 64 << 10

// TurnProcessor is the conversation entrypoint the handler drives. Both the
// agent service and its queue-backed dispatcher satisfy it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, utterance string) (agent.TurnResult, error)
}

// ChatHandler serves the conversational endpoint.
type ChatHandler struct {
	processor TurnProcessor
	logger    *logging.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(processor TurnProcessor, logger *logging.Logger) *ChatHandler {
	if processor == nil {
		panic("handlers: turn processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{processor: processor, logger: logger}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response       string         `json:"response"`
	SessionID      string         `json:"session_id"`
	BookingDetails map[string]any `json:"booking_details,omitempty"`
	Action         string         `json:"action_performed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat handles POST /api/chat. A missing session_id starts a new session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := h.processor.ProcessTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		h.logger.Error("turn processing failed", "error", err, "session_id", sessionID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process message"})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       result.VisibleText,
		SessionID:      sessionID,
		BookingDetails: result.StructuredData,
		Action:         result.ActionKind,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
