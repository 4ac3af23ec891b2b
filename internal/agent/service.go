package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hcplus/scheduling-agent/internal/observability/metrics"
	"github.com/hcplus/scheduling-agent/internal/scheduling"
	"github.com/hcplus/scheduling-agent/internal/session"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

// Action kinds surfaced to the caller alongside the visible text.
const (
	ActionBooking      = "booking"
	ActionCancellation = "cancellation"
)

const (
	defaultMaxToolRounds = 8

	highDemandMessage = "We're experiencing high demand right now and I couldn't process that. Please try again in a few seconds."
	emptyInputMessage = "Sorry, I didn't catch that - could you repeat?"
	stalledMessage    = "I wasn't able to finish that request. Could you rephrase, or tell me what you'd like to do next?"
)

// TurnResult is what one processed turn hands back to the transport layer.
type TurnResult struct {
	VisibleText    string         `json:"response"`
	StructuredData map[string]any `json:"booking_details,omitempty"`
	ActionKind     string         `json:"action_performed,omitempty"`
}

// ServiceConfig carries the orchestrator's tunables.
type ServiceConfig struct {
	Model         string
	MaxTokens     int32
	Temperature   float32
	MaxToolRounds int
	ClinicName    string
	ClinicPhone   string
	Timezone      string
}

// Service is the conversation orchestrator: it owns the tool loop, applies
// structured tool effects to the session, and sanitizes model text before it
// reaches the caller.
type Service struct {
	llm      LLMClient
	toolbox  *Toolbox
	sessions *session.Store
	history  *session.HistoryStore
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger

	cfg ServiceConfig
	loc *time.Location
	now func() time.Time
}

// NewService creates the orchestrator. history and conversationMetrics may
// be nil.
func NewService(llm LLMClient, toolbox *Toolbox, sessions *session.Store, history *session.HistoryStore, conversationMetrics *metrics.ConversationMetrics, cfg ServiceConfig, logger *logging.Logger) *Service {
	if llm == nil {
		panic("agent: llm client cannot be nil")
	}
	if toolbox == nil {
		panic("agent: toolbox cannot be nil")
	}
	if sessions == nil {
		panic("agent: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid clinic timezone, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	return &Service{
		llm:      llm,
		toolbox:  toolbox,
		sessions: sessions,
		history:  history,
		metrics:  conversationMetrics,
		logger:   logger,
		cfg:      cfg,
		loc:      loc,
		now:      time.Now,
	}
}

// ProcessTurn runs one conversation turn to completion. Whole turns for the
// same session are serialized; different sessions proceed in parallel.
// Known provider and user errors come back as normal visible text; an error
// return means an unexpected internal fault.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	started := s.now()

	utterance = sanitizeUtterance(utterance)
	if utterance == "" {
		return TurnResult{VisibleText: emptyInputMessage}, nil
	}

	sess := s.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Unlock()

	s.hydrateHistory(ctx, sess)

	messages := make([]ChatMessage, 0, len(sess.History())+1)
	for _, msg := range sess.History() {
		messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: utterance})

	result, rounds, err := s.runToolLoop(ctx, sess, messages)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.logger.Warn("llm rate limited, returning high-demand message", "session_id", sessionID)
			s.metrics.ObserveRateLimited()
			s.metrics.ObserveTurn("rate_limited", "", s.now().Sub(started).Seconds())
			return TurnResult{VisibleText: highDemandMessage}, nil
		}
		s.metrics.ObserveTurn("error", "", s.now().Sub(started).Seconds())
		return TurnResult{}, fmt.Errorf("agent: turn failed for session %s: %w", sessionID, err)
	}

	sess.Append(ChatRoleUser, utterance)
	sess.Append(ChatRoleAssistant, result.VisibleText)
	s.mirrorHistory(ctx, sess)

	s.metrics.ObserveLLMRounds(rounds)
	s.metrics.ObserveTurn("ok", result.ActionKind, s.now().Sub(started).Seconds())
	return result, nil
}

// runToolLoop drives the model until it stops requesting tools or the round
// budget runs out, then folds the accumulated tool effects into the session.
func (s *Service) runToolLoop(ctx context.Context, sess *session.Session, messages []ChatMessage) (TurnResult, int, error) {
	system := []string{BuildSystemPrompt(s.cfg.ClinicName, s.cfg.ClinicPhone, s.loc, s.now())}

	var effect ToolEffect
	var finalText string
	rounds := 0

	for rounds < s.cfg.MaxToolRounds {
		rounds++

		resp, err := s.llm.Complete(ctx, LLMRequest{
			Model:       s.cfg.Model,
			System:      system,
			Messages:    messages,
			Tools:       s.toolbox.Specs(),
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
		})
		if err != nil {
			return TurnResult{}, rounds, err
		}

		if len(resp.ToolCalls) == 0 {
			finalText = resp.Text
			break
		}

		messages = append(messages, ChatMessage{
			Role:      ChatRoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		// Tools run sequentially in the order the model issued them.
		var results []ToolResult
		for _, call := range resp.ToolCalls {
			s.metrics.ObserveToolCall(call.Name)
			text, callEffect := s.toolbox.Dispatch(ctx, sess.ID(), sess.BookingData(), call)
			if callEffect != nil {
				effect = *callEffect
			}
			results = append(results, ToolResult{ID: call.ID, Content: text})
		}
		messages = append(messages, ChatMessage{Role: ChatRoleUser, ToolResults: results})
	}

	if finalText == "" {
		s.logger.Warn("tool round budget exhausted without final text", "session_id", sess.ID(), "rounds", rounds)
		finalText = stalledMessage
	}

	// Markers are the compatibility path: tool effects already carry the
	// structured facts, but any marker the model emitted must still be
	// captured and stripped before the text is shown.
	decoded := DecodeMarkers(finalText)
	if effect.Booking == nil && decoded.Booking != nil {
		effect.Booking = decoded.Booking
	}
	if effect.CancelledBookingUUID == "" && decoded.CancelledBookingUUID != "" {
		effect.CancelledBookingUUID = decoded.CancelledBookingUUID
	}

	result := TurnResult{VisibleText: decoded.Text}

	// A booking and a cancellation in the same turn resolves in favor of the
	// booking, matching the marker scan order.
	switch {
	case effect.Booking != nil:
		data, err := bookingDataMap(*effect.Booking)
		if err != nil {
			return TurnResult{}, rounds, err
		}
		sess.MergeBookingData(data)
		result.StructuredData = sess.BookingData()
		result.ActionKind = ActionBooking
	case effect.CancelledBookingUUID != "":
		sess.ClearBookingData()
		result.ActionKind = ActionCancellation
	}

	return result, rounds, nil
}

// hydrateHistory seeds an empty in-memory session from the durable history
// mirror, so conversations survive process restarts. Best effort.
func (s *Service) hydrateHistory(ctx context.Context, sess *session.Session) {
	if s.history == nil || len(sess.History()) > 0 {
		return
	}
	saved, err := s.history.Load(ctx, sess.ID())
	if err != nil {
		s.logger.Warn("failed to load session history", "error", err, "session_id", sess.ID())
		return
	}
	for _, msg := range saved {
		sess.Append(msg.Role, msg.Content)
	}
}

// mirrorHistory writes the session history to the durable mirror. Best
// effort: a failed write never fails the turn.
func (s *Service) mirrorHistory(ctx context.Context, sess *session.Session) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, sess.ID(), sess.History()); err != nil {
		s.logger.Warn("failed to save session history", "error", err, "session_id", sess.ID())
	}
}

func bookingDataMap(record scheduling.BookingRecord) (map[string]any, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to encode booking record: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("agent: failed to decode booking record: %w", err)
	}
	return data, nil
}
