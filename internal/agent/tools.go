package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hcplus/scheduling-agent/internal/scheduling"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

// Tool names offered to the model.
const (
	toolGetAvailableSlots     = "get_available_slots"
	toolBookAppointment       = "book_appointment"
	toolRescheduleAppointment = "reschedule_appointment"
	toolCancelAppointment     = "cancel_appointment"
	toolSearchClinicKnowledge = "search_clinic_knowledge"
)

// SlotFinder is the availability side of the scheduling package.
type SlotFinder interface {
	FindSlots(ctx context.Context, req scheduling.AvailabilityRequest) scheduling.AvailabilityResult
}

// WorkflowExecutor is the transactional side of the scheduling package.
type WorkflowExecutor interface {
	Book(ctx context.Context, req scheduling.BookRequest) scheduling.Outcome
	Reschedule(ctx context.Context, req scheduling.RescheduleRequest) scheduling.Outcome
	Cancel(ctx context.Context, req scheduling.CancelRequest) scheduling.Outcome
}

// KnowledgeSearcher answers clinic questions. Search never fails: lookup
// problems come back as an apology string.
type KnowledgeSearcher interface {
	Search(ctx context.Context, question string) string
}

// ToolEffect is the structured side effect of one tool call, applied to the
// session by the orchestrator after the turn completes.
type ToolEffect struct {
	Booking              *scheduling.BookingRecord
	CancelledBookingUUID string
	PartialFailure       bool
}

// Toolbox validates and dispatches the model's tool calls. Arguments are
// decoded into closed request types and validated here, before anything
// reaches the provider, regardless of how well the model respected the
// advertised schemas.
type Toolbox struct {
	resolver  SlotFinder
	executor  WorkflowExecutor
	knowledge KnowledgeSearcher
	logger    *logging.Logger
}

// NewToolbox creates the tool dispatcher. knowledge may be nil, which
// removes the knowledge tool from the advertised set.
func NewToolbox(resolver SlotFinder, executor WorkflowExecutor, knowledge KnowledgeSearcher, logger *logging.Logger) *Toolbox {
	if resolver == nil {
		panic("agent: slot finder cannot be nil")
	}
	if executor == nil {
		panic("agent: workflow executor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Toolbox{
		resolver:  resolver,
		executor:  executor,
		knowledge: knowledge,
		logger:    logger,
	}
}

// Specs returns the tool schemas advertised to the model.
func (t *Toolbox) Specs() []ToolSpec {
	specs := []ToolSpec{
		{
			Name:        toolGetAvailableSlots,
			Description: "Find open appointment slots for an appointment type on or after a date. Returns a human-readable summary plus the raw slot list.",
			InputSchema: objectSchema(map[string]any{
				"appointment_type": map[string]any{
					"type":        "string",
					"description": "Appointment category, e.g. 'general consultation', 'follow-up', 'physical exam', 'specialist consultation'.",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Requested date in YYYY-MM-DD format. Must be today or later.",
				},
				"time_preference": map[string]any{
					"type":        "string",
					"enum":        []string{"any", "morning", "afternoon", "evening"},
					"description": "Coarse time-of-day preference. Defaults to 'any'.",
				},
			}, "appointment_type", "date"),
		},
		{
			Name:        toolBookAppointment,
			Description: "Book an appointment at a specific slot. Only call after the patient has confirmed a slot and provided their name and email.",
			InputSchema: objectSchema(map[string]any{
				"event_type_uri": map[string]any{
					"type":        "string",
					"description": "The event_type_uri of the chosen slot, exactly as returned by get_available_slots.",
				},
				"start_time": map[string]any{
					"type":        "string",
					"description": "The slot's start_time in RFC3339/UTC, exactly as returned by get_available_slots.",
				},
				"slot_time": map[string]any{
					"type":        "string",
					"description": "The slot's local display time, echoed back to the patient in the confirmation.",
				},
				"patient_name":  map[string]any{"type": "string"},
				"patient_email": map[string]any{"type": "string"},
				"notes": map[string]any{
					"type":        "string",
					"description": "Optional notes for the clinic.",
				},
			}, "event_type_uri", "start_time", "patient_name", "patient_email"),
		},
		{
			Name:        toolRescheduleAppointment,
			Description: "Move the patient's existing appointment to a new slot. The existing booking identifiers come from the current booking on file.",
			InputSchema: objectSchema(map[string]any{
				"booking_uuid": map[string]any{
					"type":        "string",
					"description": "The existing booking's UUID. Omit to use the booking on file for this conversation.",
				},
				"event_uri": map[string]any{
					"type":        "string",
					"description": "The existing booking's scheduled event URI or UUID. Omit to use the booking on file.",
				},
				"new_event_type_uri": map[string]any{"type": "string"},
				"new_start_time": map[string]any{
					"type":        "string",
					"description": "New slot start_time in RFC3339/UTC, exactly as returned by get_available_slots.",
				},
				"new_slot_time": map[string]any{
					"type":        "string",
					"description": "New slot's local display time.",
				},
				"patient_name":  map[string]any{"type": "string"},
				"patient_email": map[string]any{"type": "string"},
			}, "new_event_type_uri", "new_start_time", "patient_name", "patient_email"),
		},
		{
			Name:        toolCancelAppointment,
			Description: "Cancel the patient's existing appointment. Only call after the patient has explicitly confirmed they want to cancel.",
			InputSchema: objectSchema(map[string]any{
				"booking_uuid": map[string]any{
					"type":        "string",
					"description": "The booking's UUID. Omit to use the booking on file for this conversation.",
				},
				"event_uri": map[string]any{
					"type":        "string",
					"description": "The booking's scheduled event URI or UUID. Omit to use the booking on file.",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "Optional cancellation reason given by the patient.",
				},
			}),
		},
	}
	if t.knowledge != nil {
		specs = append(specs, ToolSpec{
			Name:        toolSearchClinicKnowledge,
			Description: "Answer questions about the clinic: hours, location, parking, insurance, billing, policies.",
			InputSchema: objectSchema(map[string]any{
				"question": map[string]any{"type": "string"},
			}, "question"),
		})
	}
	return specs
}

// Dispatch runs one tool call. bookingData is the session's current booking
// facts, used to backfill identifiers the model omitted. The returned string
// is the tool result text fed back to the model; validation failures come
// back as result text too, so the model can self-correct within the turn.
func (t *Toolbox) Dispatch(ctx context.Context, sessionID string, bookingData map[string]any, call ToolCall) (string, *ToolEffect) {
	t.logger.Info("dispatching tool call", "session_id", sessionID, "tool", call.Name)

	switch call.Name {
	case toolGetAvailableSlots:
		return t.dispatchAvailability(ctx, call)
	case toolBookAppointment:
		return t.dispatchBook(ctx, sessionID, call)
	case toolRescheduleAppointment:
		return t.dispatchReschedule(ctx, sessionID, bookingData, call)
	case toolCancelAppointment:
		return t.dispatchCancel(ctx, sessionID, bookingData, call)
	case toolSearchClinicKnowledge:
		return t.dispatchKnowledge(ctx, call)
	default:
		t.logger.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("Unknown tool %q.", call.Name), nil
	}
}

type availabilityArgs struct {
	AppointmentType string `json:"appointment_type"`
	Date            string `json:"date"`
	TimePreference  string `json:"time_preference"`
}

func (a availabilityArgs) validate() error {
	if strings.TrimSpace(a.AppointmentType) == "" {
		return fmt.Errorf("appointment_type is required")
	}
	if strings.TrimSpace(a.Date) == "" {
		return fmt.Errorf("date is required")
	}
	switch scheduling.TimePreference(a.TimePreference) {
	case "", scheduling.PreferenceAny, scheduling.PreferenceMorning, scheduling.PreferenceAfternoon, scheduling.PreferenceEvening:
		return nil
	}
	return fmt.Errorf("time_preference must be one of any, morning, afternoon, evening")
}

func (t *Toolbox) dispatchAvailability(ctx context.Context, call ToolCall) (string, *ToolEffect) {
	var args availabilityArgs
	if msg, ok := decodeArgs(call, &args, func() error { return args.validate() }); !ok {
		return msg, nil
	}

	result := t.resolver.FindSlots(ctx, scheduling.AvailabilityRequest{
		AppointmentType: args.AppointmentType,
		Date:            args.Date,
		Preference:      scheduling.TimePreference(args.TimePreference),
	})

	text := result.Summary
	if len(result.Slots) > 0 {
		payload, err := json.Marshal(result.Slots)
		if err == nil {
			text += "\n\nSlots (use start_time and event_type_uri exactly as given when booking):\n" + string(payload)
		}
	}
	return text, nil
}

type bookArgs struct {
	EventTypeURI string `json:"event_type_uri"`
	StartTime    string `json:"start_time"`
	SlotTime     string `json:"slot_time"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	Notes        string `json:"notes"`
}

func (a bookArgs) validate() error {
	switch {
	case strings.TrimSpace(a.EventTypeURI) == "":
		return fmt.Errorf("event_type_uri is required")
	case strings.TrimSpace(a.StartTime) == "":
		return fmt.Errorf("start_time is required")
	case strings.TrimSpace(a.PatientName) == "":
		return fmt.Errorf("patient_name is required")
	case !strings.Contains(a.PatientEmail, "@"):
		return fmt.Errorf("patient_email must be a valid email address")
	}
	return nil
}

func (t *Toolbox) dispatchBook(ctx context.Context, sessionID string, call ToolCall) (string, *ToolEffect) {
	var args bookArgs
	if msg, ok := decodeArgs(call, &args, func() error { return args.validate() }); !ok {
		return msg, nil
	}

	outcome := t.executor.Book(ctx, scheduling.BookRequest{
		SessionID:    sessionID,
		EventTypeURI: args.EventTypeURI,
		StartTimeISO: args.StartTime,
		SlotTime:     args.SlotTime,
		PatientName:  args.PatientName,
		PatientEmail: args.PatientEmail,
		Notes:        args.Notes,
	})
	return outcome.Message, effectFromOutcome(outcome)
}

type rescheduleArgs struct {
	BookingUUID     string `json:"booking_uuid"`
	EventURI        string `json:"event_uri"`
	NewEventTypeURI string `json:"new_event_type_uri"`
	NewStartTime    string `json:"new_start_time"`
	NewSlotTime     string `json:"new_slot_time"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
}

func (a rescheduleArgs) validate() error {
	switch {
	case strings.TrimSpace(a.NewEventTypeURI) == "":
		return fmt.Errorf("new_event_type_uri is required")
	case strings.TrimSpace(a.NewStartTime) == "":
		return fmt.Errorf("new_start_time is required")
	case strings.TrimSpace(a.PatientName) == "":
		return fmt.Errorf("patient_name is required")
	case !strings.Contains(a.PatientEmail, "@"):
		return fmt.Errorf("patient_email must be a valid email address")
	}
	return nil
}

func (t *Toolbox) dispatchReschedule(ctx context.Context, sessionID string, bookingData map[string]any, call ToolCall) (string, *ToolEffect) {
	var args rescheduleArgs
	if msg, ok := decodeArgs(call, &args, func() error { return args.validate() }); !ok {
		return msg, nil
	}

	bookingUUID, eventUUID := resolveBookingIdentifiers(args.BookingUUID, args.EventURI, bookingData)
	outcome := t.executor.Reschedule(ctx, scheduling.RescheduleRequest{
		SessionID:          sessionID,
		BookingUUID:        bookingUUID,
		ScheduledEventUUID: eventUUID,
		NewEventTypeURI:    args.NewEventTypeURI,
		NewStartTimeISO:    args.NewStartTime,
		NewSlotTime:        args.NewSlotTime,
		PatientName:        args.PatientName,
		PatientEmail:       args.PatientEmail,
	})
	return outcome.Message, effectFromOutcome(outcome)
}

type cancelArgs struct {
	BookingUUID string `json:"booking_uuid"`
	EventURI    string `json:"event_uri"`
	Reason      string `json:"reason"`
}

func (t *Toolbox) dispatchCancel(ctx context.Context, sessionID string, bookingData map[string]any, call ToolCall) (string, *ToolEffect) {
	var args cancelArgs
	if msg, ok := decodeArgs(call, &args, nil); !ok {
		return msg, nil
	}

	bookingUUID, eventUUID := resolveBookingIdentifiers(args.BookingUUID, args.EventURI, bookingData)
	outcome := t.executor.Cancel(ctx, scheduling.CancelRequest{
		SessionID:          sessionID,
		BookingUUID:        bookingUUID,
		ScheduledEventUUID: eventUUID,
		Reason:             args.Reason,
	})
	return outcome.Message, effectFromOutcome(outcome)
}

type knowledgeArgs struct {
	Question string `json:"question"`
}

func (t *Toolbox) dispatchKnowledge(ctx context.Context, call ToolCall) (string, *ToolEffect) {
	var args knowledgeArgs
	if msg, ok := decodeArgs(call, &args, func() error {
		if strings.TrimSpace(args.Question) == "" {
			return fmt.Errorf("question is required")
		}
		return nil
	}); !ok {
		return msg, nil
	}
	if t.knowledge == nil {
		return "Clinic knowledge lookup is not available right now.", nil
	}
	return t.knowledge.Search(ctx, args.Question), nil
}

// decodeArgs unmarshals and validates tool arguments. On failure it returns
// (message, false) where message is the validation text fed back to the
// model.
func decodeArgs(call ToolCall, target any, validate func() error) (string, bool) {
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, target); err != nil {
			return fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err), false
		}
	}
	if validate != nil {
		if err := validate(); err != nil {
			return fmt.Sprintf("Invalid arguments for %s: %v", call.Name, err), false
		}
	}
	return "", true
}

// resolveBookingIdentifiers backfills identifiers the model omitted from the
// booking facts on file, and accepts either a bare UUID or a full event URI.
func resolveBookingIdentifiers(bookingUUID, eventRef string, bookingData map[string]any) (string, string) {
	if strings.TrimSpace(bookingUUID) == "" {
		bookingUUID = stringField(bookingData, "booking_uuid")
	}
	if strings.TrimSpace(eventRef) == "" {
		eventRef = stringField(bookingData, "event_uri")
	}
	if idx := strings.LastIndexByte(eventRef, '/'); idx >= 0 {
		eventRef = eventRef[idx+1:]
	}
	return strings.TrimSpace(bookingUUID), strings.TrimSpace(eventRef)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func effectFromOutcome(o scheduling.Outcome) *ToolEffect {
	switch {
	case o.Kind == scheduling.OutcomeSuccess && o.Booking != nil:
		return &ToolEffect{Booking: o.Booking}
	case o.Kind == scheduling.OutcomeSuccess && o.CancelledBookingUUID != "":
		return &ToolEffect{CancelledBookingUUID: o.CancelledBookingUUID}
	case o.Kind == scheduling.OutcomePartialFailure:
		return &ToolEffect{CancelledBookingUUID: o.CancelledBookingUUID, PartialFailure: true}
	}
	return nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
