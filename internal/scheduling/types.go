package scheduling

import (
	"context"
	"time"

	"github.com/hcplus/scheduling-agent/internal/calendly"
)

// Provider is the slice of the scheduling-provider API the resolver and
// executor depend on. *calendly.Client satisfies it.
type Provider interface {
	ListEventTypes(ctx context.Context) ([]calendly.EventType, error)
	ListAvailableTimes(ctx context.Context, eventTypeURI string, start, end time.Time) ([]calendly.AvailableTime, error)
	CreateInvitee(ctx context.Context, req calendly.CreateInviteeRequest) (*calendly.Invitee, error)
	GetScheduledEvent(ctx context.Context, eventUUID string) (*calendly.ScheduledEvent, error)
	CancelInvitee(ctx context.Context, inviteeUUID, eventUUID, reason string) error
}

// TimePreference is a coarse time-of-day filter, evaluated against the
// clinic-local hour of each slot.
type TimePreference string

const (
	PreferenceAny       TimePreference = "any"
	PreferenceMorning   TimePreference = "morning"   // before 12:00 local
	PreferenceAfternoon TimePreference = "afternoon" // 12:00-16:59 local
	PreferenceEvening   TimePreference = "evening"   // 17:00+ local
)

// AvailabilityRequest asks for open slots for an appointment category.
type AvailabilityRequest struct {
	AppointmentType string
	Date            string // YYYY-MM-DD
	Preference      TimePreference
}

// Slot is one concrete bookable start time. Slots are transient and
// best-effort: the provider may allocate them elsewhere before booking.
type Slot struct {
	StartTimeISO string `json:"start_time"`
	EventTypeURI string `json:"event_type_uri"`
	Display      string `json:"time"` // clinic-local, e.g. "2026-03-10 9:30 AM"
}

// AvailabilityResult carries the human summary plus the raw slot list.
type AvailabilityResult struct {
	Summary      string
	Slots        []Slot
	EventType    calendly.EventType
	UsedFallback bool // no duration label matched; first offering was used
}

// OutcomeKind tags a workflow operation result.
type OutcomeKind string

const (
	// OutcomeSuccess means the operation fully committed.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeUserMessage means the request could not proceed for a reason
	// the user can fix (bad input, unknown booking id, unsupported location).
	OutcomeUserMessage OutcomeKind = "user_error"
	// OutcomeProviderError means the provider call failed and nothing changed.
	OutcomeProviderError OutcomeKind = "provider_error"
	// OutcomePartialFailure means a reschedule cancelled the old appointment
	// but could not create the new one. The user must re-book.
	OutcomePartialFailure OutcomeKind = "partial_failure"
)

// BookingRecord is the durable fact set produced by a successful booking.
type BookingRecord struct {
	BookingUUID   string `json:"booking_uuid"`
	EventURI      string `json:"event_uri"`
	Status        string `json:"status"`
	CancelURL     string `json:"cancel_url"`
	RescheduleURL string `json:"reschedule_url"`
	PatientName   string `json:"patient_name"`
	PatientEmail  string `json:"patient_email"`
	SlotTime      string `json:"slot_time"`
}

// Outcome is the tagged result of a workflow operation. Exactly one of
// Booking or CancelledBookingUUID is set on success, depending on the
// operation; Message carries user-facing text for every non-success kind.
type Outcome struct {
	Kind                 OutcomeKind
	Message              string
	Booking              *BookingRecord
	CancelledBookingUUID string
}

// BookRequest carries everything the booking operation needs.
type BookRequest struct {
	SessionID    string
	EventTypeURI string
	StartTimeISO string
	SlotTime     string // display form echoed back to the patient
	PatientName  string
	PatientEmail string
	Notes        string
}

// RescheduleRequest moves an existing booking to a new slot.
type RescheduleRequest struct {
	SessionID          string
	BookingUUID        string
	ScheduledEventUUID string
	NewEventTypeURI    string
	NewStartTimeISO    string
	NewSlotTime        string
	PatientName        string
	PatientEmail       string
}

// CancelRequest cancels an existing booking.
type CancelRequest struct {
	SessionID          string
	BookingUUID        string
	ScheduledEventUUID string
	Reason             string
}
