package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hcplus/scheduling-agent/internal/audit"
	"github.com/hcplus/scheduling-agent/internal/calendly"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const rescheduleCancelReason = "Rescheduling appointment"

// Executor commits booking, reschedule, and cancellation workflows against
// the provider. Reschedule is a two-phase cancel-then-create: the create
// step runs only after the cancel step committed, and a create failure after
// a committed cancel is reported as a partial failure rather than rolled
// back, because the provider offers no transactional API.
type Executor struct {
	provider    Provider
	audit       *audit.Store
	timezone    string
	clinicPhone string
	logger      *logging.Logger
	now         func() time.Time
}

// NewExecutor creates a workflow executor. The audit store may be nil.
func NewExecutor(provider Provider, auditStore *audit.Store, timezone, clinicPhone string, logger *logging.Logger) *Executor {
	if provider == nil {
		panic("scheduling: provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		provider:    provider,
		audit:       auditStore,
		timezone:    timezone,
		clinicPhone: clinicPhone,
		logger:      logger,
		now:         time.Now,
	}
}

// Book creates a new appointment for the requested slot.
func (e *Executor) Book(ctx context.Context, req BookRequest) Outcome {
	start, err := time.Parse(time.RFC3339, req.StartTimeISO)
	if err != nil {
		return e.record(ctx, req.SessionID, "book", Outcome{
			Kind:    OutcomeUserMessage,
			Message: fmt.Sprintf("Invalid slot time %q. Please pick one of the offered slots.", req.StartTimeISO),
		})
	}

	invitee, err := e.provider.CreateInvitee(ctx, calendly.CreateInviteeRequest{
		EventTypeURI: req.EventTypeURI,
		StartTime:    start,
		Name:         req.PatientName,
		Email:        req.PatientEmail,
		Timezone:     e.timezone,
		Notes:        req.Notes,
	})
	if err != nil {
		return e.record(ctx, req.SessionID, "book", e.bookingFailure(err))
	}

	e.logger.Info("booking created",
		"session_id", req.SessionID,
		"booking_uuid", invitee.UUID,
		"slot_time", req.SlotTime,
	)
	return e.record(ctx, req.SessionID, "book", Outcome{
		Kind: OutcomeSuccess,
		Message: fmt.Sprintf("Your appointment is confirmed for %s. A confirmation email has been sent to %s.",
			req.SlotTime, req.PatientEmail),
		Booking: &BookingRecord{
			BookingUUID:   invitee.UUID,
			EventURI:      invitee.EventURI,
			Status:        invitee.Status,
			CancelURL:     invitee.CancelURL,
			RescheduleURL: invitee.RescheduleURL,
			PatientName:   req.PatientName,
			PatientEmail:  req.PatientEmail,
			SlotTime:      req.SlotTime,
		},
	})
}

// Reschedule moves an existing appointment to a new slot. Phases: validate
// the new time, verify the old event exists, cancel it, then create the
// replacement.
func (e *Executor) Reschedule(ctx context.Context, req RescheduleRequest) Outcome {
	if req.ScheduledEventUUID == "" || req.BookingUUID == "" {
		return e.record(ctx, req.SessionID, "reschedule", Outcome{
			Kind:    OutcomeUserMessage,
			Message: "I don't have a booking on file for this conversation. Please share your booking confirmation, or call " + e.clinicPhone + ".",
		})
	}

	// Validate the new slot before touching the existing appointment. A bad
	// new time must never cost the patient their current booking.
	start, err := time.Parse(time.RFC3339, req.NewStartTimeISO)
	if err != nil {
		return e.record(ctx, req.SessionID, "reschedule", Outcome{
			Kind:    OutcomeUserMessage,
			Message: fmt.Sprintf("Invalid slot time %q. Please pick one of the offered slots. Your current appointment is unchanged.", req.NewStartTimeISO),
		})
	}
	if start.Before(e.now()) {
		return e.record(ctx, req.SessionID, "reschedule", Outcome{
			Kind:    OutcomeUserMessage,
			Message: "That time has already passed. Please pick one of the offered slots. Your current appointment is unchanged.",
		})
	}

	if _, err := e.provider.GetScheduledEvent(ctx, req.ScheduledEventUUID); err != nil {
		if errors.Is(err, calendly.ErrNotFound) {
			return e.record(ctx, req.SessionID, "reschedule", Outcome{
				Kind:    OutcomeUserMessage,
				Message: "I couldn't find that appointment. It may have already been cancelled. Please call " + e.clinicPhone + " to confirm.",
			})
		}
		e.logger.Error("reschedule verification failed", "error", err, "event_uuid", req.ScheduledEventUUID)
		return e.record(ctx, req.SessionID, "reschedule", Outcome{
			Kind:    OutcomeProviderError,
			Message: "I couldn't verify your existing appointment right now. Nothing has changed. Please try again in a moment.",
		})
	}

	if err := e.provider.CancelInvitee(ctx, req.BookingUUID, req.ScheduledEventUUID, rescheduleCancelReason); err != nil {
		// The original appointment is still intact, so the create step must
		// not run.
		e.logger.Error("reschedule cancel phase failed", "error", err, "booking_uuid", req.BookingUUID)
		return e.record(ctx, req.SessionID, "reschedule", Outcome{
			Kind:    OutcomeProviderError,
			Message: "I couldn't release your existing appointment, so it is still on the books. Please try again or call " + e.clinicPhone + ".",
		})
	}

	invitee, err := e.provider.CreateInvitee(ctx, calendly.CreateInviteeRequest{
		EventTypeURI: req.NewEventTypeURI,
		StartTime:    start,
		Name:         req.PatientName,
		Email:        req.PatientEmail,
		Timezone:     e.timezone,
	})
	if err != nil {
		e.logger.Error("reschedule create phase failed after cancel committed",
			"error", err,
			"old_booking_uuid", req.BookingUUID,
			"session_id", req.SessionID,
		)
		return e.record(ctx, req.SessionID, "reschedule", e.partialFailure(req))
	}

	e.logger.Info("appointment rescheduled",
		"session_id", req.SessionID,
		"old_booking_uuid", req.BookingUUID,
		"new_booking_uuid", invitee.UUID,
	)
	return e.record(ctx, req.SessionID, "reschedule", Outcome{
		Kind: OutcomeSuccess,
		Message: fmt.Sprintf("Your appointment has been rescheduled to %s. A confirmation email has been sent to %s.",
			req.NewSlotTime, req.PatientEmail),
		Booking: &BookingRecord{
			BookingUUID:   invitee.UUID,
			EventURI:      invitee.EventURI,
			Status:        invitee.Status,
			CancelURL:     invitee.CancelURL,
			RescheduleURL: invitee.RescheduleURL,
			PatientName:   req.PatientName,
			PatientEmail:  req.PatientEmail,
			SlotTime:      req.NewSlotTime,
		},
	})
}

// Cancel cancels an existing appointment. The booking is verified first so an
// unknown id never reaches the provider's cancellation endpoint.
func (e *Executor) Cancel(ctx context.Context, req CancelRequest) Outcome {
	if req.ScheduledEventUUID == "" || req.BookingUUID == "" {
		return e.record(ctx, req.SessionID, "cancel", Outcome{
			Kind:    OutcomeUserMessage,
			Message: "I don't have a booking on file for this conversation. Please share your booking confirmation, or call " + e.clinicPhone + ".",
		})
	}

	if _, err := e.provider.GetScheduledEvent(ctx, req.ScheduledEventUUID); err != nil {
		if errors.Is(err, calendly.ErrNotFound) {
			return e.record(ctx, req.SessionID, "cancel", Outcome{
				Kind:    OutcomeUserMessage,
				Message: "I couldn't find that appointment. Please verify your booking details, or call " + e.clinicPhone + " to confirm.",
			})
		}
		e.logger.Error("cancel verification failed", "error", err, "event_uuid", req.ScheduledEventUUID)
		return e.record(ctx, req.SessionID, "cancel", Outcome{
			Kind:    OutcomeProviderError,
			Message: "I couldn't verify your appointment right now. Nothing has changed. Please try again in a moment.",
		})
	}

	if err := e.provider.CancelInvitee(ctx, req.BookingUUID, req.ScheduledEventUUID, req.Reason); err != nil {
		if errors.Is(err, calendly.ErrNotFound) {
			return e.record(ctx, req.SessionID, "cancel", Outcome{
				Kind:    OutcomeUserMessage,
				Message: "I couldn't find that appointment. It may have already been cancelled.",
			})
		}
		e.logger.Error("cancel failed", "error", err, "booking_uuid", req.BookingUUID)
		return e.record(ctx, req.SessionID, "cancel", Outcome{
			Kind:    OutcomeProviderError,
			Message: "I couldn't cancel your appointment right now. It is still on the books. Please try again or call " + e.clinicPhone + ".",
		})
	}

	e.logger.Info("appointment cancelled", "session_id", req.SessionID, "booking_uuid", req.BookingUUID)
	return e.record(ctx, req.SessionID, "cancel", Outcome{
		Kind:                 OutcomeSuccess,
		Message:              "Your appointment has been cancelled. We hope to see you again soon.",
		CancelledBookingUUID: req.BookingUUID,
	})
}

func (e *Executor) bookingFailure(err error) Outcome {
	if errors.Is(err, calendly.ErrUnsupportedLocation) {
		return Outcome{
			Kind:    OutcomeUserMessage,
			Message: "This appointment type requires booking by phone. Please call " + e.clinicPhone + " to complete your booking.",
		}
	}
	e.logger.Error("booking failed", "error", err)
	return Outcome{
		Kind:    OutcomeProviderError,
		Message: "I couldn't complete your booking right now. The slot may have just been taken. Please try again or pick another time.",
	}
}

func (e *Executor) partialFailure(req RescheduleRequest) Outcome {
	return Outcome{
		Kind: OutcomePartialFailure,
		Message: fmt.Sprintf(
			"Your original appointment was cancelled, but I couldn't book the new time (%s). Please book a new appointment or call %s.",
			req.NewSlotTime, e.clinicPhone),
		CancelledBookingUUID: req.BookingUUID,
	}
}

// record appends the outcome to the audit store. Audit failures are logged
// and never surfaced to the caller.
func (e *Executor) record(ctx context.Context, sessionID, operation string, o Outcome) Outcome {
	entry := audit.Entry{
		SessionID: sessionID,
		Operation: operation,
		Outcome:   string(o.Kind),
		Detail:    o.Message,
	}
	if o.Booking != nil {
		entry.BookingUUID = o.Booking.BookingUUID
	} else if o.CancelledBookingUUID != "" {
		entry.BookingUUID = o.CancelledBookingUUID
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		e.logger.Warn("failed to append audit entry", "error", err, "operation", operation)
	}
	return o
}
