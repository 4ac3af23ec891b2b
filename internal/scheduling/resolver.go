package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hcplus/scheduling-agent/internal/calendly"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const (
	searchWindowDays = 7
	maxDaysShown     = 5
	maxSlotsPerDay   = 5
	maxRawSlots      = 10
)

// appointmentDurations maps appointment category names to the duration label
// embedded in the matching event type's name.
var appointmentDurations = map[string]string{
	"general consultation":    "30min",
	"follow-up":               "15min",
	"physical exam":           "45min",
	"specialist consultation": "60min",
}

// Resolver maps an appointment category and date/time preference to one
// provider offering and a filtered, timezone-normalized slot list.
type Resolver struct {
	provider    Provider
	loc         *time.Location
	clinicPhone string
	logger      *logging.Logger
	now         func() time.Time
}

// NewResolver creates a slot resolver operating in the clinic's timezone.
func NewResolver(provider Provider, timezone, clinicPhone string, logger *logging.Logger) *Resolver {
	if provider == nil {
		panic("scheduling: provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("invalid clinic timezone, falling back to UTC", "timezone", timezone)
		loc = time.UTC
	}
	return &Resolver{
		provider:    provider,
		loc:         loc,
		clinicPhone: clinicPhone,
		logger:      logger,
		now:         time.Now,
	}
}

// FindSlots produces open slots for the request. Every failure mode is
// reported through Summary; this method never returns an error to callers.
func (r *Resolver) FindSlots(ctx context.Context, req AvailabilityRequest) AvailabilityResult {
	requested, err := time.ParseInLocation("2006-01-02", req.Date, r.loc)
	if err != nil {
		return AvailabilityResult{
			Summary: fmt.Sprintf("Invalid date format %q. Please use YYYY-MM-DD.", req.Date),
		}
	}

	today := r.today()
	if requested.Before(today) {
		// No provider call for past dates.
		return AvailabilityResult{
			Summary: fmt.Sprintf(
				"Cannot fetch availability for past dates. Requested: %s, Today: %s. Please provide a future date.",
				req.Date, today.Format("2006-01-02")),
		}
	}

	eventTypes, err := r.provider.ListEventTypes(ctx)
	if err != nil {
		r.logger.Error("failed to list event types", "error", err)
		return AvailabilityResult{
			Summary: "I'm having trouble reaching the scheduling system right now. Please try again in a moment or call " + r.clinicPhone + ".",
		}
	}
	if len(eventTypes) == 0 {
		return AvailabilityResult{
			Summary: "No appointment types are available right now. Please contact support.",
		}
	}

	eventType, usedFallback := r.matchEventType(eventTypes, req.AppointmentType)

	windowStart := requested
	windowEnd := requested.AddDate(0, 0, searchWindowDays)
	available, err := r.provider.ListAvailableTimes(ctx, eventType.URI, windowStart, windowEnd)
	if err != nil {
		r.logger.Error("failed to list available times", "error", err, "event_type", eventType.URI)
		return AvailabilityResult{
			Summary: "I'm having trouble reaching the scheduling system right now. Please try again in a moment or call " + r.clinicPhone + ".",
		}
	}
	if len(available) == 0 {
		return AvailabilityResult{
			EventType:    eventType,
			UsedFallback: usedFallback,
			Summary: fmt.Sprintf(
				"No available slots found for %s around %s. Please try a different date or call %s for last-minute cancellations.",
				req.AppointmentType, req.Date, r.clinicPhone),
		}
	}

	pref := req.Preference
	if pref == "" {
		pref = PreferenceAny
	}

	type daySlots struct {
		day   string
		times []string
	}
	var days []daySlots
	dayIndex := map[string]int{}
	var slots []Slot

	for _, at := range available {
		// Convert to clinic-local time before classifying; the provider
		// returns UTC and the time-of-day windows are local.
		local := at.StartTime.In(r.loc)
		if !matchesPreference(pref, local.Hour()) {
			continue
		}

		dayKey := local.Format("Monday, January 2")
		idx, ok := dayIndex[dayKey]
		if !ok {
			idx = len(days)
			dayIndex[dayKey] = idx
			days = append(days, daySlots{day: dayKey})
		}
		days[idx].times = append(days[idx].times, local.Format("3:04 PM"))

		if len(slots) < maxRawSlots {
			slots = append(slots, Slot{
				StartTimeISO: at.StartTime.UTC().Format(time.RFC3339),
				EventTypeURI: eventType.URI,
				Display:      local.Format("2006-01-02 3:04 PM"),
			})
		}
	}

	if len(days) == 0 {
		return AvailabilityResult{
			EventType:    eventType,
			UsedFallback: usedFallback,
			Summary: fmt.Sprintf(
				"No %s slots available for %s. Available times are outside your preferred time range. Would you like to see all available times?",
				pref, req.AppointmentType),
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available %s slots for %s:\n\n", pref, req.AppointmentType)
	shownDays := days
	if len(shownDays) > maxDaysShown {
		shownDays = shownDays[:maxDaysShown]
	}
	for _, d := range shownDays {
		fmt.Fprintf(&b, "%s:\n", d.day)
		times := d.times
		if len(times) > maxSlotsPerDay {
			times = times[:maxSlotsPerDay]
		}
		for _, t := range times {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
	}

	return AvailabilityResult{
		Summary:      strings.TrimSpace(b.String()),
		Slots:        slots,
		EventType:    eventType,
		UsedFallback: usedFallback,
	}
}

// matchEventType looks up the duration label for the appointment category and
// returns the first offering whose name contains it. When nothing matches it
// degrades to the first offering, which is logged so the fallback is visible.
func (r *Resolver) matchEventType(eventTypes []calendly.EventType, appointmentType string) (calendly.EventType, bool) {
	targetDuration := appointmentDurations[strings.ToLower(strings.TrimSpace(appointmentType))]
	if targetDuration != "" {
		for _, et := range eventTypes {
			if strings.Contains(strings.ToLower(et.Name), targetDuration) {
				return et, false
			}
		}
	}

	r.logger.Warn("no offering matched appointment type, using first offering",
		"appointment_type", appointmentType,
		"fallback", eventTypes[0].Name,
	)
	return eventTypes[0], true
}

func (r *Resolver) today() time.Time {
	now := r.now().In(r.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
}

func matchesPreference(pref TimePreference, localHour int) bool {
	switch pref {
	case PreferenceMorning:
		return localHour < 12
	case PreferenceAfternoon:
		return localHour >= 12 && localHour < 17
	case PreferenceEvening:
		return localHour >= 17
	default:
		return true
	}
}
