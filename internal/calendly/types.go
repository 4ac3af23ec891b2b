package calendly

import "time"

// EventType is a bookable appointment category as Calendly defines it.
type EventType struct {
	URI      string
	Name     string
	Duration int
	Active   bool
}

// LocationOption describes one configured meeting location on an event type.
type LocationOption struct {
	Kind     string
	Location string
}

// EventTypeDetail is the full event type resource, including locations.
type EventTypeDetail struct {
	EventType
	Locations []LocationOption
}

// AvailableTime is one open start time for an event type.
type AvailableTime struct {
	Status        string
	StartTime     time.Time
	SchedulingURL string
}

// Invitee is a confirmed booking participant returned by the provider.
type Invitee struct {
	URI           string
	UUID          string
	Name          string
	Email         string
	Status        string
	CancelURL     string
	RescheduleURL string
	EventURI      string
}

// ScheduledEvent is a booked event resource.
type ScheduledEvent struct {
	URI       string
	Name      string
	Status    string
	StartTime time.Time
}

// CreateInviteeRequest carries everything needed to commit a booking.
type CreateInviteeRequest struct {
	EventTypeURI string
	StartTime    time.Time
	Name         string
	Email        string
	Timezone     string
	Notes        string
}

type userResponse struct {
	Resource struct {
		URI string `json:"uri"`
	} `json:"resource"`
}

type eventTypesResponse struct {
	Collection []struct {
		URI      string `json:"uri"`
		Name     string `json:"name"`
		Duration int    `json:"duration"`
		Active   bool   `json:"active"`
	} `json:"collection"`
}

type eventTypeResponse struct {
	Resource struct {
		URI       string `json:"uri"`
		Name      string `json:"name"`
		Duration  int    `json:"duration"`
		Active    bool   `json:"active"`
		Locations []struct {
			Kind     string `json:"kind"`
			Location string `json:"location"`
		} `json:"locations"`
	} `json:"resource"`
}

type availableTimesResponse struct {
	Collection []struct {
		Status        string `json:"status"`
		StartTime     string `json:"start_time"`
		SchedulingURL string `json:"scheduling_url"`
	} `json:"collection"`
}

type inviteeResponse struct {
	Resource struct {
		URI           string `json:"uri"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		Status        string `json:"status"`
		CancelURL     string `json:"cancel_url"`
		RescheduleURL string `json:"reschedule_url"`
		Event         string `json:"event"`
	} `json:"resource"`
}

type scheduledEventResponse struct {
	Resource struct {
		URI       string `json:"uri"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		StartTime string `json:"start_time"`
	} `json:"resource"`
}
