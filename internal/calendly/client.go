package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const (
	defaultBaseURL = "https://api.calendly.com"
	defaultTimeout = 30 * time.Second
)

var (
	// ErrUnauthorized indicates an invalid or expired API token. This is a
	// configuration fault, not a per-call failure.
	ErrUnauthorized = errors.New("calendly: invalid api token")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("calendly: resource not found")

	// ErrUnsupportedLocation indicates the event type requires a meeting
	// location this client cannot fabricate (for example an invitee phone
	// number the conversation never collected).
	ErrUnsupportedLocation = errors.New("calendly: unsupported location type")
)

// Client is a REST client for the Calendly scheduling API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used for tests and sandboxes.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout overrides the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a Calendly API client with a bearer token.
func NewClient(token string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: defaultBaseURL,
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser resolves the account context and returns the user URI.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &out); err != nil {
		return "", err
	}
	if out.Resource.URI == "" {
		return "", fmt.Errorf("calendly: users/me returned empty uri")
	}
	return out.Resource.URI, nil
}

// ListEventTypes enumerates the bookable appointment categories for the
// authenticated user.
func (c *Client) ListEventTypes(ctx context.Context) ([]EventType, error) {
	userURI, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	var out eventTypesResponse
	query := url.Values{"user": {userURI}}
	if err := c.do(ctx, http.MethodGet, "/event_types", query, nil, &out); err != nil {
		return nil, err
	}

	eventTypes := make([]EventType, 0, len(out.Collection))
	for _, et := range out.Collection {
		eventTypes = append(eventTypes, EventType{
			URI:      et.URI,
			Name:     et.Name,
			Duration: et.Duration,
			Active:   et.Active,
		})
	}
	return eventTypes, nil
}

// GetEventType fetches the full event type resource, including its location
// requirements.
func (c *Client) GetEventType(ctx context.Context, eventTypeURI string) (*EventTypeDetail, error) {
	uuid := lastPathSegment(eventTypeURI)
	if uuid == "" {
		return nil, fmt.Errorf("calendly: invalid event type uri %q", eventTypeURI)
	}

	var out eventTypeResponse
	if err := c.do(ctx, http.MethodGet, "/event_types/"+uuid, nil, nil, &out); err != nil {
		return nil, err
	}

	detail := &EventTypeDetail{
		EventType: EventType{
			URI:      out.Resource.URI,
			Name:     out.Resource.Name,
			Duration: out.Resource.Duration,
			Active:   out.Resource.Active,
		},
	}
	for _, loc := range out.Resource.Locations {
		detail.Locations = append(detail.Locations, LocationOption{
			Kind:     loc.Kind,
			Location: loc.Location,
		})
	}
	return detail, nil
}

// ListAvailableTimes returns open start times for an event type within a
// window. Entries whose timestamps fail to parse are skipped.
func (c *Client) ListAvailableTimes(ctx context.Context, eventTypeURI string, start, end time.Time) ([]AvailableTime, error) {
	query := url.Values{
		"event_type": {eventTypeURI},
		"start_time": {start.UTC().Format(time.RFC3339)},
		"end_time":   {end.UTC().Format(time.RFC3339)},
	}

	var out availableTimesResponse
	if err := c.do(ctx, http.MethodGet, "/event_type_available_times", query, nil, &out); err != nil {
		return nil, err
	}

	times := make([]AvailableTime, 0, len(out.Collection))
	for _, slot := range out.Collection {
		startTime, err := time.Parse(time.RFC3339, slot.StartTime)
		if err != nil {
			c.logger.Warn("skipping slot with unparseable start time", "start_time", slot.StartTime)
			continue
		}
		times = append(times, AvailableTime{
			Status:        slot.Status,
			StartTime:     startTime,
			SchedulingURL: slot.SchedulingURL,
		})
	}
	return times, nil
}

// CreateInvitee commits a booking for an event type at a start time. The
// event type's location requirements are resolved first; location kinds that
// would require fabricating invitee data fail with ErrUnsupportedLocation.
func (c *Client) CreateInvitee(ctx context.Context, req CreateInviteeRequest) (*Invitee, error) {
	if strings.TrimSpace(req.EventTypeURI) == "" {
		return nil, fmt.Errorf("calendly: event type uri is required")
	}
	if req.StartTime.IsZero() {
		return nil, fmt.Errorf("calendly: start time is required")
	}

	detail, err := c.GetEventType(ctx, req.EventTypeURI)
	if err != nil {
		return nil, err
	}
	location, err := locationPayload(detail.Locations)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"event_type": req.EventTypeURI,
		"start_time": req.StartTime.UTC().Format(time.RFC3339),
		"invitee": map[string]any{
			"name":     req.Name,
			"email":    req.Email,
			"timezone": req.Timezone,
		},
		"location": location,
	}
	if strings.TrimSpace(req.Notes) != "" {
		payload["questions_and_answers"] = []map[string]any{
			{"question": "Reason for visit", "answer": req.Notes, "position": 0},
		}
	}

	var out inviteeResponse
	if err := c.do(ctx, http.MethodPost, "/invitees", nil, payload, &out); err != nil {
		return nil, err
	}

	invitee := &Invitee{
		URI:           out.Resource.URI,
		UUID:          lastPathSegment(out.Resource.URI),
		Name:          out.Resource.Name,
		Email:         out.Resource.Email,
		Status:        out.Resource.Status,
		CancelURL:     out.Resource.CancelURL,
		RescheduleURL: out.Resource.RescheduleURL,
		EventURI:      out.Resource.Event,
	}
	if invitee.Status == "" {
		invitee.Status = "active"
	}
	return invitee, nil
}

// GetScheduledEvent verifies a scheduled event exists and returns it.
func (c *Client) GetScheduledEvent(ctx context.Context, eventUUID string) (*ScheduledEvent, error) {
	if strings.TrimSpace(eventUUID) == "" {
		return nil, fmt.Errorf("calendly: scheduled event uuid is required")
	}

	var out scheduledEventResponse
	if err := c.do(ctx, http.MethodGet, "/scheduled_events/"+eventUUID, nil, nil, &out); err != nil {
		return nil, err
	}

	event := &ScheduledEvent{
		URI:    out.Resource.URI,
		Name:   out.Resource.Name,
		Status: out.Resource.Status,
	}
	if t, err := time.Parse(time.RFC3339, out.Resource.StartTime); err == nil {
		event.StartTime = t
	}
	return event, nil
}

// CancelInvitee cancels one invitee on a scheduled event.
func (c *Client) CancelInvitee(ctx context.Context, inviteeUUID, eventUUID, reason string) error {
	if strings.TrimSpace(inviteeUUID) == "" || strings.TrimSpace(eventUUID) == "" {
		return fmt.Errorf("calendly: invitee and scheduled event uuids are required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by patient"
	}

	path := fmt.Sprintf("/scheduled_events/%s/invitees/%s/cancellation", eventUUID, inviteeUUID)
	payload := map[string]any{"reason": reason}
	return c.do(ctx, http.MethodPost, path, nil, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if c.token == "" {
		return fmt.Errorf("calendly: missing api token")
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("calendly: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("calendly: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendly: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calendly: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("calendly: status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("calendly: unmarshal response: %w", err)
	}
	return nil
}

// locationPayload selects the first configured location option and maps it to
// the invitee creation payload.
func locationPayload(locations []LocationOption) (map[string]any, error) {
	if len(locations) == 0 {
		return map[string]any{"kind": "ask_invitee"}, nil
	}

	first := locations[0]
	switch first.Kind {
	case "physical":
		return map[string]any{"kind": "physical", "location": first.Location}, nil
	case "zoom", "google_conference", "microsoft_teams_conference", "gotomeeting":
		return map[string]any{"kind": first.Kind}, nil
	case "outbound_call":
		return map[string]any{"kind": "outbound_call"}, nil
	case "inbound_call":
		// Requires an invitee phone number this flow does not collect.
		return nil, ErrUnsupportedLocation
	case "", "ask_invitee":
		return map[string]any{"kind": "ask_invitee"}, nil
	default:
		return map[string]any{"kind": "ask_invitee"}, nil
	}
}

func lastPathSegment(uri string) string {
	uri = strings.TrimRight(uri, "/")
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return uri
	}
	return uri[idx+1:]
}
