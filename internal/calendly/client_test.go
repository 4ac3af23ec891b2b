package calendly

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListEventTypes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resource": map[string]any{"uri": "https://api.calendly.com/users/u1"},
			})
		case "/event_types":
			if got := r.URL.Query().Get("user"); got != "https://api.calendly.com/users/u1" {
				t.Errorf("unexpected user query: %s", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"collection": []map[string]any{
					{"uri": "https://api.calendly.com/event_types/et1", "name": "30min Consultation", "duration": 30, "active": true},
					{"uri": "https://api.calendly.com/event_types/et2", "name": "45min Physical Exam", "duration": 45, "active": true},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	eventTypes, err := c.ListEventTypes(context.Background())
	if err != nil {
		t.Fatalf("ListEventTypes error: %v", err)
	}
	if len(eventTypes) != 2 || eventTypes[0].Name != "30min Consultation" {
		t.Fatalf("unexpected event types: %+v", eventTypes)
	}
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient("bad-token", nil, WithBaseURL(ts.URL))

	_, err := c.CurrentUser(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetScheduledEventNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	_, err := c.GetScheduledEvent(context.Background(), "missing-event")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateInviteeResolvesLocation(t *testing.T) {
	var bookingPayload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/event_types/et1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resource": map[string]any{
					"uri": "https://api.calendly.com/event_types/et1", "name": "30min", "duration": 30, "active": true,
					"locations": []map[string]any{{"kind": "physical", "location": "12 Clinic Road"}},
				},
			})
		case "/invitees":
			if err := json.NewDecoder(r.Body).Decode(&bookingPayload); err != nil {
				t.Fatalf("decode invitee payload: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resource": map[string]any{
					"uri":            "https://api.calendly.com/scheduled_events/ev1/invitees/inv1",
					"name":           "Asha Rao",
					"email":          "asha@example.com",
					"status":         "active",
					"cancel_url":     "https://calendly.com/cancellations/inv1",
					"reschedule_url": "https://calendly.com/reschedulings/inv1",
					"event":          "https://api.calendly.com/scheduled_events/ev1",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	invitee, err := c.CreateInvitee(context.Background(), CreateInviteeRequest{
		EventTypeURI: "https://api.calendly.com/event_types/et1",
		StartTime:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Name:         "Asha Rao",
		Email:        "asha@example.com",
		Timezone:     "Asia/Kolkata",
		Notes:        "headaches",
	})
	if err != nil {
		t.Fatalf("CreateInvitee error: %v", err)
	}
	if invitee.UUID != "inv1" {
		t.Fatalf("expected invitee uuid inv1, got %s", invitee.UUID)
	}
	if invitee.EventURI != "https://api.calendly.com/scheduled_events/ev1" {
		t.Fatalf("unexpected event uri: %s", invitee.EventURI)
	}

	location, _ := bookingPayload["location"].(map[string]any)
	if location["kind"] != "physical" || location["location"] != "12 Clinic Road" {
		t.Fatalf("unexpected location payload: %+v", location)
	}
	if _, ok := bookingPayload["questions_and_answers"]; !ok {
		t.Fatal("expected notes forwarded as questions_and_answers")
	}
}

func TestCreateInviteeInboundCallUnsupported(t *testing.T) {
	createCalled := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/event_types/et1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resource": map[string]any{
					"uri": "https://api.calendly.com/event_types/et1", "name": "30min", "duration": 30, "active": true,
					"locations": []map[string]any{{"kind": "inbound_call"}},
				},
			})
		case "/invitees":
			createCalled = true
			http.Error(w, "should not be called", http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	_, err := c.CreateInvitee(context.Background(), CreateInviteeRequest{
		EventTypeURI: "https://api.calendly.com/event_types/et1",
		StartTime:    time.Now().Add(24 * time.Hour),
		Name:         "Asha Rao",
		Email:        "asha@example.com",
	})
	if !errors.Is(err, ErrUnsupportedLocation) {
		t.Fatalf("expected ErrUnsupportedLocation, got %v", err)
	}
	if createCalled {
		t.Fatal("invitee creation should not reach the provider for inbound_call locations")
	}
}

func TestCancelInvitee(t *testing.T) {
	var gotPath string
	var payload map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	if err := c.CancelInvitee(context.Background(), "inv1", "ev1", ""); err != nil {
		t.Fatalf("CancelInvitee error: %v", err)
	}
	if gotPath != "/scheduled_events/ev1/invitees/inv1/cancellation" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if payload["reason"] != "Cancelled by patient" {
		t.Fatalf("expected default cancellation reason, got %v", payload["reason"])
	}
}

func TestListAvailableTimesSkipsBadTimestamps(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"collection": []map[string]any{
				{"status": "available", "start_time": "2026-03-10T04:00:00Z"},
				{"status": "available", "start_time": "not-a-time"},
			},
		})
	}))
	defer ts.Close()

	c := NewClient("token", nil, WithBaseURL(ts.URL))

	times, err := c.ListAvailableTimes(context.Background(),
		"https://api.calendly.com/event_types/et1",
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListAvailableTimes error: %v", err)
	}
	if len(times) != 1 {
		t.Fatalf("expected 1 parseable slot, got %d", len(times))
	}
}
