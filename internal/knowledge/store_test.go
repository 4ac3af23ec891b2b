package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

func TestSearchCacheHits(t *testing.T) {
	s := NewService(logging.Default())

	tests := []struct {
		question string
		want     string
	}{
		{"What are your opening hours?", "clinic hours"},
		{"do you take insurance", "insurance"},
		{"Where can I park?", "parking"},
		{"I have a question about my bill", "billing"},
		{"what's your cancellation policy", "cancelled or rescheduled"},
		{"What should I bring to my first visit?", "photo ID"},
		{"I'm a new patient, what do I need?", "photo ID"},
	}
	for _, tt := range tests {
		answer := s.Search(context.Background(), tt.question)
		assert.Containsf(t, answer, tt.want, "question %q", tt.question)
	}
}

func TestSearchMissWithoutRemote(t *testing.T) {
	s := NewService(logging.Default())

	answer := s.Search(context.Background(), "do you sell gift cards")
	assert.Equal(t, fallbackAnswer, answer)
}

func TestSearchFallsThroughToRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/query", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"Yes, we offer telehealth visits on weekdays."}`))
	}))
	defer server.Close()

	remote, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL, APIKey: "test-key", Timeout: time.Second})
	require.NoError(t, err)
	s := NewService(logging.Default(), WithRemote(remote))

	answer := s.Search(context.Background(), "do you offer telehealth visits")
	assert.Equal(t, "Yes, we offer telehealth visits on weekdays.", answer)
}

func TestSearchRemoteFailureReturnsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	remote, err := NewRemoteClient(RemoteConfig{BaseURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)
	s := NewService(logging.Default(), WithRemote(remote))

	answer := s.Search(context.Background(), "do you sell gift cards")
	assert.Equal(t, fallbackAnswer, answer)
}

func TestNewRemoteClientRequiresBaseURL(t *testing.T) {
	_, err := NewRemoteClient(RemoteConfig{})
	assert.Error(t, err)
}
