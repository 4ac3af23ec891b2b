// Package knowledge answers clinic questions: a pre-computed FAQ cache first,
// then an optional remote retrieval service. Lookups are best-effort and
// never return an error to the caller.
package knowledge

import (
	"context"
	"regexp"
	"strings"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const fallbackAnswer = "I'm sorry, I don't have that information on hand. Please call the clinic and our staff will be happy to help."

// Entry is one cached FAQ response.
type Entry struct {
	Pattern  *regexp.Regexp
	Keywords []string // alternative matching keywords, all must appear
	Response string
}

// defaultEntries covers the questions the front desk answers every day.
// These bypass the retrieval service for instant responses.
var defaultEntries = []Entry{
	{
		Pattern:  regexp.MustCompile(`(?i)(opening|office|clinic|business)?\s*hours|when.*(open|close)`),
		Keywords: []string{"hours"},
		Response: `Our clinic hours are Monday to Friday 8:00 AM - 6:00 PM and Saturday 9:00 AM - 1:00 PM. We are closed on Sundays and public holidays. Would you like to book an appointment?`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)insurance|covered|coverage|copay|co-pay`),
		Keywords: []string{"insurance"},
		Response: `We accept most major insurance plans. Please bring your insurance card and a photo ID to your appointment. If you'd like us to verify your coverage ahead of time, call the front desk and we'll check with your insurer.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)park(ing)?|where.*park`),
		Keywords: []string{"parking"},
		Response: `Free patient parking is available in the lot behind the building; enter from the side street. Accessible spaces are next to the main entrance, and there is a drop-off zone in front.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)bill(ing)?|invoice|payment plan|pay my`),
		Keywords: []string{"billing"},
		Response: `For billing questions, our billing team is available Monday to Friday 9:00 AM - 5:00 PM. You can pay invoices at the front desk, by phone, or through the patient portal. Payment plans are available on request.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)where.*(located|location|address|find you)|directions`),
		Keywords: []string{"address"},
		Response: `We're located in the HealthCare Plus building on the main medical campus, second floor. The front desk can send detailed directions to your phone if you call ahead.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)(cancel+ation|no[\s-]?show).*(policy|fee)|policy.*(cancel|no[\s-]?show)`),
		Keywords: []string{"cancellation", "policy"},
		Response: `Appointments can be cancelled or rescheduled free of charge up to 24 hours in advance. Late cancellations and no-shows may incur a fee. If you need to change an appointment, I can help with that right now.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)(new patient|first (visit|appointment)).*(bring|need|prepare|expect)|(bring|need|prepare|expect).*(new patient|first (visit|appointment))`),
		Keywords: []string{"new", "patient", "bring"},
		Response: `For your first visit, please arrive 15 minutes early and bring a photo ID, your insurance card, and a list of any current medications. New patient forms are available in the patient portal if you'd like to fill them in ahead of time.`,
	},
}

// Service answers clinic questions from the cache, falling back to the
// remote retrieval client when configured.
type Service struct {
	entries []Entry
	remote  *RemoteClient
	logger  *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEntries replaces the default FAQ entries.
func WithEntries(entries []Entry) Option {
	return func(s *Service) {
		s.entries = entries
	}
}

// WithRemote attaches a remote retrieval client consulted on cache misses.
func WithRemote(remote *RemoteClient) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// NewService creates the knowledge lookup service.
func NewService(logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		entries: defaultEntries,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search answers a clinic question. It never fails: a cache miss without a
// remote client, or a remote failure, returns a generic apology so the
// conversation keeps moving.
func (s *Service) Search(ctx context.Context, question string) string {
	if answer, ok := s.lookupCache(question); ok {
		return answer
	}

	if s.remote != nil {
		answer, err := s.remote.Query(ctx, question)
		if err != nil {
			s.logger.Warn("remote knowledge lookup failed", "error", err)
		} else if strings.TrimSpace(answer) != "" {
			return answer
		}
	}

	return fallbackAnswer
}

func (s *Service) lookupCache(question string) (string, bool) {
	normalized := strings.ToLower(question)
	for _, entry := range s.entries {
		if entry.Pattern != nil && entry.Pattern.MatchString(question) {
			return entry.Response, true
		}
		if len(entry.Keywords) == 0 {
			continue
		}
		matched := true
		for _, kw := range entry.Keywords {
			if !strings.Contains(normalized, kw) {
				matched = false
				break
			}
		}
		if matched {
			return entry.Response, true
		}
	}
	return "", false
}
