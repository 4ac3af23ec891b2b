package scheduling

import (
	"context"
	"time"

	"github.com/hcplus/scheduling-agent/internal/calendly"
	"github.com/hcplus/scheduling-agent/internal/observability/metrics"
)

// InstrumentedProvider wraps a Provider with per-operation call metrics.
type InstrumentedProvider struct {
	next    Provider
	metrics *metrics.ProviderMetrics
}

// NewInstrumentedProvider decorates the provider. A nil metrics handle makes
// the wrapper pass-through.
func NewInstrumentedProvider(next Provider, providerMetrics *metrics.ProviderMetrics) *InstrumentedProvider {
	if next == nil {
		panic("scheduling: provider cannot be nil")
	}
	return &InstrumentedProvider{next: next, metrics: providerMetrics}
}

func (p *InstrumentedProvider) ListEventTypes(ctx context.Context) ([]calendly.EventType, error) {
	started := time.Now()
	out, err := p.next.ListEventTypes(ctx)
	p.observe("list_event_types", started, err)
	return out, err
}

func (p *InstrumentedProvider) ListAvailableTimes(ctx context.Context, eventTypeURI string, start, end time.Time) ([]calendly.AvailableTime, error) {
	started := time.Now()
	out, err := p.next.ListAvailableTimes(ctx, eventTypeURI, start, end)
	p.observe("list_available_times", started, err)
	return out, err
}

func (p *InstrumentedProvider) CreateInvitee(ctx context.Context, req calendly.CreateInviteeRequest) (*calendly.Invitee, error) {
	started := time.Now()
	out, err := p.next.CreateInvitee(ctx, req)
	p.observe("create_invitee", started, err)
	return out, err
}

func (p *InstrumentedProvider) GetScheduledEvent(ctx context.Context, eventUUID string) (*calendly.ScheduledEvent, error) {
	started := time.Now()
	out, err := p.next.GetScheduledEvent(ctx, eventUUID)
	p.observe("get_scheduled_event", started, err)
	return out, err
}

func (p *InstrumentedProvider) CancelInvitee(ctx context.Context, inviteeUUID, eventUUID, reason string) error {
	started := time.Now()
	err := p.next.CancelInvitee(ctx, inviteeUUID, eventUUID, reason)
	p.observe("cancel_invitee", started, err)
	return err
}

func (p *InstrumentedProvider) observe(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.ObserveCall(operation, status, time.Since(started).Seconds())
}
