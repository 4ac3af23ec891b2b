package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for turn processing.
type ConversationMetrics struct {
	turnsTotal   *prometheus.CounterVec
	toolTotal    *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
	llmRounds    prometheus.Histogram
	rateLimited  prometheus.Counter
	sessionCount prometheus.GaugeFunc
}

func NewConversationMetrics(reg prometheus.Registerer, sessionLen func() int) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed turns",
		}, []string{"status", "action"}),
		toolTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "tool_calls_total",
			Help:      "Total tool calls dispatched by the orchestrator",
		}, []string{"tool"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one full turn, including all tool rounds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		llmRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "llm_rounds_per_turn",
			Help:      "LLM invocations needed to finish one turn",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8},
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "rate_limited_total",
			Help:      "Turns answered with the high-demand message",
		}),
	}
	if sessionLen != nil {
		m.sessionCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "scheduling",
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Sessions currently resident in the store",
		}, func() float64 { return float64(sessionLen()) })
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.toolTotal, m.turnLatency, m.llmRounds, m.rateLimited)
	if m.sessionCount != nil {
		reg.MustRegister(m.sessionCount)
	}
	return m
}

func (m *ConversationMetrics) ObserveTurn(status, action string, seconds float64) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.turnsTotal.WithLabelValues(status, action).Inc()
	m.turnLatency.WithLabelValues(status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveToolCall(tool string) {
	if m == nil {
		return
	}
	m.toolTotal.WithLabelValues(tool).Inc()
}

func (m *ConversationMetrics) ObserveLLMRounds(rounds int) {
	if m == nil {
		return
	}
	m.llmRounds.Observe(float64(rounds))
}

func (m *ConversationMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ProviderMetrics tracks outbound scheduling-provider calls.
type ProviderMetrics struct {
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	m := &ProviderMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total scheduling-provider API calls",
		}, []string{"operation", "status"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Latency of scheduling-provider API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callLatency)
	return m
}

func (m *ProviderMetrics) ObserveCall(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(operation, status).Inc()
	m.callLatency.WithLabelValues(operation).Observe(seconds)
}
