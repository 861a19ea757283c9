package metrics

import (
	"net/http"
	"time"

	"tradeduel/internal/decision"
	"tradeduel/internal/pkg/circuit"
	"tradeduel/internal/simulation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one process, on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	StepsTotal     *prometheus.CounterVec // labels: agent, action, source
	FallbacksTotal *prometheus.CounterVec // labels: agent
	ClampedTotal   *prometheus.CounterVec // labels: agent
	ModelLatency   *prometheus.HistogramVec
	ModelErrors    *prometheus.CounterVec // labels: agent
	PortfolioValue *prometheus.GaugeVec   // labels: agent
	CandleIndex    prometheus.Gauge
	RunsFinished   prometheus.Counter
	Resets         prometheus.Counter
	BreakerState   prometheus.Gauge // 0=closed, 1=open, 2=half-open
}

var (
	_ simulation.Observer   = (*Metrics)(nil)
	_ decision.CallRecorder = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeduel_steps_total",
			Help: "Agent decisions applied, by action and source",
		}, []string{"agent", "action", "source"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeduel_fallbacks_total",
			Help: "Decisions produced by the rule-based fallback",
		}, []string{"agent"}),
		ClampedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeduel_clamped_fills_total",
			Help: "Fills that executed fewer shares than requested",
		}, []string{"agent"}),
		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeduel_model_call_duration_seconds",
			Help:    "Chat-completion round trip latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"agent"}),
		ModelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeduel_model_call_errors_total",
			Help: "Failed chat-completion calls",
		}, []string{"agent"}),
		PortfolioValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradeduel_portfolio_value",
			Help: "Portfolio value at the current close",
		}, []string{"agent"}),
		CandleIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeduel_candle_index",
			Help: "Index of the candle last decided on",
		}),
		RunsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeduel_runs_finished_total",
			Help: "Simulations that reached the end of the series",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeduel_resets_total",
			Help: "Simulation resets",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeduel_model_circuit_state",
			Help: "Model gateway breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StepsTotal, m.FallbacksTotal, m.ClampedTotal, m.ModelLatency, m.ModelErrors,
		m.PortfolioValue, m.CandleIndex, m.RunsFinished, m.Resets, m.BreakerState,
	)
	return m
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) OnStep(ev simulation.StepEvent) {
	agent := ev.Agent.ID
	m.StepsTotal.WithLabelValues(agent, string(ev.Outcome.Action), string(ev.Outcome.Source)).Inc()
	if ev.Outcome.Source == decision.SourceFallback {
		m.FallbacksTotal.WithLabelValues(agent).Inc()
	}
	if ev.Fill.Clamped() {
		m.ClampedTotal.WithLabelValues(agent).Inc()
	}
	m.PortfolioValue.WithLabelValues(agent).Set(ev.Value)
	m.CandleIndex.Set(float64(ev.Index))
}

func (m *Metrics) OnFinish(res simulation.Results) {
	m.RunsFinished.Inc()
	for _, s := range res.Standings {
		m.PortfolioValue.WithLabelValues(s.ID).Set(s.Value)
	}
}

func (m *Metrics) OnReset(string) {
	m.Resets.Inc()
	m.CandleIndex.Set(0)
	m.PortfolioValue.Reset()
}

// ObserveModelCall satisfies decision.CallRecorder.
func (m *Metrics) ObserveModelCall(agent, model string, dur time.Duration, err error) {
	m.ModelLatency.WithLabelValues(agent).Observe(dur.Seconds())
	if err != nil {
		m.ModelErrors.WithLabelValues(agent).Inc()
	}
}

// ObserveBreaker is meant for circuit.Breaker.OnStateChange.
func (m *Metrics) ObserveBreaker(_ string, _, to circuit.State) {
	m.BreakerState.Set(float64(to))
}
