// Package metrics exposes Prometheus instrumentation for the trading
// pipeline and serves it over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle metrics
var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_cycles_total",
		Help: "Total trading cycles by agent and outcome",
	}, []string{"agent", "outcome"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradepilot_cycle_duration_seconds",
		Help:    "Trading cycle duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"agent"})
)

// Decision metrics
var (
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_decisions_total",
		Help: "Total decisions by agent and action",
	}, []string{"agent", "action"})

	DecisionConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradepilot_decision_confidence",
		Help: "Confidence of the most recent decision (0.0 to 1.0)",
	}, []string{"agent"})

	RiskRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_risk_rejections_total",
		Help: "Total decisions rejected by risk validation",
	}, []string{"agent"})
)

// Execution metrics
var (
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_orders_submitted_total",
		Help: "Total orders submitted by agent and side",
	}, []string{"agent", "side"})

	OrderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepilot_order_errors_total",
		Help: "Total order submission failures",
	}, []string{"agent"})

	DailyPnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradepilot_daily_pnl",
		Help: "Realized PnL for the current trading day in USD",
	}, []string{"agent"})

	OpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradepilot_open_positions",
		Help: "Number of open positions held by the agent",
	}, []string{"agent"})
)

// Loop metrics
var (
	AgentsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradepilot_agents_running",
		Help: "Number of agent loops currently running",
	})
)

// Cycle outcomes for the CyclesTotal counter
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// RecordCycle records one finished cycle
func RecordCycle(agent, outcome string, durationSeconds float64) {
	CyclesTotal.WithLabelValues(agent, outcome).Inc()
	CycleDuration.WithLabelValues(agent).Observe(durationSeconds)
}

// RecordDecision records a decision and its confidence
func RecordDecision(agent, action string, confidence float64) {
	Decisions.WithLabelValues(agent, action).Inc()
	DecisionConfidence.WithLabelValues(agent).Set(confidence)
}

// RecordRiskRejection records a decision blocked by risk checks
func RecordRiskRejection(agent string) {
	RiskRejections.WithLabelValues(agent).Inc()
}

// RecordOrder records an order submission attempt
func RecordOrder(agent, side string, err error) {
	if err != nil {
		OrderErrors.WithLabelValues(agent).Inc()
		return
	}
	OrdersSubmitted.WithLabelValues(agent, side).Inc()
}

// UpdateAgentState publishes the agent's daily PnL and position count
func UpdateAgentState(agent string, pnlToday float64, openPositions int) {
	DailyPnL.WithLabelValues(agent).Set(pnlToday)
	OpenPositions.WithLabelValues(agent).Set(float64(openPositions))
}
