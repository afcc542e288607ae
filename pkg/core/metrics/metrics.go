// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     metrics
// Description: Prometheus instrumentation of the command engine
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcomes
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
)

// Metrics holds all Prometheus metrics for the application. Each instance
// owns its registry, so tests and nested components never collide.
type Metrics struct {
	Registry *prometheus.Registry

	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CollectionSize  prometheus.Gauge
	ScriptLines     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flatset_commands_total",
			Help: "Total number of dispatched commands by name and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flatset_command_duration_seconds",
			Help:    "Command execution time",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"command"}),
		CollectionSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "flatset_collection_size",
			Help: "Number of records currently held in the collection",
		}),
		ScriptLines: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flatset_script_lines_total",
			Help: "Script lines interpreted by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveCommand records one finished command
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	if outcome != OutcomeUnknown {
		m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}

// SetCollectionSize updates the size gauge
func (m *Metrics) SetCollectionSize(n int) {
	if m == nil {
		return
	}
	m.CollectionSize.Set(float64(n))
}

// ObserveScriptLine counts one interpreted script line
func (m *Metrics) ObserveScriptLine(ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeError
	}
	m.ScriptLines.WithLabelValues(outcome).Inc()
}
