// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallStatus is 1 for the current status and 0 for all others.
	CallStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicecab_call_status",
		Help: "Current call session status (1 = active label)",
	}, []string{"status"})

	CallFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicecab_call_failed",
		Help: "Whether the call session is in the terminal fatal-error view (1) or not (0)",
	})

	TransportEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicecab_transport_events_total",
		Help: "Transport state notifications received from the voice client",
	}, []string{"state"})

	CallErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicecab_call_errors_total",
		Help: "Error notifications received from the voice client",
	}, []string{"fatal"})

	CallRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicecab_call_requests_total",
		Help: "Connect/disconnect requests issued to the voice client by outcome",
	}, []string{"action", "outcome"}) // outcome=ok|error

	BootstrapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicecab_bootstrap_duration_seconds",
		Help:    "Latency of the session bootstrap request to the call backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

// SetCallStatus flips the status gauge so exactly one label reads 1.
func SetCallStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		CallStatus.WithLabelValues(s).Set(v)
	}
}

// SetCallFailed records whether the fatal-error view is showing.
func SetCallFailed(failed bool) {
	if failed {
		CallFailed.Set(1)
		return
	}
	CallFailed.Set(0)
}

// IncTransportEvent counts a raw transport state notification.
func IncTransportEvent(state string) {
	if state == "" {
		state = "unknown"
	}
	TransportEventsTotal.WithLabelValues(state).Inc()
}

// IncCallError counts a client error notification.
func IncCallError(fatal bool) {
	CallErrorsTotal.WithLabelValues(strconv.FormatBool(fatal)).Inc()
}

// IncCallRequest counts a connect/disconnect request outcome.
func IncCallRequest(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CallRequestsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveBootstrap records a bootstrap request latency in seconds.
func ObserveBootstrap(seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BootstrapDuration.WithLabelValues(outcome).Observe(seconds)
}
