// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestSetCallStatus_OneHot(t *testing.T) {
	all := []string{"idle", "ready", "connecting", "connected", "active"}

	SetCallStatus("connecting", all)
	for _, s := range all {
		want := 0.0
		if s == "connecting" {
			want = 1
		}
		assert.Equal(t, want, getGaugeValue(t, CallStatus.WithLabelValues(s)), s)
	}

	SetCallStatus("active", all)
	assert.Equal(t, 0.0, getGaugeValue(t, CallStatus.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, getGaugeValue(t, CallStatus.WithLabelValues("active")))
}

func TestSetCallFailed(t *testing.T) {
	SetCallFailed(true)
	assert.Equal(t, 1.0, getGaugeValue(t, CallFailed))
	SetCallFailed(false)
	assert.Equal(t, 0.0, getGaugeValue(t, CallFailed))
}

func TestCounters(t *testing.T) {
	before := getCounterValue(t, TransportEventsTotal.WithLabelValues("unknown"))
	IncTransportEvent("")
	assert.Equal(t, before+1, getCounterValue(t, TransportEventsTotal.WithLabelValues("unknown")))

	before = getCounterValue(t, CallErrorsTotal.WithLabelValues("true"))
	IncCallError(true)
	assert.Equal(t, before+1, getCounterValue(t, CallErrorsTotal.WithLabelValues("true")))

	okBefore := getCounterValue(t, CallRequestsTotal.WithLabelValues("connect", "ok"))
	errBefore := getCounterValue(t, CallRequestsTotal.WithLabelValues("connect", "error"))
	IncCallRequest("connect", nil)
	IncCallRequest("connect", errors.New("boom"))
	assert.Equal(t, okBefore+1, getCounterValue(t, CallRequestsTotal.WithLabelValues("connect", "ok")))
	assert.Equal(t, errBefore+1, getCounterValue(t, CallRequestsTotal.WithLabelValues("connect", "error")))

	before = getCounterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncBusDropReason("", "")
	assert.Equal(t, before+1, getCounterValue(t, BusDroppedTotal.WithLabelValues("unknown", "unknown")))
}

func TestPromhttpExposure(t *testing.T) {
	ObserveBootstrap(0.25, nil)
	SetBusSubscribers("call.model", 2)

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	for _, name := range []string{
		"voicecab_bootstrap_duration_seconds_bucket",
		`voicecab_bus_subscribers{topic="call.model"} 2`,
	} {
		assert.True(t, strings.Contains(out, name), "missing %s", name)
	}
}
