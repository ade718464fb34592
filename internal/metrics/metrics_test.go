package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestSetQueueDepthAndCallRecords(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	reg.SetQueueDepth(3)
	reg.SetCallRecords(7)

	if got := gaugeValue(t, reg.QueueDepth); got != 3 {
		t.Fatalf("queue depth %v, want 3", got)
	}
	if got := gaugeValue(t, reg.CallRecords); got != 7 {
		t.Fatalf("call records %v, want 7", got)
	}
}

func TestNilRegistryIsNoOp(t *testing.T) {
	var reg *Registry
	reg.SetLinkState(1, 2)
	reg.ObserveRetransmit(1)
	reg.ObserveLinkUp()
	reg.SetQueueDepth(1)
	reg.SetCallRecords(1)
}
