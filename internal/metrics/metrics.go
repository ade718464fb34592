// Package metrics exposes the engine's Prometheus instrumentation:
// per-link state, event-queue depth, and call-record count, grounded
// on runZeroInc-sockstats/pkg/exporter's client_golang usage.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the engine's metric vectors. A nil *Registry is a
// safe no-op for callers that build an engine without instrumentation.
type Registry struct {
	LinkState    *prometheus.GaugeVec
	QueueDepth   prometheus.Gauge
	CallRecords  prometheus.Gauge
	Retransmits  *prometheus.CounterVec
	LinksUpTotal prometheus.Counter
}

// NewRegistry constructs a Registry and registers its collectors with
// reg. Pass prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to publish on the default /metrics
// handler.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		LinkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ss7",
			Subsystem: "mtp2",
			Name:      "link_state",
			Help:      "Current MTP2 alignment state per link, as an enum value.",
		}, []string{"fd"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ss7",
			Name:      "event_queue_depth",
			Help:      "Number of events currently buffered in the host event queue.",
		}),
		CallRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ss7",
			Subsystem: "isup",
			Name:      "call_records",
			Help:      "Number of active ISUP call records.",
		}),
		Retransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ss7",
			Subsystem: "mtp2",
			Name:      "retransmits_total",
			Help:      "Total MSU retransmissions triggered by a negative acknowledgement.",
		}, []string{"fd"}),
		LinksUpTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ss7",
			Subsystem: "mtp2",
			Name:      "links_up_total",
			Help:      "Total number of times any link has reached IN_SERVICE.",
		}),
	}
	reg.MustRegister(r.LinkState, r.QueueDepth, r.CallRecords, r.Retransmits, r.LinksUpTotal)
	return r
}

// SetLinkState records fd's current mtp2.State as its numeric value.
func (r *Registry) SetLinkState(fd int, state int) {
	if r == nil {
		return
	}
	r.LinkState.WithLabelValues(fdLabel(fd)).Set(float64(state))
}

// ObserveRetransmit increments fd's retransmit counter.
func (r *Registry) ObserveRetransmit(fd int) {
	if r == nil {
		return
	}
	r.Retransmits.WithLabelValues(fdLabel(fd)).Inc()
}

// ObserveLinkUp increments the process-wide links-up counter.
func (r *Registry) ObserveLinkUp() {
	if r == nil {
		return
	}
	r.LinksUpTotal.Inc()
}

// SetQueueDepth records the event queue's current length.
func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

// SetCallRecords records the ISUP call table's current size.
func (r *Registry) SetCallRecords(n int) {
	if r == nil {
		return
	}
	r.CallRecords.Set(float64(n))
}

func fdLabel(fd int) string {
	return strconv.Itoa(fd)
}
