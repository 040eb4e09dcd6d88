package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollProbes counts status probes issued, per poller key.
	PollProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosspay_poll_probes_total",
		Help: "Status probes issued against external backends.",
	}, []string{"poller"})

	// PollProbeErrors counts transient probe failures.
	PollProbeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosspay_poll_probe_errors_total",
		Help: "Transient probe failures, retried on the poll interval.",
	}, []string{"poller"})

	// EventsEmitted counts payment events delivered to the host, per type.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosspay_events_emitted_total",
		Help: "Payment events delivered to host callbacks.",
	}, []string{"type"})

	// DispatchSuppressed counts completion dispatches deduplicated by key.
	DispatchSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosspay_dispatch_suppressed_total",
		Help: "Completion dispatches suppressed as already delivered.",
	})
)
