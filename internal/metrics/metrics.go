// Package metrics exposes Prometheus instrumentation for the fleet:
// placements, deconfliction rounds, consensus rounds, and resets.
// Grounded on the teacher's internal/infra/observability package: one
// promauto-registered package-level var per signal, namespaced under
// the module's own name rather than the teacher's.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Placements tracks layer placements won, by utility function.
var Placements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "bidding",
	Name:      "placements_total",
	Help:      "Total layer placements won, by utility function.",
}, []string{"utility"})

// BidsRejected tracks bids that were evaluated but lost or were
// infeasible, by reason.
var BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "bidding",
	Name:      "bids_rejected_total",
	Help:      "Total bids rejected, by reason.",
}, []string{"reason"})

// DeconflictionRounds tracks how many times the deconfliction engine ran
// per job.
var DeconflictionRounds = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "deconfliction",
	Name:      "rounds_total",
	Help:      "Total deconfliction rounds processed across all nodes.",
})

// ConsensusRounds tracks how many message deliveries short-circuited on
// the consensus check (all layers claimed, arrays identical).
var ConsensusRounds = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "deconfliction",
	Name:      "consensus_total",
	Help:      "Total message deliveries that hit the consensus short-circuit.",
})

// Resets tracks RESET events — a layer's decision arrays wiped back to
// unclaimed after a conflicting view was detected.
var Resets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "deconfliction",
	Name:      "resets_total",
	Help:      "Total RESET events forcing a layer back to unclaimed.",
})

// ProtocolViolations tracks detected I3/I4 violations — layers retained
// inconsistently with an adjacent layer's ownership change.
var ProtocolViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plebiscito",
	Subsystem: "deconfliction",
	Name:      "protocol_violations_total",
	Help:      "Total protocol violations detected during deconfliction, by node.",
}, []string{"node"})

// NodeUtilization tracks each node's combined CPU/GPU utilization rate.
var NodeUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "plebiscito",
	Subsystem: "node",
	Name:      "utilization_rate",
	Help:      "Combined CPU/GPU utilization rate per node, in [0,1].",
}, []string{"node"})

// JobsInFlight tracks jobs dispatched but not yet fully claimed.
var JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "plebiscito",
	Subsystem: "controller",
	Name:      "jobs_in_flight",
	Help:      "Jobs dispatched to the fleet that have not yet reached consensus.",
})
