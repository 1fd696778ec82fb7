package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// ErrInvalidGPUClass is a programmer error: the catalog was asked about
	// a GPU class outside the closed enumeration.
	ErrInvalidGPUClass = errors.New("invalid gpu class")

	// ErrTransientEmpty signals an empty inbound queue. Not a failure —
	// used by the event loop to detect quiescence.
	ErrTransientEmpty = errors.New("inbound queue empty")

	// ErrCapacityMiss signals that bidding found no feasible placement this
	// round. The job is not lost; a later message may succeed.
	ErrCapacityMiss = errors.New("capacity miss: no layer placement fits")

	// ErrJobNotHosted is returned when an unallocate message names a job
	// this node never won any layer of.
	ErrJobNotHosted = errors.New("job not hosted on this node")
)

// ProtocolViolation is raised when deconfliction detects that a node still
// owns layer l while the claim one layer to its left silently changed
// owner underneath it — invariant I4 (contiguity) broken. node.Worker
// logs it, passes it to OnViolation and carries on without returning it;
// no mode makes it fatal. The next gossip round reconciles.
type ProtocolViolation struct {
	NodeID int
	JobID  string
	Layer  int
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: node=%d job=%s layer=%d: %s", e.NodeID, e.JobID, e.Layer, e.Reason)
}

// IsProtocolViolation reports whether err wraps a *ProtocolViolation.
func IsProtocolViolation(err error) bool {
	var pv *ProtocolViolation
	return errors.As(err, &pv)
}
