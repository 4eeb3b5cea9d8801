// Package gate rate-limits how often the correlator runs against the
// report stream. The printer pushes status many times per second while job
// state changes on the scale of minutes; admitting every message would
// multiply store writes for no benefit.
package gate

import (
	"time"

	"golang.org/x/time/rate"
)

// SamplingGate admits at most one snapshot per interval. State is owned by
// the instance, so a gate can exist per device and be tested with a fake
// clock. Not safe for concurrent use beyond what rate.Limiter guarantees;
// the message loop is single-consumer.
type SamplingGate struct {
	limiter *rate.Limiter
}

// New creates a SamplingGate with the given admission interval.
// A non-positive interval disables throttling and admits everything.
// Parameters:
//   - interval: minimum time between admitted snapshots.
// Returns:
//   - *SamplingGate: gate ready to admit its first check immediately.
func New(interval time.Duration) *SamplingGate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &SamplingGate{limiter: rate.NewLimiter(limit, 1)}
}

// ShouldAdmit reports whether a snapshot observed at now may proceed, and
// advances the gate's state iff it does. Rejected checks leave the state
// unchanged: a message at t0+interval is admitted even if hundreds were
// rejected in between. Dropped messages are gone for good, which is the
// documented blind spot: a print that starts and finishes inside one
// interval can be missed entirely.
// Parameters:
//   - now: observation time of the snapshot.
// Returns:
//   - bool: true when the snapshot is admitted.
func (g *SamplingGate) ShouldAdmit(now time.Time) bool {
	return g.limiter.AllowN(now, 1)
}
