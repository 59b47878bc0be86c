package realtime

import (
	"math"
	"math/rand"
	"time"
)

// reconnector computes jittered exponential delays between connection
// attempts. An attempt counts as stable once the connection survived a
// minute; the next disconnect then starts over at the base delay.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	attempt     int
	connectedAt time.Time
}

func newReconnector(base, max time.Duration) *reconnector {
	return &reconnector{
		baseDelay: base,
		maxDelay:  max,
	}
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > time.Minute {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}
