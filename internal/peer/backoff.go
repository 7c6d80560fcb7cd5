package peer

import (
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/sideband/internal/peerconfig"
)

// nextBackoffDelay computes the delay before reconnect attempt number
// attempt (1-indexed), applying jittered exponential growth bounded by
// cfg.MaxDelayMS. A nil rng disables jitter even if cfg.Jitter is set,
// which test code relies on for determinism.
func nextBackoffDelay(cfg peerconfig.BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	initial := time.Duration(cfg.InitialDelayMS) * time.Millisecond
	if attempt <= 1 || initial <= 0 {
		return initial
	}
	multiplier := cfg.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	if maxDelay := time.Duration(cfg.MaxDelayMS) * time.Millisecond; maxDelay > 0 && delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}
