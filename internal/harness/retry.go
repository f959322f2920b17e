package harness

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/phrazzld/isocheck/internal/domain"
	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/store"
)

// DefaultRetryDelay is the base delay between attempts of RunWithRetry.
const DefaultRetryDelay = 500 * time.Millisecond

// RetryPolicy controls RunWithRetry.
type RetryPolicy struct {
	// Attempts is the total number of runs, including the first.
	Attempts int
	// BaseDelay is doubled after every failed attempt and jittered.
	BaseDelay time.Duration
}

// RunWithRetry re-runs the whole scenario while the store is unreachable.
//
// Only errors wrapping store.ErrConnection are retried. Verdicts, serialization
// failures and every other harness error are returned from the first attempt
// that produced them: retrying a transaction is itself what some scenarios
// observe.
func RunWithRetry(ctx context.Context, r *Runner, sc *Scenario, level domain.IsolationLevel, policy RetryPolicy) (*domain.VerificationResult, error) {
	log := logger.FromContext(ctx)

	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = DefaultRetryDelay
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := r.Run(ctx, sc, level)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !store.IsConnectionError(err) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}

		// delay = base * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(base) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		log.Warn("store unreachable, retrying run",
			"scenario", sc.Name,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry of %s cancelled: %w", sc.Name, ctx.Err())
		}
	}

	return nil, fmt.Errorf("scenario %s failed after %d attempts: %w", sc.Name, attempts, lastErr)
}

// RetryingRunner runs scenarios through RunWithRetry with a fixed policy. It
// satisfies the same Run signature as *Runner.
type RetryingRunner struct {
	Runner *Runner
	Policy RetryPolicy
}

// Run implements the scenario run with retries on connection errors.
func (rr *RetryingRunner) Run(ctx context.Context, sc *Scenario, level domain.IsolationLevel) (*domain.VerificationResult, error) {
	return RunWithRetry(ctx, rr.Runner, sc, level, rr.Policy)
}
