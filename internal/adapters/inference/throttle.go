package inference

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// throttle bounds both the request rate and the number of in-flight calls
// to the model.
type throttle struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted
}

func newThrottle(rps float64, burst, maxConcurrent int) *throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &throttle{
		limiter: rate.NewLimiter(limit, burst),
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// acquire blocks until a slot and a rate token are available. The returned
// release must be called once the call finishes.
func (t *throttle) acquire(ctx context.Context) (func(), error) {
	if err := t.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		t.slots.Release(1)
		return nil, err
	}
	return func() { t.slots.Release(1) }, nil
}
