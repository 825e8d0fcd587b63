package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper abstracts waiting so tests can substitute a fake clock.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper waits on a timer, honoring context cancellation.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffMultiplier scales the maximum delay when upstream signals
// throttling.
const backoffMultiplier = 5

// DelayPolicy produces the randomized inter-model wait that bounds the
// outbound request rate, and the extended backoff used after a rate-limit
// response. Min == Max == 0 disables waiting entirely.
type DelayPolicy struct {
	Min time.Duration
	Max time.Duration

	sleeper Sleeper
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewDelayPolicy builds a policy with the real clock.
func NewDelayPolicy(min, max time.Duration) *DelayPolicy {
	return NewDelayPolicyWithSleeper(min, max, realSleeper{})
}

// NewDelayPolicyWithSleeper builds a policy with an injected sleeper for
// deterministic tests.
func NewDelayPolicyWithSleeper(min, max time.Duration, sleeper Sleeper) *DelayPolicy {
	return &DelayPolicy{
		Min:     min,
		Max:     max,
		sleeper: sleeper,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next picks a random duration in [min, max].
func (p *DelayPolicy) next(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

// Wait blocks for the inter-model delay.
func (p *DelayPolicy) Wait(ctx context.Context) error {
	if p.Max <= 0 {
		return nil
	}
	return p.sleeper.Sleep(ctx, p.next(p.Min, p.Max))
}

// Backoff blocks for the extended rate-limit backoff: a randomized wait
// between Max and backoffMultiplier times Max. With delays disabled it
// still waits a few seconds, because the throttle signal came from
// upstream, not configuration.
func (p *DelayPolicy) Backoff(ctx context.Context) error {
	max := p.Max
	if max <= 0 {
		max = 2 * time.Second
	}
	return p.sleeper.Sleep(ctx, p.next(max, backoffMultiplier*max))
}
