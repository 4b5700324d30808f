package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delayer pauses between requests to the same site.
type Delayer interface {
	Wait(ctx context.Context, min, max time.Duration) error
}

// RandomDelay sleeps for a uniformly random duration in [min, max].
type RandomDelay struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomDelay seeds a RandomDelay from the current time.
func NewRandomDelay() *RandomDelay {
	return &RandomDelay{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Wait blocks for the chosen duration or until ctx is done.
func (d *RandomDelay) Wait(ctx context.Context, min, max time.Duration) error {
	return sleepCtx(ctx, d.pick(min, max))
}

func (d *RandomDelay) pick(min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return min + time.Duration(d.rnd.Int63n(int64(max-min)+1))
}

// NoDelay returns immediately. Tests use it in place of RandomDelay.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}
