package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries = 3
	DefaultUnit       = time.Second
)

// Policy waits Factor^k units after failed attempt k, for at most MaxRetries retries.
type Policy struct {
	MaxRetries int
	Factor     float64
	Unit       time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Factor <= 0 {
		p.Factor = 2
	}
	if p.Unit <= 0 {
		p.Unit = DefaultUnit
	}
	return p
}

// Wait returns the delay that follows failed attempt k (0-indexed).
func (p Policy) Wait(attempt int) time.Duration {
	p = p.normalized()
	return time.Duration(math.Pow(p.Factor, float64(attempt)) * float64(p.Unit))
}

// Attempts is the total number of tries the policy allows.
func (p Policy) Attempts() int {
	return p.normalized().MaxRetries + 1
}

type powerBackOff struct {
	policy  Policy
	attempt int
}

func (b *powerBackOff) NextBackOff() time.Duration {
	wait := b.policy.Wait(b.attempt)
	b.attempt++
	return wait
}

func (b *powerBackOff) Reset() {
	b.attempt = 0
}

// Operation receives the 0-indexed attempt number.
type Operation func(ctx context.Context, attempt int) error

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the retries are
// exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, op Operation, notify Notify) error {
	p = p.normalized()
	b := backoff.WithContext(backoff.WithMaxRetries(&powerBackOff{policy: p}, uint64(p.MaxRetries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		current := attempt
		attempt++
		return op(ctx, current)
	}, b, func(err error, wait time.Duration) {
		if notify != nil {
			notify(attempt-1, err, wait)
		}
	})
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
