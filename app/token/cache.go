package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/metrics"
)

const (
	DefaultRefreshMargin = 5 * time.Minute
	defaultLockTTL       = 30 * time.Second
	defaultLockWait      = 2 * time.Second
	lockKey              = "reconciler:token_refresh:cora"
)

var ErrEmptyToken = errors.New("token endpoint returned an empty token")

type Store interface {
	Get(ctx context.Context) (*entity.AccessToken, error)
	Put(ctx context.Context, token *entity.AccessToken) error
}

type Fetcher interface {
	Fetch(ctx context.Context) (*entity.AccessToken, error)
}

// Locker serializes refreshes across processes. acquired is false when
// another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

type Option func(*Cache)

func WithLocker(l Locker) Option {
	return func(c *Cache) { c.locker = l }
}

func WithRefreshMargin(margin time.Duration) Option {
	return func(c *Cache) { c.margin = margin }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLockWait(wait time.Duration) Option {
	return func(c *Cache) { c.lockWait = wait }
}

// Cache hands out a provider access token, refreshing it through the
// fetcher when the stored one is within the refresh margin of expiry.
type Cache struct {
	store    Store
	fetcher  Fetcher
	locker   Locker
	margin   time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
	logger   logrus.FieldLogger

	mu sync.Mutex
}

func NewCache(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		fetcher:  fetcher,
		margin:   DefaultRefreshMargin,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
		now:      time.Now,
		logger:   factory.NewModuleLogger("token-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.stored(ctx); ok {
		return tok.Value, nil
	}

	if c.locker != nil {
		release, acquired, err := c.locker.Acquire(ctx, lockKey, c.lockTTL)
		switch {
		case err != nil:
			c.logger.WithError(err).Warn("token refresh lock unavailable, refreshing without it")
		case acquired:
			defer release()
			if tok, ok := c.stored(ctx); ok {
				return tok.Value, nil
			}
		default:
			if err := sleep(ctx, c.lockWait); err != nil {
				return "", err
			}
			if tok, ok := c.stored(ctx); ok {
				return tok.Value, nil
			}
		}
	}

	return c.refresh(ctx)
}

func (c *Cache) stored(ctx context.Context) (*entity.AccessToken, bool) {
	tok, err := c.store.Get(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to read cached token")
		return nil, false
	}
	if !tok.ValidFor(c.now(), c.margin) {
		return nil, false
	}
	return tok, true
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	tok, err := c.fetcher.Fetch(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(metrics.Result(false)).Inc()
		return "", err
	}
	if tok == nil || tok.Value == "" {
		metrics.TokenRefreshes.WithLabelValues(metrics.Result(false)).Inc()
		return "", ErrEmptyToken
	}
	metrics.TokenRefreshes.WithLabelValues(metrics.Result(true)).Inc()

	if err := c.store.Put(ctx, tok); err != nil {
		c.logger.WithError(err).Warn("failed to persist refreshed token")
	}
	c.logger.WithField("expires_at", tok.ExpiresAt.UTC().Format(time.RFC3339)).Info("access token refreshed")

	return tok.Value, nil
}

func sleep(ctx context.Context, d time.Duration) error {
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
