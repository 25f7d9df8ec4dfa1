// Package idempotency remembers successful responses per (user, client key)
// so retried submissions replay the stored bytes instead of writing again.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 600 * time.Second
	Route      = "/relations/add"
)

// Record is a stored response. Payload is replayed byte for byte.
type Record struct {
	Status  int
	Payload []byte
}

// Durable is the tier that survives restarts. Get must ignore records whose
// expiry is not after now; Put must not replace a live record.
type Durable interface {
	Get(ctx context.Context, key string, now time.Time) (*Record, error)
	Put(ctx context.Context, key, userID string, rec Record, now, expiresAt time.Time) error
}

type Options struct {
	TTL        time.Duration
	LocalCache bool
	Now        func() time.Time
	Logger     *zap.Logger
}

type Store struct {
	durable Durable
	local   *localCache
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewStore(durable Durable, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger

	s := &Store{
		durable: durable,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "idempotency-durable",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 5 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
	if opts.LocalCache {
		s.local = newLocalCache()
	}
	return s
}

func Key(userID, clientKey string) string {
	return userID + ":" + clientKey
}

// Get looks in the durable tier first and the local tier second. A durable
// failure degrades to the local tier rather than failing the request.
func (s *Store) Get(ctx context.Context, userID, clientKey string) (*Record, bool, error) {
	if clientKey == "" {
		return nil, false, nil
	}
	key := Key(userID, clientKey)
	now := s.now()

	out, err := s.breaker.Execute(func() (any, error) {
		return s.durable.Get(ctx, key, now)
	})
	switch {
	case err == nil:
		if rec, _ := out.(*Record); rec != nil {
			return rec, true, nil
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, false, err
	default:
		s.logger.Warn("durable idempotency lookup failed", zap.String("key", key), zap.Error(err))
	}

	if s.local != nil {
		if rec, ok := s.local.get(key, now); ok {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

// Put records a successful response in both tiers.
func (s *Store) Put(ctx context.Context, userID, clientKey string, status int, payload []byte) error {
	if clientKey == "" {
		return nil
	}
	key := Key(userID, clientKey)
	now := s.now()
	expiresAt := now.Add(s.ttl)
	rec := Record{Status: status, Payload: append([]byte(nil), payload...)}

	if s.local != nil {
		s.local.put(key, rec, expiresAt, now)
	}
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.durable.Put(ctx, key, userID, rec, now, expiresAt)
	})
	if err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}
