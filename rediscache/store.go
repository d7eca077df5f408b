// Package rediscache stores raw response bodies in Redis for replay through
// httpfetch.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/bjaus/callback/httpfetch"
)

const defaultKeyPrefix = "callback:response:"

// Option configures a Store.
type Option func(*config)

type config struct {
	keyPrefix string
}

// WithKeyPrefix overrides the prefix prepended to every key.
func WithKeyPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.keyPrefix = prefix
	}
}

// Store implements httpfetch.Store on Redis string keys.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ httpfetch.Store = (*Store)(nil)

// New wraps an existing redis client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("rediscache: client is nil")
	}

	cfg := config{keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		client:    client,
		keyPrefix: cfg.keyPrefix,
	}, nil
}

// NewWithOptions creates a redis client from go-redis options and wraps it.
func NewWithOptions(options *redis.Options, opts ...Option) (*Store, error) {
	if options == nil {
		return nil, errors.New("rediscache: redis options are required")
	}
	return New(redis.NewClient(options), opts...)
}

// Load returns the stored body, or httpfetch.ErrMiss when the key is absent
// or expired.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, httpfetch.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rediscache: load %s: %w", key, err)
	}
	return raw, nil
}

// Save stores raw under key. A zero ttl keeps the key until it is
// overwritten.
func (s *Store) Save(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: save %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
