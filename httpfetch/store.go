package httpfetch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by Store.Load when nothing is stored for a key.
var ErrMiss = errors.New("httpfetch: cache miss")

// Store keeps raw response bodies keyed by URL so they can be replayed with
// callback.OriginCache.
type Store interface {
	// Load returns the stored body or ErrMiss.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores a body. A zero ttl stores it without expiry.
	Save(ctx context.Context, key string, raw []byte, ttl time.Duration) error
}

// MemoryStore is an in-process Store. Expired entries are dropped on Load.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	raw     []byte
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if !item.expires.IsZero() && !s.now().Before(item.expires) {
		delete(s.items, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), item.raw...), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	item := memoryItem{raw: append([]byte(nil), raw...)}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}
