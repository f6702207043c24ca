package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver keeps resolved grants for ttl so that every request does
// not reload the user's profile row.
type CachedResolver[U comparable] struct {
	inner Resolver[U]
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[U]cachedGrant
}

type cachedGrant struct {
	grant   Grant
	expires time.Time
}

func NewCachedResolver[U comparable](inner Resolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[U]cachedGrant),
	}
}

// Resolve returns the cached grant or asks the inner resolver. Unknown
// users are not cached so that a freshly invited client is seen at once.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Grant, error) {
	r.mu.RLock()
	e, ok := r.entries[user]
	r.mu.RUnlock()
	if ok && r.now().Before(e.expires) {
		return e.grant, nil
	}

	g, err := r.inner.Resolve(ctx, user)
	if err != nil || g == nil {
		return g, err
	}
	r.mu.Lock()
	r.entries[user] = cachedGrant{grant: g, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return g, nil
}

// Forget drops one user, e.g. after their role changed.
func (r *CachedResolver[U]) Forget(user U) {
	r.mu.Lock()
	delete(r.entries, user)
	r.mu.Unlock()
}

func (r *CachedResolver[U]) ForgetAll() {
	r.mu.Lock()
	r.entries = make(map[U]cachedGrant)
	r.mu.Unlock()
}
