package cache

import (
	"context"

	"github.com/plateful/plateful-client/types"
)

// Mutate applies an optimistic update: the locally computed next state
// lands in the entry before the network write starts, so the UI reflects
// it with zero latency.
//
// On a successful write, ConfirmLocal leaves the optimistic value
// standing and ConfirmRevalidate re-fetches so server-computed fields
// win. On failure the key is invalidated and the error returns to the
// call site, which owns user-visible notification. Invalidation restores
// server truth only when the key has a fetch registered (via a prior
// Subscribe); on a key that was never subscribed with one, the failed
// optimistic value stays in place until the next write or subscription.
//
// Two concurrent mutators of the same key are last-writer-wins; this
// layer does not arbitrate between them.
func (s *Store) Mutate(
	ctx context.Context,
	key types.CacheKey,
	computeNext func(current interface{}) interface{},
	performWrite func(ctx context.Context) error,
	policy types.ConfirmPolicy,
) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return types.ErrStoreClosed
	}
	if computeNext == nil || performWrite == nil {
		return types.Errorf(types.ErrMutationFailed, "computeNext and performWrite are required")
	}

	current := s.Read(key)
	next := computeNext(current.Data)

	s.metrics.OptimisticWrite()
	s.Write(key, next, false)

	if err := performWrite(ctx); err != nil {
		s.metrics.Rollback()
		s.Invalidate(key)
		return types.WrapError(err, "mutation rejected, optimistic value rolled back")
	}

	if policy == types.ConfirmRevalidate {
		s.Invalidate(key)
	}

	return nil
}
