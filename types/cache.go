package types

import (
	"context"
	"time"
)

// CacheKey identifies one logical remote resource. Keys follow the
// request path of the resource they mirror (e.g. "/restaurants/{id}")
// and are never recycled within a session.
type CacheKey string

// CacheEntry is the cached state of one remote resource. After a settled
// fetch either Data was replaced and Err cleared, or Err was set and the
// previous Data left untouched (stale-while-error).
type CacheEntry struct {
	Data          interface{}
	Err           error
	IsValidating  bool
	LastUpdatedAt time.Time
}

// Missing reports whether the entry has never been populated. A nil Data
// with a stamp is not missing: it is an authoritative empty state, which
// is how a signed-out identity is represented.
func (e CacheEntry) Missing() bool {
	return e.Data == nil && e.Err == nil && e.LastUpdatedAt.IsZero()
}

// Settled reports whether at least one fetch or local write has concluded
// for this entry, successfully or not.
func (e CacheEntry) Settled() bool {
	return !e.LastUpdatedAt.IsZero() || e.Err != nil
}

// FetchFunc retrieves the remote value behind a cache key. Implementations
// decode the response body into the typed value stored in the entry.
type FetchFunc func(ctx context.Context) (interface{}, error)

// SubscribeOptions configures a subscription. Fetch registers the
// retrieval for the key (the last registration wins); PollInterval > 0
// marks the key pollable while this subscriber stays mounted and needs a
// fetch registered for the key, here or by an earlier subscriber.
type SubscribeOptions struct {
	Fetch        FetchFunc
	PollInterval time.Duration
}

// PollScheduler re-runs a task at a fixed interval until the returned
// cancel function is called. The production implementation is cron-backed;
// tests drive a manual one.
type PollScheduler interface {
	Schedule(interval time.Duration, task func()) (cancel func(), err error)
}

// ConfirmPolicy decides what happens to an optimistic value after the
// server accepted the write. ConfirmLocal keeps the locally computed value
// standing; ConfirmRevalidate re-fetches so server-computed fields win.
type ConfirmPolicy int

const (
	ConfirmLocal ConfirmPolicy = iota
	ConfirmRevalidate
)
