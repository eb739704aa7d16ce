package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/plateful/plateful-client/metrics"
	"github.com/plateful/plateful-client/types"
)

// IdentityKey is the reserved key holding the resolved current user.
const IdentityKey types.CacheKey = "/auth/me"

// Store is the single source of truth for remote-derived state. One Store
// lives for the tab/process lifetime; it is constructed explicitly and
// passed by reference, never reached through a package singleton.
//
// Entries are mutated only under the store lock and never while a fetch
// is suspended, so every operation observes a consistent entry. Each
// in-flight fetch is shared: the IsValidating flag short-circuits
// re-triggers, and the singleflight group is the pending-result handle
// concurrent callers attach to.
type Store struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  types.Logger
	clock   types.Clock
	sched   types.PollScheduler
	metrics *metrics.Set

	group   singleflight.Group
	mu      sync.Mutex
	closed  bool
	entries map[types.CacheKey]*entryState
}

type entryState struct {
	entry        types.CacheEntry
	version      uint64
	stale        bool
	fetch        types.FetchFunc
	subscribers  map[int]func(types.CacheEntry)
	nextSubID    int
	pollRefs     int
	pollInterval time.Duration
	pollCancel   func()
}

type Options struct {
	Clock     types.Clock
	Scheduler types.PollScheduler
	Metrics   *metrics.Set
}

func NewStore(ctx context.Context, logger types.Logger, opts Options) *Store {
	storeCtx, cancel := context.WithCancel(ctx)

	clock := opts.Clock
	if clock == nil {
		clock = types.SystemClock()
	}

	return &Store{
		ctx:     storeCtx,
		cancel:  cancel,
		logger:  logger,
		clock:   clock,
		sched:   opts.Scheduler,
		metrics: opts.Metrics,
		entries: make(map[types.CacheKey]*entryState),
	}
}

// Read returns the current entry for key, or the missing sentinel if the
// key was never populated. It never fails.
func (s *Store) Read(key types.CacheKey) types.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	es, ok := s.entries[key]
	if !ok || es.entry.Missing() {
		s.metrics.CacheMiss()
		if !ok {
			return types.CacheEntry{}
		}
	} else {
		s.metrics.CacheHit()
	}

	return es.entry
}

// Subscribe registers interest in key. The callback fires with the
// current entry immediately and on every subsequent write until the
// returned handle is called. Registering a Fetch makes the key fetchable;
// a PollInterval keeps it revalidating while this subscriber remains, and
// requires a fetch to be registered for the key.
//
// Callbacks run outside the store lock, so the mount snapshot and a
// racing concurrent write may arrive in either order. Every delivery is
// a full stamped snapshot; a consumer that must not regress compares
// LastUpdatedAt and keeps the newest, while Read always reflects the
// write.
func (s *Store) Subscribe(key types.CacheKey, opts types.SubscribeOptions, callback func(types.CacheEntry)) (func(), error) {
	if key == "" {
		return nil, types.ErrCacheKeyEmpty
	}
	if callback == nil {
		callback = func(types.CacheEntry) {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, types.ErrStoreClosed
	}

	es := s.ensureLocked(key)

	if opts.Fetch != nil {
		es.fetch = opts.Fetch
	}
	if opts.PollInterval > 0 && es.fetch == nil {
		s.mu.Unlock()
		return nil, types.Errorf(types.ErrFetchFuncMissing, "polling %s", key)
	}

	id := es.nextSubID
	es.nextSubID++
	es.subscribers[id] = callback

	polling := opts.PollInterval > 0
	if polling {
		es.pollRefs++
		es.pollInterval = opts.PollInterval
		s.armPollLocked(key, es)
	}

	snapshot := es.entry
	shouldFetch := es.stale || (es.entry.LastUpdatedAt.IsZero() && !es.entry.IsValidating)
	s.mu.Unlock()

	callback(snapshot)

	if shouldFetch {
		s.triggerFetch(key)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.dropSubscriber(key, id, polling)
		})
	}

	return unsubscribe, nil
}

// Write replaces the entry's data, clears its error and stamps it. With
// revalidate the caller wants server confirmation and a fetch is
// scheduled right after; without it the caller asserts authoritative
// knowledge of the new state.
func (s *Store) Write(key types.CacheKey, data interface{}, revalidate bool) {
	if key == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	es := s.ensureLocked(key)
	es.entry.Data = data
	es.entry.Err = nil
	es.entry.LastUpdatedAt = s.clock.Now()
	es.version++
	es.stale = false
	snapshot := es.entry
	subs := s.subscriberListLocked(es)
	s.mu.Unlock()

	notify(subs, snapshot)

	if revalidate {
		s.Invalidate(key)
	}
}

// Invalidate discards trust in the entry and, when a fetch is registered,
// re-fetches immediately. An in-flight fetch is not duplicated; the stale
// mark makes it re-run once that flight settles.
func (s *Store) Invalidate(key types.CacheKey) {
	if key == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	es := s.ensureLocked(key)
	es.stale = true
	s.mu.Unlock()

	s.triggerFetch(key)
}

// Close stops all polling and releases the store. Entries are dropped
// and later Subscribe and Mutate calls fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	cancels := make([]func(), 0)
	for _, es := range s.entries {
		if es.pollCancel != nil {
			cancels = append(cancels, es.pollCancel)
			es.pollCancel = nil
		}
	}
	s.entries = make(map[types.CacheKey]*entryState)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	s.cancel()
}

// triggerFetch starts the network settle path for key unless one is
// already in flight. The entry version captured here decides whether the
// result may still be applied when it lands: any local write in between
// supersedes it.
func (s *Store) triggerFetch(key types.CacheKey) {
	s.mu.Lock()
	es, ok := s.entries[key]
	if !ok || es.fetch == nil || es.entry.IsValidating {
		s.mu.Unlock()
		return
	}

	fetch := es.fetch
	version := es.version
	es.entry.IsValidating = true
	es.stale = false
	snapshot := es.entry
	subs := s.subscriberListLocked(es)
	s.mu.Unlock()

	s.metrics.Fetch()
	notify(subs, snapshot)

	go func() {
		value, err, _ := s.group.Do(string(key), func() (interface{}, error) {
			return fetch(s.ctx)
		})
		s.settleFetch(key, version, value, err)
	}()
}

func (s *Store) settleFetch(key types.CacheKey, version uint64, value interface{}, err error) {
	s.mu.Lock()
	es, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}

	es.entry.IsValidating = false

	superseded := es.version != version
	switch {
	case superseded:
		s.metrics.FetchDiscard()
		s.logger.Debug("Discarding superseded fetch result", zap.String("key", string(key)))
	case err != nil:
		// Previous data stays visible; only the error settles.
		es.entry.Err = err
		s.metrics.FetchError()
		s.logger.Debug("Fetch settled with error",
			zap.String("key", string(key)),
			zap.Error(err))
	default:
		es.entry.Data = value
		es.entry.Err = nil
		es.entry.LastUpdatedAt = s.clock.Now()
		es.version++
	}

	refetch := es.stale
	snapshot := es.entry
	subs := s.subscriberListLocked(es)
	s.mu.Unlock()

	notify(subs, snapshot)

	if refetch {
		s.triggerFetch(key)
	}
}

func (s *Store) dropSubscriber(key types.CacheKey, id int, polling bool) {
	s.mu.Lock()
	es, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}

	delete(es.subscribers, id)

	var cancel func()
	if polling {
		es.pollRefs--
		if es.pollRefs <= 0 {
			es.pollRefs = 0
			cancel = es.pollCancel
			es.pollCancel = nil
		}
	}
	s.mu.Unlock()

	// Unsubscribing never cancels an in-flight fetch; it only stops
	// future polling.
	if cancel != nil {
		cancel()
	}
}

func (s *Store) armPollLocked(key types.CacheKey, es *entryState) {
	if es.pollCancel != nil || s.sched == nil {
		return
	}

	cancel, err := s.sched.Schedule(es.pollInterval, func() {
		s.metrics.PollTick()
		s.triggerFetch(key)
	})
	if err != nil {
		s.logger.Warn("Failed to arm polling",
			zap.String("key", string(key)),
			zap.Duration("interval", es.pollInterval),
			zap.Error(err))
		return
	}

	es.pollCancel = cancel
}

func (s *Store) ensureLocked(key types.CacheKey) *entryState {
	es, ok := s.entries[key]
	if !ok {
		es = &entryState{subscribers: make(map[int]func(types.CacheEntry))}
		s.entries[key] = es
	}
	return es
}

func (s *Store) subscriberListLocked(es *entryState) []func(types.CacheEntry) {
	if len(es.subscribers) == 0 {
		return nil
	}
	subs := make([]func(types.CacheEntry), 0, len(es.subscribers))
	for _, cb := range es.subscribers {
		subs = append(subs, cb)
	}
	return subs
}

func notify(subs []func(types.CacheEntry), entry types.CacheEntry) {
	for _, cb := range subs {
		cb(entry)
	}
}
