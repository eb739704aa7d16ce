package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set counts the sync layer's interesting events. A nil *Set is a valid
// no-op receiver, so components take it without guarding.
type Set struct {
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	fetches          prometheus.Counter
	fetchErrors      prometheus.Counter
	fetchDiscards    prometheus.Counter
	optimisticWrites prometheus.Counter
	rollbacks        prometheus.Counter
	pollTicks        prometheus.Counter
}

func NewSet(reg prometheus.Registerer, namespace string) *Set {
	if namespace == "" {
		namespace = "plateful_client"
	}

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &Set{
		cacheHits:        counter("cache_hits_total", "Reads that found a settled entry."),
		cacheMisses:      counter("cache_misses_total", "Reads of never-populated keys."),
		fetches:          counter("fetches_total", "Network fetches issued."),
		fetchErrors:      counter("fetch_errors_total", "Fetches settled with an error."),
		fetchDiscards:    counter("fetch_discards_total", "Fetch results discarded as superseded."),
		optimisticWrites: counter("optimistic_writes_total", "Local writes applied ahead of the server."),
		rollbacks:        counter("rollbacks_total", "Optimistic values discarded after a failed write."),
		pollTicks:        counter("poll_ticks_total", "Scheduled revalidations fired."),
	}
}

func (s *Set) CacheHit() {
	if s != nil {
		s.cacheHits.Inc()
	}
}

func (s *Set) CacheMiss() {
	if s != nil {
		s.cacheMisses.Inc()
	}
}

func (s *Set) Fetch() {
	if s != nil {
		s.fetches.Inc()
	}
}

func (s *Set) FetchError() {
	if s != nil {
		s.fetchErrors.Inc()
	}
}

func (s *Set) FetchDiscard() {
	if s != nil {
		s.fetchDiscards.Inc()
	}
}

func (s *Set) OptimisticWrite() {
	if s != nil {
		s.optimisticWrites.Inc()
	}
}

func (s *Set) Rollback() {
	if s != nil {
		s.rollbacks.Inc()
	}
}

func (s *Set) PollTick() {
	if s != nil {
		s.pollTicks.Inc()
	}
}
