// Package ranker probes the candidate endpoints and orders them by health.
package ranker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/studygarden/memquiz/pkg/logging"
)

// DefaultCacheTTL is how long a probe result is reused.
const DefaultCacheTTL = 30 * time.Second

// Pinger reaches one endpoint directly. *client.Client implements it.
type Pinger interface {
	PingAt(ctx context.Context, endpoint string) error
}

// Result holds the outcome of probing a single endpoint.
type Result struct {
	Endpoint string
	Success  bool
	Latency  time.Duration
	Err      error
	Cached   bool
}

type CacheEntry struct {
	Success   bool
	Latency   time.Duration
	Err       error
	Timestamp time.Time
}

// Ranker tests and ranks endpoints.
type Ranker struct {
	pinger Pinger
	logger logging.Logger
	ttl    time.Duration
	now    func() time.Time

	cacheLock sync.RWMutex
	cache     map[string]*CacheEntry
}

// New creates a Ranker. A ttl of 0 uses DefaultCacheTTL; a negative ttl
// disables the cache.
func New(p Pinger, logger logging.Logger, ttl time.Duration) *Ranker {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &Ranker{
		pinger: p,
		logger: logger.With("component", "ranker"),
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]*CacheEntry),
	}
}

// Rank probes every endpoint concurrently and returns them reachable first,
// fastest first. Probes still running when ctx ends are reported as failed.
func (r *Ranker) Rank(ctx context.Context, endpoints []string) []Result {
	results := make(chan Result, len(endpoints))
	for _, e := range endpoints {
		go func(endpoint string) {
			results <- r.probe(ctx, endpoint)
		}(e)
	}

	ranked := make([]Result, 0, len(endpoints))
	pending := make(map[string]bool, len(endpoints))
	order := make(map[string]int, len(endpoints))
	for i, e := range endpoints {
		pending[e] = true
		order[e] = i
	}

loop:
	for range endpoints {
		select {
		case res := <-results:
			delete(pending, res.Endpoint)
			ranked = append(ranked, res)
		case <-ctx.Done():
			r.logger.Warn("endpoint probing interrupted", "completed", len(ranked), "total", len(endpoints))
			break loop
		}
	}
	for _, e := range endpoints {
		if pending[e] {
			ranked = append(ranked, Result{Endpoint: e, Err: ctx.Err()})
		}
	}

	sort.Slice(ranked, func(i, j int) bool { return order[ranked[i].Endpoint] < order[ranked[j].Endpoint] })
	return rankResults(ranked)
}

// Best returns the first reachable endpoint of ranked results.
func Best(results []Result) (string, bool) {
	for _, res := range results {
		if res.Success {
			return res.Endpoint, true
		}
	}
	return "", false
}

// Forget drops every cached result.
func (r *Ranker) Forget() {
	r.cacheLock.Lock()
	defer r.cacheLock.Unlock()
	r.cache = make(map[string]*CacheEntry)
}

func (r *Ranker) probe(ctx context.Context, endpoint string) Result {
	if entry, ok := r.cached(endpoint); ok {
		return Result{Endpoint: endpoint, Success: entry.Success, Latency: entry.Latency, Err: entry.Err, Cached: true}
	}

	start := r.now()
	err := r.pinger.PingAt(ctx, endpoint)
	latency := r.now().Sub(start)

	res := Result{Endpoint: endpoint, Success: err == nil, Err: err}
	if err == nil {
		res.Latency = latency
		r.logger.Debug("endpoint reachable", "endpoint", endpoint, "latency", latency)
	} else {
		r.logger.Debug("endpoint unreachable", "endpoint", endpoint, "error", err)
	}

	// A probe cut short by the caller says nothing about the endpoint.
	if ctx.Err() == nil && r.ttl > 0 {
		r.cacheLock.Lock()
		r.cache[endpoint] = &CacheEntry{Success: res.Success, Latency: res.Latency, Err: err, Timestamp: r.now()}
		r.cacheLock.Unlock()
	}
	return res
}

func (r *Ranker) cached(endpoint string) (*CacheEntry, bool) {
	if r.ttl <= 0 {
		return nil, false
	}
	r.cacheLock.RLock()
	defer r.cacheLock.RUnlock()
	entry, ok := r.cache[endpoint]
	if !ok || r.now().Sub(entry.Timestamp) > r.ttl {
		return nil, false
	}
	return entry, true
}

func rankResults(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Success != results[j].Success {
			return results[i].Success
		}
		if !results[i].Success {
			// Unreachable endpoints keep their candidate order.
			return false
		}
		return results[i].Latency < results[j].Latency
	})
	return results
}
