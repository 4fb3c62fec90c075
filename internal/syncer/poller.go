// Package syncer keeps cached views of server-owned collections fresh. It
// combines fixed-interval polling, a reconnecting websocket push channel, and
// a mutation coordinator, all writing through the same cache store.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

// Poll intervals per collection. Fixed intervals are the resilience mechanism:
// a failed fetch is simply retried on the next tick, without backoff.
const (
	TaskPollInterval    = 4 * time.Second
	QuotaPollInterval   = 30 * time.Second
	MetricsPollInterval = 5 * time.Second
)

// FetchFunc retrieves the full remote collection for one key.
type FetchFunc func(ctx context.Context) ([]any, error)

type subscription struct {
	key      cache.Key
	fetch    FetchFunc
	interval time.Duration

	refs     int
	inFlight bool
	cancel   context.CancelFunc
}

// Poller drives fixed-interval refreshes for subscribed cache keys. A key
// polls only while at least one subscriber holds it (reference-counted); the
// first subscriber triggers an immediate fetch before the first tick.
type Poller struct {
	store     *cache.Store
	collector *metrics.Collector
	logger    *slog.Logger

	mu   sync.Mutex
	subs map[cache.Key]*subscription
}

// NewPoller creates a poller writing into the given store.
func NewPoller(store *cache.Store, collector *metrics.Collector, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:     store,
		collector: collector,
		logger:    logger,
		subs:      make(map[cache.Key]*subscription),
	}
}

// Subscribe registers interest in a key and returns an unsubscribe function.
// The first subscription for a key starts its poll loop; the last unsubscribe
// stops it. Unsubscribing does not cancel an in-flight fetch: a late response
// is still applied, subject to the store's version guard.
//
// Fetch and interval are fixed by the first subscriber of a key; later
// subscribers only add a reference.
func (p *Poller) Subscribe(key cache.Key, fetch FetchFunc, interval time.Duration) func() {
	p.mu.Lock()
	sub, ok := p.subs[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		sub = &subscription{key: key, fetch: fetch, interval: interval, cancel: cancel}
		p.subs[key] = sub
		go p.loop(ctx, sub)
	}
	sub.refs++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(key) })
	}
}

func (p *Poller) unsubscribe(key cache.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subs[key]
	if !ok {
		return
	}
	sub.refs--
	if sub.refs <= 0 {
		sub.cancel()
		delete(p.subs, key)
	}
}

// Active reports whether a key currently has a running poll loop.
func (p *Poller) Active(key cache.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[key]
	return ok
}

func (p *Poller) loop(ctx context.Context, sub *subscription) {
	p.runFetch(sub)

	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runFetch(sub)
		}
	}
}

// runFetch starts one fetch for the subscription unless one is already in
// flight, in which case the tick is skipped. The fetch itself runs without a
// deadline: a hung request occupies the in-flight slot until it resolves,
// deferring further ticks for that key.
func (p *Poller) runFetch(sub *subscription) {
	p.mu.Lock()
	if sub.inFlight {
		p.mu.Unlock()
		p.logger.Debug("poll tick skipped, fetch in flight", "key", string(sub.key))
		return
	}
	sub.inFlight = true
	p.mu.Unlock()

	// Stamp before the round-trip so a push applied while we wait outranks us.
	stamp := p.store.Stamp()

	go func() {
		start := time.Now()
		items, err := sub.fetch(context.Background())

		p.mu.Lock()
		sub.inFlight = false
		p.mu.Unlock()

		if p.collector != nil {
			p.collector.RecordTiming(metrics.OpPoll, time.Since(start), err != nil)
		}
		if err != nil {
			// Transient: the cached snapshot stays, the next tick retries.
			p.logger.Warn("poll fetch failed", "key", string(sub.key), "error", err)
			return
		}
		if !p.store.Replace(sub.key, items, stamp) {
			p.logger.Debug("poll result discarded, newer write present", "key", string(sub.key))
		}
	}()
}
