package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPollerFirstSubscribeFetchesImmediately(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, metrics.NewCollector(), discardLogger())

	var calls atomic.Int64
	unsubscribe := p.Subscribe(KeyQuota, func(ctx context.Context) ([]any, error) {
		calls.Add(1)
		return []any{"q"}, nil
	}, time.Hour)
	defer unsubscribe()

	waitFor(t, func() bool { return calls.Load() == 1 }, "expected an immediate fetch on first subscribe")

	items, loaded := store.Read(KeyQuota)
	require.True(t, loaded)
	assert.Equal(t, []any{"q"}, items)
}

func TestPollerRefCounting(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, nil, discardLogger())

	fetch := func(ctx context.Context) ([]any, error) { return nil, nil }

	unsub1 := p.Subscribe(KeyTasks, fetch, time.Hour)
	unsub2 := p.Subscribe(KeyTasks, fetch, time.Hour)
	assert.True(t, p.Active(KeyTasks))

	unsub1()
	assert.True(t, p.Active(KeyTasks), "key must keep polling while a subscriber remains")

	unsub2()
	assert.False(t, p.Active(KeyTasks), "last unsubscribe must stop the loop")
}

func TestPollerUnsubscribeIsIdempotent(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, nil, discardLogger())

	fetch := func(ctx context.Context) ([]any, error) { return nil, nil }

	unsub1 := p.Subscribe(KeyTasks, fetch, time.Hour)
	unsub2 := p.Subscribe(KeyTasks, fetch, time.Hour)

	unsub1()
	unsub1() // must not steal unsub2's reference
	assert.True(t, p.Active(KeyTasks))

	unsub2()
	assert.False(t, p.Active(KeyTasks))
}

func TestPollerSkipsTickWhileFetchInFlight(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, nil, discardLogger())

	var calls atomic.Int64
	release := make(chan struct{})
	unsubscribe := p.Subscribe(KeyTasks, func(ctx context.Context) ([]any, error) {
		calls.Add(1)
		<-release
		return nil, nil
	}, 10*time.Millisecond)
	defer unsubscribe()

	waitFor(t, func() bool { return calls.Load() == 1 }, "first fetch should start")

	// Several ticks pass while the first fetch hangs; none may start a
	// second fetch.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load(), "at most one fetch per key may be in flight")

	close(release)
	waitFor(t, func() bool { return calls.Load() >= 2 }, "fetching should resume once the slot frees up")
}

func TestPollerKeepsSnapshotOnFetchError(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, metrics.NewCollector(), discardLogger())

	store.Replace(KeyTasks, []any{"cached"}, store.Stamp())

	var calls atomic.Int64
	unsubscribe := p.Subscribe(KeyTasks, func(ctx context.Context) ([]any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}, time.Hour)
	defer unsubscribe()

	waitFor(t, func() bool { return calls.Load() == 1 }, "fetch should run")
	time.Sleep(20 * time.Millisecond)

	items, loaded := store.Read(KeyTasks)
	require.True(t, loaded)
	assert.Equal(t, []any{"cached"}, items, "failed fetch must leave the snapshot untouched")
}

func TestPollerStaleResultLosesToPush(t *testing.T) {
	store := cache.NewStore()
	p := NewPoller(store, nil, discardLogger())

	started := make(chan struct{})
	release := make(chan struct{})
	unsubscribe := p.Subscribe(KeyProviders, func(ctx context.Context) ([]any, error) {
		close(started)
		<-release
		return []any{"polled"}, nil
	}, time.Hour)
	defer unsubscribe()

	// A push lands while the poll round-trip is still outstanding.
	<-started
	store.Upsert(KeyProviders, "pushed", func(v any) string { return v.(string) })
	close(release)

	time.Sleep(50 * time.Millisecond)
	items, _ := store.Read(KeyProviders)
	assert.Equal(t, []any{"pushed"}, items, "a poll stamped before the push must not overwrite it")
}
