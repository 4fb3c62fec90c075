package syncer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfloris/doctran/internal/api"
)

func newTestSyncer(t *testing.T, handler http.Handler) *Syncer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(api.New(srv.URL, "session-token"), discardLogger())
}

func TestSubscribeQuotaLoadsSnapshot(t *testing.T) {
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me/quota", r.URL.Path)
		w.Write([]byte(`{"dailyPageLimit":100,"dailyPageUsed":25,"remaining":75}`))
	}))

	unsubscribe := s.SubscribeQuota()
	defer unsubscribe()

	waitFor(t, func() bool {
		_, ok := s.Store.Read(KeyQuota)
		return ok
	}, "the quota snapshot should load on subscribe")

	quotas, ok := Quota(s.Store).Read()
	require.True(t, ok)
	require.Len(t, quotas, 1)
	assert.Equal(t, 100, quotas[0].DailyPageLimit)
	assert.Equal(t, 25, quotas[0].DailyPageUsed)
	assert.Equal(t, 75, quotas[0].Remaining)
}

func TestSubscribeMetricsLoadsSnapshot(t *testing.T) {
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/admin/settings/performance/metrics", r.URL.Path)
		w.Write([]byte(`{"activeTasks":3,"queuedTasks":7,"highPriorityQueue":1,"normalPriorityQueue":5,"lowPriorityQueue":1}`))
	}))

	unsubscribe := s.SubscribeMetrics()
	defer unsubscribe()

	waitFor(t, func() bool {
		_, ok := s.Store.Read(KeyMetrics)
		return ok
	}, "the metrics snapshot should load on subscribe")

	snapshots, ok := Metrics(s.Store).Read()
	require.True(t, ok)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 3, snapshots[0].ActiveTasks)
	assert.Equal(t, 7, snapshots[0].QueuedTasks)
}

func TestSubscribeTasksMergesAgainstCache(t *testing.T) {
	s := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tasks", r.URL.Path)
		// The server answers with a stale snapshot for t1.
		w.Write([]byte(`{"tasks":[{"id":"t1","status":"queued"},{"id":"t2","status":"queued"}]}`))
	}))

	Tasks(s.Store).Replace([]api.Task{
		{ID: "t1", Status: api.StatusCompleted, Progress: 100},
	}, s.Store.Stamp())

	unsubscribe := s.SubscribeTasks()
	defer unsubscribe()

	waitFor(t, func() bool {
		tasks, ok := Tasks(s.Store).Read()
		return ok && len(tasks) == 2
	}, "the poll result should land in the cache")

	task, ok := Tasks(s.Store).Get("t1")
	require.True(t, ok)
	assert.Equal(t, api.StatusCompleted, task.Status, "a stale poll must not resurrect a finished task")
}
