package syncer

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

func newTestApplier() (*eventApplier, *cache.Store, *metrics.Collector) {
	store := cache.NewStore()
	collector := metrics.NewCollector()
	return &eventApplier{store: store, collector: collector, logger: discardLogger()}, store, collector
}

func TestTaskUpdateEventUpsertsTask(t *testing.T) {
	a, store, collector := newTestApplier()

	a.handleTaskMessage([]byte(`{"type":"task.update","task":{"id":"t1","status":"processing","progress":40}}`))

	task, ok := Tasks(store).Get("t1")
	require.True(t, ok)
	assert.Equal(t, api.StatusProcessing, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, int64(1), collector.Snapshot().PushEvents)
}

func TestTaskUpdateEventDataWrapperFallback(t *testing.T) {
	a, store, _ := newTestApplier()

	a.handleTaskMessage([]byte(`{"type":"task.update","data":{"id":"t1","status":"queued","progress":0}}`))

	task, ok := Tasks(store).Get("t1")
	require.True(t, ok)
	assert.Equal(t, api.StatusQueued, task.Status)
}

func TestMalformedTaskEventIsDropped(t *testing.T) {
	a, store, collector := newTestApplier()

	a.handleTaskMessage([]byte(`{not json`))
	a.handleTaskMessage([]byte(`{"type":"task.update"}`))

	_, loaded := store.Read(KeyTasks)
	assert.False(t, loaded, "malformed events must not touch the cache")
	assert.Equal(t, int64(2), collector.Snapshot().DroppedEvents)
}

func TestIllegalTransitionIsIgnored(t *testing.T) {
	a, store, collector := newTestApplier()

	a.handleTaskMessage([]byte(`{"type":"task.update","task":{"id":"t1","status":"completed","progress":100}}`))
	a.handleTaskMessage([]byte(`{"type":"task.update","task":{"id":"t1","status":"processing","progress":50}}`))

	task, _ := Tasks(store).Get("t1")
	assert.Equal(t, api.StatusCompleted, task.Status, "terminal states are absorbing")
	assert.Equal(t, int64(1), collector.Snapshot().PushEvents, "the illegal update must not count as applied")
}

func TestProgressRegressionIsIgnored(t *testing.T) {
	a, store, _ := newTestApplier()

	a.handleTaskMessage([]byte(`{"type":"task.update","task":{"id":"t1","status":"processing","progress":60}}`))
	a.handleTaskMessage([]byte(`{"type":"task.update","task":{"id":"t1","status":"processing","progress":30}}`))

	task, _ := Tasks(store).Get("t1")
	assert.Equal(t, 60, task.Progress, "progress must not move backwards while processing")
}

func TestProviderCreatedAndUpdatedEvents(t *testing.T) {
	a, store, _ := newTestApplier()

	a.handleAdminMessage([]byte(`{"type":"provider.created","provider":{"id":"p1","name":"Google"}}`))
	a.handleAdminMessage([]byte(`{"type":"provider.updated","provider":{"id":"p1","name":"Google MT"}}`))

	providers, ok := Providers(store).Read()
	require.True(t, ok)
	require.Len(t, providers, 1)
	assert.Equal(t, "Google MT", providers[0].Name)
}

func TestProviderDeletedEvent(t *testing.T) {
	a, store, _ := newTestApplier()
	Providers(store).Replace([]api.ProviderConfig{{ID: "p1"}, {ID: "p2"}}, store.Stamp())

	a.handleAdminMessage([]byte(`{"type":"provider.deleted","providerId":"p1"}`))

	providers, _ := Providers(store).Read()
	require.Len(t, providers, 1)
	assert.Equal(t, "p2", providers[0].ID)
}

func TestProviderDeletedForUnknownIDIsNoOp(t *testing.T) {
	a, store, collector := newTestApplier()
	Providers(store).Replace([]api.ProviderConfig{{ID: "p1"}}, store.Stamp())

	a.handleAdminMessage([]byte(`{"type":"provider.deleted","providerId":"ghost"}`))

	providers, _ := Providers(store).Read()
	assert.Len(t, providers, 1)
	assert.Equal(t, int64(0), collector.Snapshot().DroppedEvents, "an unknown id is a quiet no-op, not an error")
}

func TestSettingsUpdatedEventInvalidatesMetrics(t *testing.T) {
	a, store, _ := newTestApplier()
	Metrics(store).Replace([]api.PerformanceMetrics{{ActiveTasks: 2}}, store.Stamp())

	a.handleAdminMessage([]byte(`{"type":"settings.performance.updated"}`))

	_, loaded := store.Read(KeyMetrics)
	assert.False(t, loaded, "settings events must force a metrics refetch")
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	a, store, collector := newTestApplier()

	a.handleAdminMessage([]byte(`{"type":"something.else"}`))

	_, loaded := store.Read(KeyProviders)
	assert.False(t, loaded)
	snapshot := collector.Snapshot()
	assert.Equal(t, int64(0), snapshot.PushEvents)
	assert.Equal(t, int64(0), snapshot.DroppedEvents)
}

func TestMergeTasksKeepsCachedValueOnIllegalUpdate(t *testing.T) {
	store := cache.NewStore()
	Tasks(store).Replace([]api.Task{
		{ID: "t1", Status: api.StatusCompleted, Progress: 100},
		{ID: "t2", Status: api.StatusProcessing, Progress: 50},
	}, store.Stamp())

	merged := mergeTasks(store, []api.Task{
		{ID: "t1", Status: api.StatusQueued},                   // illegal: terminal is absorbing
		{ID: "t2", Status: api.StatusProcessing, Progress: 75}, // fine
		{ID: "t3", Status: api.StatusQueued},                   // new
	}, discardLogger())

	require.Len(t, merged, 3)
	assert.Equal(t, api.StatusCompleted, merged[0].Status)
	assert.Equal(t, 75, merged[1].Progress)
	assert.Equal(t, "t3", merged[2].ID)
}

func TestMergeTasksLogsProgressRegression(t *testing.T) {
	store := cache.NewStore()
	Tasks(store).Replace([]api.Task{
		{ID: "t1", Status: api.StatusProcessing, Progress: 60},
	}, store.Stamp())

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	merged := mergeTasks(store, []api.Task{
		{ID: "t1", Status: api.StatusProcessing, Progress: 30},
	}, logger)

	require.Len(t, merged, 1)
	assert.Equal(t, 60, merged[0].Progress, "a stale poll must not move progress backwards")
	assert.Contains(t, buf.String(), "progress regression")
}

func TestApplyTaskAllowsLegalTransitions(t *testing.T) {
	store := cache.NewStore()
	logger := discardLogger()

	steps := []struct {
		status   api.Status
		progress int
	}{
		{api.StatusQueued, 0},
		{api.StatusProcessing, 10},
		{api.StatusProcessing, 90},
		{api.StatusCompleted, 100},
	}
	for i, step := range steps {
		applied := applyTask(store, api.Task{ID: "t1", Status: step.status, Progress: step.progress}, logger)
		assert.True(t, applied, fmt.Sprintf("step %d (%s) should apply", i, step.status))
	}

	task, _ := Tasks(store).Get("t1")
	assert.Equal(t, api.StatusCompleted, task.Status)
}
