package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

func newTestCoordinator(t *testing.T, handler http.Handler) (*Coordinator, *cache.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := cache.NewStore()
	client := api.New(srv.URL, "session-token")
	return NewCoordinator(client, store, metrics.NewCollector(), discardLogger()), store
}

func TestCreateTaskCachesQueuedTask(t *testing.T) {
	var requests atomic.Int64
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/tasks", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "paper.pdf", r.MultipartForm.Value["documentName"][0])
		assert.Equal(t, "en", r.MultipartForm.Value["sourceLang"][0])
		assert.Equal(t, "zh", r.MultipartForm.Value["targetLang"][0])
		assert.Equal(t, "google", r.MultipartForm.Value["engine"][0])
		assert.NotEmpty(t, r.MultipartForm.Value["idempotencyKey"][0], "creates must carry an idempotency key")

		json.NewEncoder(w).Encode(map[string]any{"task": map[string]any{
			"id": "t1", "documentName": "paper.pdf", "status": "queued", "progress": 0,
		}})
	}))

	task, err := c.CreateTask(context.Background(), api.CreateTaskInput{
		File:         strings.NewReader("%PDF-1.7"),
		FileName:     "paper.pdf",
		DocumentName: "paper.pdf",
		SourceLang:   "en",
		TargetLang:   "zh",
		Engine:       "google",
	})
	require.NoError(t, err)
	assert.Equal(t, api.StatusQueued, task.Status)
	assert.Equal(t, 0, task.Progress)

	cached, ok := Tasks(store).Get("t1")
	require.True(t, ok, "the created task must appear in the cache")
	assert.Equal(t, api.StatusQueued, cached.Status)
	assert.Equal(t, int64(1), requests.Load())
}

func TestCreateTaskValidationFailsBeforeAnyRequest(t *testing.T) {
	var requests atomic.Int64
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	tests := []struct {
		name  string
		input api.CreateTaskInput
	}{
		{"missing file", api.CreateTaskInput{DocumentName: "a.pdf", SourceLang: "en", TargetLang: "zh", Engine: "google"}},
		{"missing name", api.CreateTaskInput{File: strings.NewReader("x"), SourceLang: "en", TargetLang: "zh", Engine: "google"}},
		{"missing languages", api.CreateTaskInput{File: strings.NewReader("x"), DocumentName: "a.pdf", Engine: "google"}},
		{"missing engine", api.CreateTaskInput{File: strings.NewReader("x"), DocumentName: "a.pdf", SourceLang: "en", TargetLang: "zh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateTask(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	assert.Equal(t, int64(0), requests.Load(), "validation failures must not reach the network")
	_, loaded := store.Read(KeyTasks)
	assert.False(t, loaded)
}

func TestRetryTaskReplacesCachedTaskInPlace(t *testing.T) {
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/tasks/t1", r.URL.Path)

		var body struct {
			Action string `json:"action"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "retry", body.Action)

		json.NewEncoder(w).Encode(map[string]any{"task": map[string]any{
			"id": "t1", "status": "queued", "progress": 0,
		}})
	}))

	Tasks(store).Replace([]api.Task{
		{ID: "t0", Status: api.StatusCompleted},
		{ID: "t1", Status: api.StatusFailed, Error: "engine unavailable"},
		{ID: "t2", Status: api.StatusQueued},
	}, store.Stamp())

	task, err := c.RetryTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusQueued, task.Status)

	tasks, _ := Tasks(store).Read()
	require.Len(t, tasks, 3, "retry must replace in place, not append")
	assert.Equal(t, "t1", tasks[1].ID)
	assert.Equal(t, api.StatusQueued, tasks[1].Status)
}

func TestRetryTaskRejectsNonFailedCachedTask(t *testing.T) {
	var requests atomic.Int64
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	Tasks(store).Replace([]api.Task{{ID: "t1", Status: api.StatusCompleted}}, store.Stamp())

	_, err := c.RetryTask(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(0), requests.Load())
}

func TestCancelTaskRejectsTerminalCachedTask(t *testing.T) {
	var requests atomic.Int64
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	Tasks(store).Replace([]api.Task{{ID: "t1", Status: api.StatusCanceled}}, store.Stamp())

	_, err := c.CancelTask(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(0), requests.Load())
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"detail":"task is already processing"}`)
	}))

	Tasks(store).Replace([]api.Task{{ID: "t1", Status: api.StatusFailed}}, store.Stamp())

	_, err := c.RetryTask(context.Background(), "t1")
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "task is already processing", apiErr.Message)

	task, _ := Tasks(store).Get("t1")
	assert.Equal(t, api.StatusFailed, task.Status, "failed mutations must not touch the cache")
}

func TestConcurrentMutationOnSameTaskIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"task": map[string]any{"id": "t1", "status": "queued"}})
	}))

	Tasks(store).Replace([]api.Task{{ID: "t1", Status: api.StatusFailed}}, store.Stamp())

	done := make(chan error, 1)
	go func() {
		_, err := c.RetryTask(context.Background(), "t1")
		done <- err
	}()
	<-started

	_, err := c.RetryTask(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrMutationInFlight)
	assert.True(t, c.Pending("t1"))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Pending("t1"))
}

func TestConcurrentQuotaUpdateOnSameUserIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"id": "u1", "dailyPageLimit": 50})
	}))

	done := make(chan error, 1)
	go func() {
		_, err := c.UpdateUserQuota(context.Background(), "u1", 50)
		done <- err
	}()
	<-started

	_, err := c.UpdateUserQuota(context.Background(), "u1", 80)
	assert.ErrorIs(t, err, ErrMutationInFlight)
	assert.True(t, c.Pending("u1"))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Pending("u1"))
}

func TestConcurrentRevokeOnSameGrantIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))

	GroupAccess(store, "g1").Replace([]api.GroupProviderAccess{
		{ID: "x1", ProviderConfigID: "b"},
	}, store.Stamp())

	done := make(chan error, 1)
	go func() {
		done <- c.RevokeAccess(context.Background(), "g1", "b")
	}()
	<-started

	err := c.RevokeAccess(context.Background(), "g1", "b")
	assert.ErrorIs(t, err, ErrMutationInFlight)

	// The marker also blocks re-granting the same pair mid-flight.
	_, err = c.GrantAccess(context.Background(), "g1", "b", 0)
	assert.ErrorIs(t, err, ErrMutationInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Pending(accessMutationKey("g1", "b")))
}

func TestDeleteProviderRemovesFromCache(t *testing.T) {
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))

	Providers(store).Replace([]api.ProviderConfig{{ID: "p1"}, {ID: "p2"}}, store.Stamp())

	require.NoError(t, c.DeleteProvider(context.Background(), "p1"))

	providers, _ := Providers(store).Read()
	require.Len(t, providers, 1)
	assert.Equal(t, "p2", providers[0].ID)
}

func TestReorderAccessSubmitsFullListAndResortsCache(t *testing.T) {
	var submitted []string
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/admin/groups/g1/access/reorder", r.URL.Path)
		var body struct {
			ProviderIDs []string `json:"providerIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		submitted = body.ProviderIDs
		fmt.Fprint(w, `{"ok":true}`)
	}))

	GroupAccess(store, "g1").Replace([]api.GroupProviderAccess{
		{ID: "x1", ProviderConfigID: "a", SortOrder: 0},
		{ID: "x2", ProviderConfigID: "b", SortOrder: 1},
		{ID: "x3", ProviderConfigID: "c", SortOrder: 2},
	}, store.Stamp())

	// Move the last provider to the front.
	newOrder := Move([]string{"a", "b", "c"}, 2, 0)
	require.Equal(t, []string{"c", "a", "b"}, newOrder)

	require.NoError(t, c.ReorderAccess(context.Background(), "g1", newOrder))
	assert.Equal(t, []string{"c", "a", "b"}, submitted, "the full id list goes to the server")

	grants, _ := GroupAccess(store, "g1").Read()
	require.Len(t, grants, 3)
	assert.Equal(t, "c", grants[0].ProviderConfigID)
	assert.Equal(t, "a", grants[1].ProviderConfigID)
	assert.Equal(t, "b", grants[2].ProviderConfigID)
}

func TestRevokeAccessRemovesGrantByProviderID(t *testing.T) {
	c, store := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/admin/groups/g1/access/b", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	GroupAccess(store, "g1").Replace([]api.GroupProviderAccess{
		{ID: "x1", ProviderConfigID: "a"},
		{ID: "x2", ProviderConfigID: "b"},
	}, store.Stamp())

	require.NoError(t, c.RevokeAccess(context.Background(), "g1", "b"))

	grants, _ := GroupAccess(store, "g1").Read()
	require.Len(t, grants, 1)
	assert.Equal(t, "a", grants[0].ProviderConfigID)
}
