package syncer

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

// Cache keys for the server collections this client tracks.
var (
	KeyTasks     = cache.NewKey("tasks")
	KeyQuota     = cache.NewKey("quota")
	KeyProviders = cache.NewKey("admin", "providers")
	KeyGroups    = cache.NewKey("admin", "groups")
	KeyUsers     = cache.NewKey("admin", "users")
	KeyMetrics   = cache.NewKey("admin", "metrics")
)

// KeyGroupAccess is the cache key for one group's provider grants.
func KeyGroupAccess(groupID string) cache.Key {
	return cache.NewKey("admin", "groups", groupID, "access")
}

// pushEvent is the envelope every socket message shares. Entity payloads
// arrive under a resource-specific field; older backend builds wrap them in
// "data" instead, so decoding falls back to it.
type pushEvent struct {
	Type string `json:"type"`

	Task       *api.Task           `json:"task,omitempty"`
	Provider   *api.ProviderConfig `json:"provider,omitempty"`
	ProviderID string              `json:"providerId,omitempty"`
	Data       json.RawMessage     `json:"data,omitempty"`
}

// eventApplier turns raw socket messages into cache mutations. Malformed
// payloads are dropped and logged; they never take the channel down.
type eventApplier struct {
	store     *cache.Store
	collector *metrics.Collector
	logger    *slog.Logger
}

func (a *eventApplier) drop(reason string, err error) {
	if a.collector != nil {
		a.collector.RecordDroppedEvent()
	}
	a.logger.Warn("push event dropped", "reason", reason, "error", err)
}

func (a *eventApplier) applied() {
	if a.collector != nil {
		a.collector.RecordPushEvent()
	}
}

// handleTaskMessage processes events from the per-user task socket.
func (a *eventApplier) handleTaskMessage(message []byte) {
	var ev pushEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		a.drop("invalid json", err)
		return
	}
	if ev.Type != "task.update" {
		a.logger.Debug("ignoring task socket event", "type", ev.Type)
		return
	}

	task := ev.Task
	if task == nil && len(ev.Data) > 0 {
		task = &api.Task{}
		if err := json.Unmarshal(ev.Data, task); err != nil {
			a.drop("invalid task payload", err)
			return
		}
	}
	if task == nil || task.ID == "" {
		a.drop("task payload missing", nil)
		return
	}

	if applyTask(a.store, *task, a.logger) {
		a.applied()
	}
}

// handleAdminMessage processes events from the admin resource socket:
// provider.created/updated/deleted and settings.*.updated.
func (a *eventApplier) handleAdminMessage(message []byte) {
	var ev pushEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		a.drop("invalid json", err)
		return
	}

	switch ev.Type {
	case "provider.created", "provider.updated":
		provider := ev.Provider
		if provider == nil && len(ev.Data) > 0 {
			provider = &api.ProviderConfig{}
			if err := json.Unmarshal(ev.Data, provider); err != nil {
				a.drop("invalid provider payload", err)
				return
			}
		}
		if provider == nil || provider.ID == "" {
			a.drop("provider payload missing", nil)
			return
		}
		Providers(a.store).Upsert(*provider)
		a.applied()

	case "provider.deleted":
		id := ev.ProviderID
		if id == "" && len(ev.Data) > 0 {
			var body struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(ev.Data, &body); err != nil {
				a.drop("invalid delete payload", err)
				return
			}
			id = body.ID
		}
		if id == "" {
			a.drop("delete payload missing id", nil)
			return
		}
		// Removing an id that is not cached is a quiet no-op.
		Providers(a.store).Remove(id)
		a.applied()

	default:
		if strings.HasPrefix(ev.Type, "settings.") && strings.HasSuffix(ev.Type, ".updated") {
			// Settings events carry no payload; drop the snapshot so the
			// next read refetches.
			a.store.Invalidate(KeyMetrics)
			a.applied()
			return
		}
		a.logger.Debug("ignoring admin socket event", "type", ev.Type)
	}
}

// Typed collection views. Identity is always the entity id.

// Tasks returns the typed view of the task list.
func Tasks(store *cache.Store) cache.Collection[api.Task] {
	return cache.NewCollection(store, KeyTasks, func(t api.Task) string { return t.ID })
}

// Providers returns the typed view of the admin provider list.
func Providers(store *cache.Store) cache.Collection[api.ProviderConfig] {
	return cache.NewCollection(store, KeyProviders, func(p api.ProviderConfig) string { return p.ID })
}

// Groups returns the typed view of the admin group list.
func Groups(store *cache.Store) cache.Collection[api.Group] {
	return cache.NewCollection(store, KeyGroups, func(g api.Group) string { return g.ID })
}

// Users returns the typed view of the admin user list.
func Users(store *cache.Store) cache.Collection[api.User] {
	return cache.NewCollection(store, KeyUsers, func(u api.User) string { return u.ID })
}

// GroupAccess returns the typed view of one group's provider grants.
func GroupAccess(store *cache.Store, groupID string) cache.Collection[api.GroupProviderAccess] {
	return cache.NewCollection(store, KeyGroupAccess(groupID), func(a api.GroupProviderAccess) string { return a.ID })
}

// Quota returns the typed view of the quota snapshot (a single-element
// collection keyed by a constant id).
func Quota(store *cache.Store) cache.Collection[api.Quota] {
	return cache.NewCollection(store, KeyQuota, func(api.Quota) string { return "quota" })
}

// Metrics returns the typed view of the backend performance metrics snapshot.
func Metrics(store *cache.Store) cache.Collection[api.PerformanceMetrics] {
	return cache.NewCollection(store, KeyMetrics, func(api.PerformanceMetrics) string { return "metrics" })
}

// applyTask upserts a task observed from the server, enforcing the status
// lifecycle at the boundary: an update that would take a cached task along an
// illegal edge (or move progress backwards mid-processing) is ignored and
// logged rather than applied as new truth.
func applyTask(store *cache.Store, task api.Task, logger *slog.Logger) bool {
	col := Tasks(store)
	if prev, ok := col.Get(task.ID); ok {
		if !prev.Status.CanTransitionTo(task.Status) {
			logger.Warn("ignoring illegal task transition",
				"task", task.ID, "from", prev.Status, "to", task.Status)
			return false
		}
		if prev.Status == api.StatusProcessing && task.Status == api.StatusProcessing &&
			task.Progress < prev.Progress {
			logger.Warn("ignoring task progress regression",
				"task", task.ID, "from", prev.Progress, "to", task.Progress)
			return false
		}
	}
	col.Upsert(task)
	return true
}

// mergeTasks reconciles a full poll result against the cached snapshot,
// applying the same boundary validation per task: entries whose update would
// be illegal keep their cached value.
func mergeTasks(store *cache.Store, fetched []api.Task, logger *slog.Logger) []api.Task {
	col := Tasks(store)
	merged := make([]api.Task, 0, len(fetched))
	for _, task := range fetched {
		if prev, ok := col.Get(task.ID); ok {
			if !prev.Status.CanTransitionTo(task.Status) {
				logger.Warn("ignoring illegal task transition",
					"task", task.ID, "from", prev.Status, "to", task.Status)
				merged = append(merged, prev)
				continue
			}
			if prev.Status == api.StatusProcessing && task.Status == api.StatusProcessing &&
				task.Progress < prev.Progress {
				logger.Warn("ignoring task progress regression",
					"task", task.ID, "from", prev.Progress, "to", task.Progress)
				merged = append(merged, prev)
				continue
			}
		}
		merged = append(merged, task)
	}
	return merged
}
