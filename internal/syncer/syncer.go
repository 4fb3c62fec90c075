package syncer

import (
	"context"
	"log/slog"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

// Syncer bundles the cache, the poll scheduler, the push channels, and the
// mutation coordinator behind one handle. All feeds share a single store so
// polled and pushed updates reconcile through the same version guard.
type Syncer struct {
	Client      *api.Client
	Store       *cache.Store
	Poller      *Poller
	Coordinator *Coordinator
	Collector   *metrics.Collector

	logger *slog.Logger
}

// New wires a syncer around an authenticated client.
func New(client *api.Client, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	store := cache.NewStore()
	collector := metrics.NewCollector()
	return &Syncer{
		Client:      client,
		Store:       store,
		Poller:      NewPoller(store, collector, logger),
		Coordinator: NewCoordinator(client, store, collector, logger),
		Collector:   collector,
		logger:      logger,
	}
}

// SubscribeTasks starts (or joins) the task list poll. Poll results pass
// through the same lifecycle validation as pushed updates, so a stale poll
// cannot walk a cached task backwards.
func (s *Syncer) SubscribeTasks() func() {
	return s.Poller.Subscribe(KeyTasks, func(ctx context.Context) ([]any, error) {
		tasks, err := s.Client.ListTasks(ctx)
		if err != nil {
			return nil, err
		}
		merged := mergeTasks(s.Store, tasks, s.logger)
		items := make([]any, len(merged))
		for i, t := range merged {
			items[i] = t
		}
		return items, nil
	}, TaskPollInterval)
}

// SubscribeQuota starts (or joins) the quota poll.
func (s *Syncer) SubscribeQuota() func() {
	return s.Poller.Subscribe(KeyQuota, func(ctx context.Context) ([]any, error) {
		quota, err := s.Client.MyQuota(ctx)
		if err != nil {
			return nil, err
		}
		return []any{*quota}, nil
	}, QuotaPollInterval)
}

// SubscribeMetrics starts (or joins) the performance metrics poll.
func (s *Syncer) SubscribeMetrics() func() {
	return s.Poller.Subscribe(KeyMetrics, func(ctx context.Context) ([]any, error) {
		m, err := s.Client.GetPerformanceMetrics(ctx)
		if err != nil {
			return nil, err
		}
		return []any{*m}, nil
	}, MetricsPollInterval)
}

// RefreshProviders fetches the provider list once into the cache. Admin
// collections are push-driven; the refresh seeds the snapshot the push
// channel then keeps current.
func (s *Syncer) RefreshProviders(ctx context.Context) ([]api.ProviderConfig, error) {
	stamp := s.Store.Stamp()
	providers, err := s.Client.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	Providers(s.Store).Replace(providers, stamp)
	return providers, nil
}

// RefreshGroups fetches the group list once into the cache.
func (s *Syncer) RefreshGroups(ctx context.Context) ([]api.Group, error) {
	stamp := s.Store.Stamp()
	groups, err := s.Client.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	Groups(s.Store).Replace(groups, stamp)
	return groups, nil
}

// RefreshUsers fetches the account list once into the cache.
func (s *Syncer) RefreshUsers(ctx context.Context) ([]api.User, error) {
	stamp := s.Store.Stamp()
	users, err := s.Client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	Users(s.Store).Replace(users, stamp)
	return users, nil
}

// RefreshGroupAccess fetches one group's provider grants into the cache.
func (s *Syncer) RefreshGroupAccess(ctx context.Context, groupID string) ([]api.GroupProviderAccess, error) {
	stamp := s.Store.Stamp()
	grants, err := s.Client.ListGroupAccess(ctx, groupID)
	if err != nil {
		return nil, err
	}
	sortGrants(grants)
	GroupAccess(s.Store, groupID).Replace(grants, stamp)
	return grants, nil
}

// TaskChannel builds the push channel carrying task progress updates.
// The caller owns Start/Stop.
func (s *Syncer) TaskChannel() *Channel {
	applier := &eventApplier{store: s.Store, collector: s.Collector, logger: s.logger}
	return NewChannel(func() string {
		return s.Client.WebSocketURL("/api/tasks/ws")
	}, applier.handleTaskMessage, s.Collector, s.logger)
}

// AdminChannel builds the push channel carrying provider and settings
// change events.
func (s *Syncer) AdminChannel() *Channel {
	applier := &eventApplier{store: s.Store, collector: s.Collector, logger: s.logger}
	return NewChannel(func() string {
		return s.Client.WebSocketURL("/api/admin/providers/ws")
	}, applier.handleAdminMessage, s.Collector, s.logger)
}
