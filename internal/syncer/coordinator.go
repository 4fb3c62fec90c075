package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/cache"
	"github.com/mfloris/doctran/internal/metrics"
)

// ErrInvalidInput marks a validation failure caught before any request is
// issued.
var ErrInvalidInput = errors.New("invalid input")

// ErrMutationInFlight is returned when a mutation is requested for an entity
// that already has one pending. The pending marker is the double-submit
// guard.
var ErrMutationInFlight = errors.New("mutation already in flight")

// Coordinator performs create/update/action requests and reconciles the cache
// with their results. On success the server-returned entity is upserted (the
// server response is authoritative); on failure the cache is left untouched
// and the normalized error is returned to the caller.
//
// Concurrent mutations on different entities are independent. The client does
// not order concurrent mutations on the same entity beyond the pending
// marker; the last response to arrive wins in the cache.
type Coordinator struct {
	client    *api.Client
	store     *cache.Store
	collector *metrics.Collector
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewCoordinator creates a coordinator writing into the given store.
func NewCoordinator(client *api.Client, store *cache.Store, collector *metrics.Collector, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		client:    client,
		store:     store,
		collector: collector,
		logger:    logger,
		pending:   make(map[string]struct{}),
	}
}

// Pending reports whether a mutation is in flight for the given entity id.
func (c *Coordinator) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// begin marks an entity as having an in-flight mutation. The returned release
// function clears the marker; callers defer it.
func (c *Coordinator) begin(id string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMutationInFlight, id)
	}
	c.pending[id] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}, nil
}

// accessMutationKey is the pending-marker key for grant mutations, which have
// no entity id of their own until the server answers.
func accessMutationKey(groupID, providerConfigID string) string {
	return "access:" + groupID + "/" + providerConfigID
}

func (c *Coordinator) record(start time.Time, err error) {
	if c.collector != nil {
		c.collector.RecordTiming(metrics.OpMutation, time.Since(start), err != nil)
	}
}

// CreateTask validates the input, attaches an idempotency key, submits the
// upload, and caches the created task. Creates are keyed on the idempotency
// key for the pending marker since no entity id exists yet.
func (c *Coordinator) CreateTask(ctx context.Context, input api.CreateTaskInput) (*api.Task, error) {
	if input.File == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if input.DocumentName == "" {
		return nil, fmt.Errorf("%w: document name is required", ErrInvalidInput)
	}
	if input.SourceLang == "" || input.TargetLang == "" {
		return nil, fmt.Errorf("%w: source and target languages are required", ErrInvalidInput)
	}
	if input.Engine == "" {
		return nil, fmt.Errorf("%w: engine is required", ErrInvalidInput)
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = uuid.NewString()
	}

	release, err := c.begin("create:" + input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	task, err := c.client.CreateTask(ctx, input)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Tasks(c.store).Upsert(*task)
	return task, nil
}

// RetryTask re-queues a failed task. When the task is cached, the action is
// validated against the lifecycle before any request goes out.
func (c *Coordinator) RetryTask(ctx context.Context, id string) (*api.Task, error) {
	if task, ok := Tasks(c.store).Get(id); ok && task.Status != api.StatusFailed {
		return nil, fmt.Errorf("%w: retry is only valid for failed tasks (status %s)", ErrInvalidInput, task.Status)
	}
	return c.mutateTask(ctx, id, api.ActionRetry)
}

// CancelTask cancels a queued or processing task.
func (c *Coordinator) CancelTask(ctx context.Context, id string) (*api.Task, error) {
	if task, ok := Tasks(c.store).Get(id); ok && task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task is already %s", ErrInvalidInput, task.Status)
	}
	return c.mutateTask(ctx, id, api.ActionCancel)
}

func (c *Coordinator) mutateTask(ctx context.Context, id string, action api.TaskAction) (*api.Task, error) {
	release, err := c.begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	task, err := c.client.MutateTask(ctx, id, action)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	// The response to the caller's own action is authoritative: a retry
	// legitimately takes a failed task back to queued, so it bypasses the
	// passive-observation lifecycle guard and upserts directly.
	Tasks(c.store).Upsert(*task)
	return task, nil
}

// CreateProvider registers a provider config and caches it.
func (c *Coordinator) CreateProvider(ctx context.Context, input api.CreateProviderInput) (*api.ProviderConfig, error) {
	if input.Name == "" || input.ProviderType == "" {
		return nil, fmt.Errorf("%w: provider name and type are required", ErrInvalidInput)
	}

	start := time.Now()
	provider, err := c.client.CreateProvider(ctx, input)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Providers(c.store).Upsert(*provider)
	return provider, nil
}

// UpdateProvider patches a provider config and caches the result.
func (c *Coordinator) UpdateProvider(ctx context.Context, id string, input api.UpdateProviderInput) (*api.ProviderConfig, error) {
	release, err := c.begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	provider, err := c.client.UpdateProvider(ctx, id, input)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Providers(c.store).Upsert(*provider)
	return provider, nil
}

// DeleteProvider removes a provider config from the server and the cache.
func (c *Coordinator) DeleteProvider(ctx context.Context, id string) error {
	release, err := c.begin(id)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = c.client.DeleteProvider(ctx, id)
	c.record(start, err)
	if err != nil {
		return err
	}

	Providers(c.store).Remove(id)
	return nil
}

// CreateGroup creates a group and caches it.
func (c *Coordinator) CreateGroup(ctx context.Context, name string) (*api.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}

	start := time.Now()
	group, err := c.client.CreateGroup(ctx, name)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Groups(c.store).Upsert(*group)
	return group, nil
}

// GrantAccess grants a group the use of a provider config and caches the
// server-returned mapping.
func (c *Coordinator) GrantAccess(ctx context.Context, groupID, providerConfigID string, sortOrder int) (*api.GroupProviderAccess, error) {
	if groupID == "" || providerConfigID == "" {
		return nil, fmt.Errorf("%w: group and provider ids are required", ErrInvalidInput)
	}

	release, err := c.begin(accessMutationKey(groupID, providerConfigID))
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	access, err := c.client.GrantGroupAccess(ctx, groupID, providerConfigID, sortOrder)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	GroupAccess(c.store, groupID).Upsert(*access)
	return access, nil
}

// RevokeAccess removes a provider grant. The cache entry is looked up by
// provider id since the delete endpoint addresses the grant that way.
func (c *Coordinator) RevokeAccess(ctx context.Context, groupID, providerConfigID string) error {
	release, err := c.begin(accessMutationKey(groupID, providerConfigID))
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = c.client.RevokeGroupAccess(ctx, groupID, providerConfigID)
	c.record(start, err)
	if err != nil {
		return err
	}

	col := GroupAccess(c.store, groupID)
	if grants, ok := col.Read(); ok {
		for _, grant := range grants {
			if grant.ProviderConfigID == providerConfigID {
				col.Remove(grant.ID)
				break
			}
		}
	}
	return nil
}

// ReorderAccess submits the full provider id list in its new order. The
// backend acknowledges without echoing the list, so on success the cached
// grants are re-sorted to match the confirmed order.
func (c *Coordinator) ReorderAccess(ctx context.Context, groupID string, providerIDs []string) error {
	if len(providerIDs) == 0 {
		return fmt.Errorf("%w: provider id list is empty", ErrInvalidInput)
	}

	start := time.Now()
	err := c.client.ReorderGroupAccess(ctx, groupID, providerIDs)
	c.record(start, err)
	if err != nil {
		return err
	}

	col := GroupAccess(c.store, groupID)
	grants, ok := col.Read()
	if !ok {
		return nil
	}
	order := make(map[string]int, len(providerIDs))
	for i, id := range providerIDs {
		order[id] = i
	}
	reordered := make([]api.GroupProviderAccess, len(grants))
	copy(reordered, grants)
	for i := range reordered {
		if pos, ok := order[reordered[i].ProviderConfigID]; ok {
			reordered[i].SortOrder = pos
		}
	}
	sortGrants(reordered)
	col.Replace(reordered, c.store.Stamp())
	return nil
}

// CreateUser registers an account and caches it.
func (c *Coordinator) CreateUser(ctx context.Context, input api.CreateUserInput) (*api.User, error) {
	if input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	start := time.Now()
	user, err := c.client.CreateUser(ctx, input)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Users(c.store).Upsert(*user)
	return user, nil
}

// UpdateUser patches an account and caches the result.
func (c *Coordinator) UpdateUser(ctx context.Context, id string, input api.UpdateUserInput) (*api.User, error) {
	release, err := c.begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	user, err := c.client.UpdateUser(ctx, id, input)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Users(c.store).Upsert(*user)
	return user, nil
}

// DeleteUser removes an account from the server and the cache.
func (c *Coordinator) DeleteUser(ctx context.Context, id string) error {
	release, err := c.begin(id)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = c.client.DeleteUser(ctx, id)
	c.record(start, err)
	if err != nil {
		return err
	}

	Users(c.store).Remove(id)
	return nil
}

// UpdateUserQuota changes a user's daily page limit and caches the result.
func (c *Coordinator) UpdateUserQuota(ctx context.Context, id string, dailyPageLimit int) (*api.User, error) {
	if dailyPageLimit < 0 {
		return nil, fmt.Errorf("%w: daily page limit must not be negative", ErrInvalidInput)
	}

	release, err := c.begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	user, err := c.client.UpdateUserQuota(ctx, id, dailyPageLimit)
	c.record(start, err)
	if err != nil {
		return nil, err
	}

	Users(c.store).Upsert(*user)
	return user, nil
}
