package cache

// Collection is a typed view over one store key. It boxes and unboxes the
// store's untyped elements so callers work with concrete entity types.
type Collection[T any] struct {
	store    *Store
	key      Key
	identity func(T) string
}

// NewCollection binds a typed view to a key. identity extracts the element id
// used by Upsert and Remove.
func NewCollection[T any](store *Store, key Key, identity func(T) string) Collection[T] {
	return Collection[T]{store: store, key: key, identity: identity}
}

// Key returns the bound cache key.
func (c Collection[T]) Key() Key { return c.key }

// Store returns the underlying store.
func (c Collection[T]) Store() *Store { return c.store }

// Read returns the cached snapshot, or ok=false when not yet loaded.
func (c Collection[T]) Read() ([]T, bool) {
	raw, ok := c.store.Read(c.key)
	if !ok {
		return nil, false
	}
	items := make([]T, 0, len(raw))
	for _, r := range raw {
		if item, ok := r.(T); ok {
			items = append(items, item)
		}
	}
	return items, true
}

// Get returns the cached element with the given id.
func (c Collection[T]) Get(id string) (T, bool) {
	var zero T
	items, ok := c.Read()
	if !ok {
		return zero, false
	}
	for _, item := range items {
		if c.identity(item) == id {
			return item, true
		}
	}
	return zero, false
}

// Replace overwrites the snapshot with a full fetch result taken under the
// given stamp. Returns false when a newer write already landed.
func (c Collection[T]) Replace(items []T, stamp uint64) bool {
	raw := make([]any, len(items))
	for i, item := range items {
		raw[i] = item
	}
	return c.store.Replace(c.key, raw, stamp)
}

// Upsert replaces the matching element in place or appends it.
func (c Collection[T]) Upsert(item T) {
	c.store.Upsert(c.key, item, c.anyIdentity())
}

// Remove deletes the element with the given id; absent ids are a no-op.
func (c Collection[T]) Remove(id string) {
	c.store.Remove(c.key, id, c.anyIdentity())
}

func (c Collection[T]) anyIdentity() func(any) string {
	return func(v any) string {
		item, ok := v.(T)
		if !ok {
			return ""
		}
		return c.identity(item)
	}
}
