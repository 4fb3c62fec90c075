// Package cache holds last-known snapshots of server-owned collections.
//
// The store is the only shared mutable state in the sync layer. Every
// operation is atomic with respect to readers: a reader never observes a
// partially written collection. Entries live for the session; there is no
// eviction.
package cache

import (
	"strings"
	"sync"
)

// Key identifies one cached collection. Keys are composite, e.g.
// Key("tasks"), Key("admin", "providers"),
// Key("admin", "groups", groupID, "access").
type Key string

// NewKey joins key parts into a Key.
func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, "/"))
}

type entry struct {
	items   []any
	version uint64
}

// Store is a keyed, in-memory snapshot store with last-writer-wins-by-version
// semantics. A write carries a stamp taken when the producing operation
// started; a write older than the currently cached version is rejected, so a
// slow poll response cannot overwrite a newer push-applied state.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	seq     uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[Key]*entry)}
}

// Stamp returns the next monotonic write stamp. Producers take a stamp when
// their operation starts, before any network round-trip.
func (s *Store) Stamp() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// stampLocked is Stamp for writers already holding the lock.
func (s *Store) stampLocked() uint64 {
	s.seq++
	return s.seq
}

// Read returns a copy of the cached collection, or ok=false when the key has
// never been loaded. An empty loaded collection returns a non-nil empty slice.
func (s *Store) Read(key Key) ([]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	items := make([]any, len(e.items))
	copy(items, e.items)
	return items, true
}

// Version returns the stamp of the last applied write for a key (0 if never
// written).
func (s *Store) Version(key Key) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.version
	}
	return 0
}

// Replace atomically overwrites the collection with a full snapshot. The
// write is rejected (returns false) when stamp is older than the cached
// version; callers treat a rejection as "a newer write already landed" and
// simply wait for the next refresh.
func (s *Store) Replace(key Key, items []any, stamp uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	if stamp <= e.version {
		return false
	}
	e.items = make([]any, len(items))
	copy(e.items, items)
	e.version = stamp
	return true
}

// Upsert replaces the element whose identity matches, keeping its position, or
// appends when absent. Upserts always win over any in-flight older fetch: the
// stamp is taken at apply time. A key touched only by upserts is considered
// loaded.
func (s *Store) Upsert(key Key, item any, identity func(any) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	id := identity(item)
	replaced := false
	for i, existing := range e.items {
		if identity(existing) == id {
			e.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		e.items = append(e.items, item)
	}
	e.version = s.stampLocked()
}

// Remove deletes the element with the given identity. Removing an absent
// identity is a no-op, but still bumps the version on a loaded key so a stale
// fetch cannot resurrect the element.
func (s *Store) Remove(key Key, id string, identity func(any) string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	for i, existing := range e.items {
		if identity(existing) == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			break
		}
	}
	e.version = s.stampLocked()
}

// Invalidate drops a key entirely; the next Read reports not-loaded.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
