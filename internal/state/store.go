// Package state holds the client's reactive stores. Each store owns one
// value, notifies subscribers on every change and writes a snapshot of the
// value to a persist.Storage after each mutation.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"life.tape/internal/logging"
	"life.tape/internal/persist"
)

// Persistence configures how a store is saved and restored.
type Persistence[T any] struct {
	Name    string
	Storage persist.Storage
	Version int

	// Partialize selects what is written. Nil writes the whole value.
	Partialize func(T) any
	// Merge applies a persisted snapshot to the current value. Nil decodes
	// the snapshot over the current value, so absent fields keep their
	// current contents.
	Merge func(current T, snapshot json.RawMessage) (T, error)
}

type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

type Store[T any] struct {
	mu      sync.Mutex
	value   T
	initial T
	subs    map[int]func(T)
	nextSub int

	persist *Persistence[T]
	log     logging.Logger
}

// New creates a store. p may be nil for an unpersisted store.
func New[T any](initial T, p *Persistence[T], log logging.Logger) *Store[T] {
	if log == nil {
		log = logging.Discard()
	}
	return &Store[T]{
		value:   initial,
		initial: initial,
		subs:    make(map[int]func(T)),
		persist: p,
		log:     log,
	}
}

func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Update replaces the value with fn applied to a copy of it, notifies
// subscribers and saves. fn must not mutate slices or maps in place.
func (s *Store[T]) Update(ctx context.Context, fn func(*T)) T {
	return s.apply(ctx, fn, true)
}

// Reset restores the initial value.
func (s *Store[T]) Reset(ctx context.Context) T {
	return s.apply(ctx, func(v *T) { *v = s.initial }, true)
}

func (s *Store[T]) apply(ctx context.Context, fn func(*T), save bool) T {
	s.mu.Lock()
	next := s.value
	fn(&next)
	s.value = next
	subs := s.subscribers()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
	if save {
		s.save(ctx, next)
	}
	return next
}

// Subscribe registers fn for every change and returns its unsubscribe func.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store[T]) subscribers() []func(T) {
	out := make([]func(T), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// Hydrate loads the persisted snapshot and merges it into the value. A
// missing snapshot or one written under another version leaves the value
// untouched.
func (s *Store[T]) Hydrate(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	data, err := s.persist.Storage.GetItem(ctx, s.persist.Name)
	if errors.Is(err, persist.ErrNoItem) {
		return nil
	}
	if err != nil {
		s.log.Warn(ctx, "hydrate failed", "store", s.persist.Name, "error", err)
		return fmt.Errorf("hydrate %s: %w", s.persist.Name, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn(ctx, "corrupt snapshot", "store", s.persist.Name, "error", err)
		return fmt.Errorf("hydrate %s: %w", s.persist.Name, err)
	}
	if env.Version != s.persist.Version {
		s.log.Info(ctx, "dropping snapshot from another version",
			"store", s.persist.Name, "have", env.Version, "want", s.persist.Version)
		return nil
	}
	if len(env.State) == 0 || string(env.State) == "null" {
		return nil
	}

	var mergeErr error
	s.apply(ctx, func(v *T) {
		merged, err := s.merge(*v, env.State)
		if err != nil {
			mergeErr = err
			return
		}
		*v = merged
	}, false)
	if mergeErr != nil {
		s.log.Warn(ctx, "merge failed", "store", s.persist.Name, "error", mergeErr)
		return fmt.Errorf("hydrate %s: %w", s.persist.Name, mergeErr)
	}
	return nil
}

// Forget removes the persisted snapshot. The in-memory value is kept.
func (s *Store[T]) Forget(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Storage.RemoveItem(ctx, s.persist.Name); err != nil {
		s.log.Warn(ctx, "forget failed", "store", s.persist.Name, "error", err)
		return err
	}
	return nil
}

func (s *Store[T]) merge(current T, snapshot json.RawMessage) (T, error) {
	if s.persist.Merge != nil {
		return s.persist.Merge(current, snapshot)
	}
	next := current
	if err := json.Unmarshal(snapshot, &next); err != nil {
		return current, err
	}
	return next, nil
}

func (s *Store[T]) save(ctx context.Context, v T) {
	if s.persist == nil {
		return
	}

	var partial any = v
	if s.persist.Partialize != nil {
		partial = s.persist.Partialize(v)
	}
	state, err := json.Marshal(partial)
	if err != nil {
		s.log.Error(ctx, "encode snapshot", "store", s.persist.Name, "error", err)
		return
	}
	data, err := json.Marshal(envelope{State: state, Version: s.persist.Version})
	if err != nil {
		s.log.Error(ctx, "encode snapshot", "store", s.persist.Name, "error", err)
		return
	}

	if err := s.persist.Storage.SetItem(ctx, s.persist.Name, data); err != nil {
		s.log.Warn(ctx, "persist failed", "store", s.persist.Name, "error", err)
	}
}
