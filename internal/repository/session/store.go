// Package session persists per-session console state as JSON documents in the
// key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/mmdex/internal/db"
	"github.com/kailas-cloud/mmdex/internal/domain"
)

const keyPrefix = "mmdex:session:"

// store is the consumer interface for session state operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Observer records store operations. May be nil.
type Observer interface {
	SessionOp(op string, err error)
}

// Store keeps one state document of type T per session. Updates for the same
// session are serialized by a process-local lock that is held only for the
// load-modify-save cycle.
type Store[T any] struct {
	store store
	kind  string
	ttl   time.Duration
	locks *Locks
	obs   Observer
}

// New creates a state store. kind namespaces the keys ("search", "chat").
func New[T any](s store, kind string, ttl time.Duration, locks *Locks, obs Observer) *Store[T] {
	if locks == nil {
		locks = NewLocks()
	}
	return &Store[T]{store: s, kind: kind, ttl: ttl, locks: locks, obs: obs}
}

func (s *Store[T]) key(id string) string {
	return keyPrefix + id + ":" + s.kind
}

// Create stores the initial state. Fails with domain.ErrInvalidInput if the
// session already has state of this kind.
func (s *Store[T]) Create(ctx context.Context, id string, initial T) error {
	data, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("encode %s state: %w", s.kind, err)
	}
	err = s.store.SetNX(ctx, s.key(id), data, s.ttl)
	s.observe("create", err)
	if errors.Is(err, db.ErrKeyExists) {
		return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, id)
	}
	if err != nil {
		return fmt.Errorf("session SETNX %s: %w", s.key(id), err)
	}
	return nil
}

// Get loads the current state. Missing or expired sessions yield domain.ErrSessionNotFound.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var state T
	data, err := s.store.Get(ctx, s.key(id))
	s.observe("get", err)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return state, domain.ErrSessionNotFound
		}
		return state, fmt.Errorf("session GET %s: %w", s.key(id), err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decode %s state: %w", s.kind, err)
	}
	return state, nil
}

// Update applies fn to the current state under the session lock and saves the
// result, refreshing the TTL. If fn returns an error nothing is saved.
func (s *Store[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.Get(ctx, id)
	if err != nil {
		return state, err
	}

	if err := fn(&state); err != nil {
		return state, err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return state, fmt.Errorf("encode %s state: %w", s.kind, err)
	}
	err = s.store.SetWithTTL(ctx, s.key(id), data, s.ttl)
	s.observe("set", err)
	if err != nil {
		return state, fmt.Errorf("session SET %s: %w", s.key(id), err)
	}
	return state, nil
}

// Delete removes the session state.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	err := s.store.Del(ctx, s.key(id))
	s.observe("del", err)
	if err != nil {
		return fmt.Errorf("session DEL %s: %w", s.key(id), err)
	}
	return nil
}

func (s *Store[T]) observe(op string, err error) {
	if s.obs == nil {
		return
	}
	if errors.Is(err, db.ErrKeyNotFound) || errors.Is(err, db.ErrKeyExists) {
		err = nil
	}
	s.obs.SessionOp(op, err)
}
