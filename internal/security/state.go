package security

import (
	"context"
	"errors"
	"time"

	"github.com/derbyfab/derby-tickets/internal/store"
	"github.com/derbyfab/derby-tickets/params"
)

// AttemptState tracks failed attempts for one identifier within the
// current lockout window.
type AttemptState struct {
	Count int `redis:"count"`
}

// LockoutState is the lockout flag for one identifier.
type LockoutState struct {
	Locked bool `redis:"locked"`
}

type attemptStore struct {
	store.Store[AttemptState]
}

// Increment bumps the counter atomically and resets the window TTL so
// attempts accumulate over a sliding window, not a fixed one.
func (s *attemptStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := s.IncrAttr(ctx, key, "count", 1)
	if err != nil {
		return 0, err
	}
	if err := s.Expire(ctx, key, time.Now().Add(window)); err != nil {
		return int(count), err
	}
	return int(count), nil
}

func (s *attemptStore) Count(ctx context.Context, key string) (int, error) {
	var count int
	err := s.GetAttr(ctx, key, "count", &count)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return count, err
}

type lockoutStore struct {
	store.Store[LockoutState]
}

func (s *lockoutStore) Lock(ctx context.Context, key string, window time.Duration) error {
	return s.Set(ctx, key, LockoutState{Locked: true}, window)
}

func (s *lockoutStore) IsLocked(ctx context.Context, key string) (bool, error) {
	var locked bool
	err := s.GetAttr(ctx, key, "locked", &locked)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return locked, err
}

func newAttemptStore(storage store.Storage) *attemptStore {
	return &attemptStore{
		Store: store.New[AttemptState](storage, params.AttemptKeyPrefix),
	}
}

func newLockoutStore(storage store.Storage) *lockoutStore {
	return &lockoutStore{
		Store: store.New[LockoutState](storage, params.LockoutKeyPrefix),
	}
}
