package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage is the keyed counter/flag store behind the lockout manager.
// Values live in hash-style records so counters can be incremented
// atomically next to their sibling fields. Implementations must make
// IncrAttr a single read-increment-write operation.
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresAt time.Time) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}

// Store is a typed view over a Storage with a fixed key prefix.
type Store[T any] interface {
	Storage() Storage
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, val T, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresAt time.Time) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}
