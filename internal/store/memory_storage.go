package store

import (
	"context"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

type memoryRecord struct {
	fields    map[string]any
	expiresAt time.Time // zero means no expiry
}

func (r *memoryRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && now.After(r.expiresAt)
}

// MemoryStorage is an in-process Storage used in tests and when no
// redis backend is configured. Lockouts held here reset on restart,
// which the lockout manager treats as acceptable degradation.
type MemoryStorage struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*memoryRecord),
	}
}

func (s *MemoryStorage) getRecord(key string) *memoryRecord {
	rec, ok := s.records[key]
	if !ok || rec.expired(time.Now()) {
		delete(s.records, key)
		return nil
	}
	return rec
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getRecord(key)
	if rec == nil {
		return ErrNotFound
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "redis",
		WeaklyTypedInput: true,
		Result:           val,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(rec.fields)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	fields := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "redis",
		Result:  &fields,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(val); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &memoryRecord{fields: fields}
	if expiresIn > 0 {
		rec.expiresAt = time.Now().Add(expiresIn)
	}
	s.records[key] = rec
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.getRecord(key); rec != nil {
		rec.expiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getRecord(key)
	if rec == nil {
		rec = &memoryRecord{fields: make(map[string]any)}
		s.records[key] = rec
	}
	rec.fields[field] = val
	return nil
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getRecord(key)
	if rec == nil {
		return ErrNotFound
	}
	raw, ok := rec.fields[field]
	if !ok {
		return ErrNotFound
	}
	switch out := val.(type) {
	case *int:
		n, err := cast.ToIntE(raw)
		if err != nil {
			return err
		}
		*out = n
	case *int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		*out = n
	case *bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		*out = b
	case *string:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		*out = s
	default:
		return mapstructure.Decode(raw, val)
	}
	return nil
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getRecord(key)
	if rec == nil {
		rec = &memoryRecord{fields: make(map[string]any)}
		s.records[key] = rec
	}
	current, err := cast.ToInt64E(rec.fields[field])
	if err != nil {
		current = 0
	}
	current += delta
	rec.fields[field] = current
	return current, nil
}
