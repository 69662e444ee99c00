package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process fixed-window store.
// A single mutex serializes every read-modify-write of a record.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
	maxKeys int
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxKeys bounds the number of tracked keys; expired records are purged
// when the bound is reached. Zero means unbounded.
func WithMaxKeys(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxKeys = n
	}
}

// NewMemoryStore creates an empty store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check implements Store
func (s *MemoryStore) Check(_ context.Context, key string, cfg Config) (Result, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.expired(now) {
		if !ok && s.maxKeys > 0 && len(s.records) >= s.maxKeys {
			s.purgeLocked(now)
		}
		rec = &Record{
			Key:         key,
			Count:       1,
			WindowStart: now,
			ResetTime:   now.Add(cfg.Window),
		}
		s.records[key] = rec
		return resultFor(rec.Count, cfg, rec.ResetTime), nil
	}

	rec.Count++
	return resultFor(rec.Count, cfg, rec.ResetTime), nil
}

// Get returns a copy of the record for key
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Cleanup removes expired records and returns how many were removed
func (s *MemoryStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(now)
}

func (s *MemoryStore) purgeLocked(now time.Time) int {
	removed := 0
	for key, rec := range s.records {
		if rec.expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}
