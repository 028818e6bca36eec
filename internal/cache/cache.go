// Package cache defines the small key/value contract the permission resolver
// depends on, plus a process-local TTL implementation. The interface exists so
// tests can substitute a fake and so a shared store (Redis, memcached) can be
// dropped in without touching the resolver.
package cache

import (
	"sync"
	"time"
)

// Store is the injected cache contract: string keys, string values, per-key
// TTL, delete by exact key.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-wide TTL cache backed by a sync.Map. Expired
// entries are dropped lazily on read.
type MemoryStore struct {
	entries sync.Map // key -> entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	v, ok := s.entries.Load(key)
	if !ok {
		return "", false
	}
	e := v.(entry)
	if time.Now().After(e.expiresAt) {
		s.entries.Delete(key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryStore) Set(key, value string, ttl time.Duration) {
	s.entries.Store(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

func (s *MemoryStore) Delete(key string) {
	s.entries.Delete(key)
}
