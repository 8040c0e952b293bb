package barcache

import (
	"context"
	"sync"
	"time"
)

// fakeRedis is a minimal in-memory stand-in for Redis, used so the stampede
// tests exercise the real locking protocol without a live server. No
// miniredis-style dependency exists in the retrieved example pack, and this
// subset of commands is small enough to fake directly (see DESIGN.md).
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, expires: map[string]time.Time{}}
}

func (f *fakeRedis) expiredLocked(key string) bool {
	exp, ok := f.expires[key]
	return ok && time.Now().After(exp)
}

func (f *fakeRedis) purgeLocked(key string) {
	if f.expiredLocked(key) {
		delete(f.values, key)
		delete(f.expires, key)
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeLocked(key)
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeRedis) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeLocked(key)
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	f.expires[key] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeRedis) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.expires[key] = time.Now().Add(ttl)
	return nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	f.expires[key] = time.Now().Add(ttl)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
		delete(f.expires, k)
	}
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeLocked(key)
	_, ok := f.values[key]
	return ok, nil
}
