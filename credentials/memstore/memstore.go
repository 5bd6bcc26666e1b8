// Package memstore keeps credentials in process memory only. A restart always
// starts signed out.
package memstore

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-cooking-client/credentials"
)

// InMemoryKV is an in-memory implementation of credentials.KV
type InMemoryKV struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ credentials.KV = (*InMemoryKV)(nil)

// NewInMemoryKV creates an empty key-value store
func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{entries: make(map[string]string)}
}

// NewStore wraps a fresh InMemoryKV in a credentials.KVStore.
func NewStore(options ...credentials.KVStoreOption) *credentials.KVStore {
	return credentials.NewKVStore(NewInMemoryKV(), options...)
}

func (kv *InMemoryKV) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	v, found := kv.entries[key]
	if !found {
		return "", errors.Wrapf(credentials.ErrKeyNotFound, "%q", key)
	}
	return v, nil
}

func (kv *InMemoryKV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("key is required")
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.entries[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *InMemoryKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.entries, key)
	return nil
}

// Len reports the number of stored entries.
func (kv *InMemoryKV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.entries)
}
