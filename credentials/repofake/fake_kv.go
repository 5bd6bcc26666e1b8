package repofake

import (
	"context"
	"maps"
	"sync"

	"github.com/jrsteele09/go-cooking-client/credentials"
)

var _ credentials.KV = (*FakeKV)(nil)

// Write records one mutating call made against a FakeKV.
type Write struct {
	Op    string // "set" or "delete"
	Key   string
	Value string
}

// FakeKV is an in-memory KV with failure injection.
type FakeKV struct {
	lock     sync.RWMutex
	entries  map[string]string
	writes   []Write
	failures map[string][]error // op+":"+key -> queued errors
	gets     int
}

func NewFakeKV() *FakeKV {
	return &FakeKV{
		entries:  make(map[string]string),
		failures: make(map[string][]error),
	}
}

// NewFakeStore returns a KVStore over a fresh FakeKV without retry delays.
func NewFakeStore(options ...credentials.KVStoreOption) (*credentials.KVStore, *FakeKV) {
	kv := NewFakeKV()
	options = append([]credentials.KVStoreOption{credentials.WithMaxRetries(0)}, options...)
	return credentials.NewKVStore(kv, options...), kv
}

// FailNext queues err to be returned by the next op ("get", "set" or
// "delete") against key. Queued errors are consumed in order.
func (f *FakeKV) FailNext(op, key string, errs ...error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.failures[op+":"+key] = append(f.failures[op+":"+key], errs...)
}

func (f *FakeKV) takeFailure(op, key string) error {
	queued := f.failures[op+":"+key]
	if len(queued) == 0 {
		return nil
	}
	f.failures[op+":"+key] = queued[1:]
	return queued[0]
}

func (f *FakeKV) Get(_ context.Context, key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.gets++
	if err := f.takeFailure("get", key); err != nil {
		return "", err
	}
	v, ok := f.entries[key]
	if !ok {
		return "", credentials.ErrKeyNotFound
	}
	return v, nil
}

func (f *FakeKV) Set(_ context.Context, key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := f.takeFailure("set", key); err != nil {
		return err
	}
	f.entries[key] = value
	f.writes = append(f.writes, Write{Op: "set", Key: key, Value: value})
	return nil
}

func (f *FakeKV) Delete(_ context.Context, key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := f.takeFailure("delete", key); err != nil {
		return err
	}
	delete(f.entries, key)
	f.writes = append(f.writes, Write{Op: "delete", Key: key})
	return nil
}

// Put sets an entry directly without recording a write.
func (f *FakeKV) Put(key, value string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.entries[key] = value
}

// Writes returns the successful mutations in call order.
func (f *FakeKV) Writes() []Write {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]Write(nil), f.writes...)
}

// ResetWrites forgets recorded writes.
func (f *FakeKV) ResetWrites() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.writes = nil
}

// Snapshot copies the current entries.
func (f *FakeKV) Snapshot() map[string]string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return maps.Clone(f.entries)
}

func (f *FakeKV) Gets() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.gets
}
