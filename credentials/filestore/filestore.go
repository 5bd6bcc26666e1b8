// Package filestore keeps credential entries as individual files in a private
// directory. Each file is replaced atomically.
package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-cooking-client/credentials"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

var _ credentials.KV = (*KV)(nil)

// KV stores one file per key under Dir.
type KV struct {
	Dir string
}

// New creates the directory if needed.
func New(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrapf(err, "[filestore.New] create %s", dir)
	}
	return &KV{Dir: dir}, nil
}

// NewStore returns a credential store backed by files in dir.
func NewStore(dir string, options ...credentials.KVStoreOption) (*credentials.KVStore, error) {
	kv, err := New(dir)
	if err != nil {
		return nil, err
	}
	return credentials.NewKVStore(kv, options...), nil
}

func (kv *KV) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", errors.Errorf("[filestore.KV] invalid key %q", key)
	}
	return filepath.Join(kv.Dir, key), nil
}

func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := kv.path(key)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", credentials.ErrKeyNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "[filestore.KV.Get] read %s", key)
	}
	return string(b), nil
}

func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := kv.path(key)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(p, strings.NewReader(value)); err != nil {
		return errors.Wrapf(err, "[filestore.KV.Set] write %s", key)
	}
	if err := os.Chmod(p, filePerm); err != nil {
		return errors.Wrapf(err, "[filestore.KV.Set] chmod %s", key)
	}
	return nil
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := kv.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "[filestore.KV.Delete] remove %s", key)
	}
	return nil
}
