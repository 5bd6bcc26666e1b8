package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// KV is a plain key/value backend without transactions.
type KV interface {
	// Get returns ErrKeyNotFound when key is not set.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete succeeds when key is already absent.
	Delete(ctx context.Context, key string) error
}

const (
	defaultMaxRetries    = 3
	defaultRetryInterval = 50 * time.Millisecond
)

// KVStore implements Store on top of a KV. Because the KV has no transactions,
// writes are ordered so that an interrupted write reloads as "absent": the
// expiry entry is removed first and written last, and Load requires it.
type KVStore struct {
	kv            KV
	mu            sync.Mutex // serializes writers
	maxRetries    uint64
	retryInterval time.Duration
	logger        zerolog.Logger
}

var _ Store = (*KVStore)(nil)

// KVStoreOption configures a KVStore.
type KVStoreOption func(*KVStore)

// WithMaxRetries sets how many times a single entry write is retried.
func WithMaxRetries(n uint64) KVStoreOption {
	return func(s *KVStore) {
		s.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff between write retries.
func WithRetryInterval(d time.Duration) KVStoreOption {
	return func(s *KVStore) {
		s.retryInterval = d
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger zerolog.Logger) KVStoreOption {
	return func(s *KVStore) {
		s.logger = logger
	}
}

// NewKVStore wraps kv as a credential Store.
func NewKVStore(kv KV, options ...KVStoreOption) *KVStore {
	s := &KVStore{
		kv:            kv,
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Load reads all four entries and decodes them as one record.
func (s *KVStore) Load(ctx context.Context) (*StoredCredentials, error) {
	entries := make(map[string]string, len(Keys))
	for _, key := range Keys {
		value, err := s.kv.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "entry %q missing", key)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "[KVStore.Load] get %s", key)
		}
		entries[key] = value
	}
	return Decode(entries)
}

// Save writes the record. The expiry entry goes last.
func (s *KVStore) Save(ctx context.Context, creds StoredCredentials) error {
	entries, err := Encode(creds)
	if err != nil {
		return errors.Wrap(err, "[KVStore.Save]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.delete(ctx, KeyExpiresTime); err != nil {
		return errors.Wrap(err, "[KVStore.Save] invalidate previous record")
	}
	for _, key := range Keys {
		if err := s.set(ctx, key, entries[key]); err != nil {
			return errors.Wrapf(err, "[KVStore.Save] set %s", key)
		}
	}
	return nil
}

// SaveTokens writes the token entries and removes the user entry first, so a
// reload before the following Save finds no complete record.
func (s *KVStore) SaveTokens(ctx context.Context, tokens TokenPair) error {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.ExpiresAt.IsZero() {
		return errors.Wrap(ErrInvalid, "[KVStore.SaveTokens] incomplete token pair")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{KeyExpiresTime, KeyUserInfo} {
		if err := s.delete(ctx, key); err != nil {
			return errors.Wrapf(err, "[KVStore.SaveTokens] delete %s", key)
		}
	}
	writes := []struct{ key, value string }{
		{KeyAccessToken, tokens.AccessToken},
		{KeyRefreshToken, tokens.RefreshToken},
		{KeyExpiresTime, FormatExpiry(tokens.ExpiresAt)},
	}
	for _, w := range writes {
		if err := s.set(ctx, w.key, w.value); err != nil {
			return errors.Wrapf(err, "[KVStore.SaveTokens] set %s", w.key)
		}
	}
	return nil
}

// Clear removes every entry, expiry first. All deletes are attempted even when
// one fails; the failures are returned together.
func (s *KVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error
	for i := len(Keys) - 1; i >= 0; i-- {
		if err := s.delete(ctx, Keys[i]); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "delete %s", Keys[i]))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "[KVStore.Clear]")
	}
	return nil
}

// AccessToken returns the stored access token or ErrNotFound.
func (s *KVStore) AccessToken(ctx context.Context) (string, error) {
	token, err := s.kv.Get(ctx, KeyAccessToken)
	if errors.Is(err, ErrKeyNotFound) || (err == nil && token == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[KVStore.AccessToken]")
	}
	return token, nil
}

func (s *KVStore) set(ctx context.Context, key, value string) error {
	return s.retry(ctx, "set", key, func() error {
		return s.kv.Set(ctx, key, value)
	})
}

func (s *KVStore) delete(ctx context.Context, key string) error {
	return s.retry(ctx, "delete", key, func() error {
		return s.kv.Delete(ctx, key)
	})
}

func (s *KVStore) retry(ctx context.Context, op, key string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	return backoff.RetryNotify(
		fn,
		backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx),
		func(err error, next time.Duration) {
			s.logger.Warn().Err(err).Str("op", op).Str("key", key).Dur("next", next).Msg("credential store retrying")
		},
	)
}
