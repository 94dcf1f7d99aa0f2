package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a get/set/delete capability over string keys.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Expirer is implemented by stores that can attach a time-to-live to a value.
type Expirer interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// WithTTL returns a Store whose Set expires values after ttl.
// If s does not implement Expirer, or ttl <= 0, s is returned unchanged.
func WithTTL(s Store, ttl time.Duration) Store {
	exp, ok := s.(Expirer)
	if !ok || ttl <= 0 {
		return s
	}
	return &ttlStore{Store: s, exp: exp, ttl: ttl}
}

type ttlStore struct {
	Store
	exp Expirer
	ttl time.Duration
}

func (t *ttlStore) Set(ctx context.Context, key string, value []byte) error {
	return t.exp.SetWithTTL(ctx, key, value, t.ttl)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	prefix string
}

func defaultOptions() options {
	return options{now: time.Now}
}

// WithClock overrides the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithPrefix namespaces every key. Used by Redis, where one server may be
// shared by several clients.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}
