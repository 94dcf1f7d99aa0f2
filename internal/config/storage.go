package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/shopcart/internal/kv"
)

// Stores are the opened cart and selection backends.
type Stores struct {
	// Cart is durable storage for the cart.
	Cart kv.Store

	// Selection is Cart with the selection TTL applied, when the driver
	// supports expiry.
	Selection kv.Store

	closer func() error
}

// Close releases the underlying connection or database.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open opens the configured storage driver.
func (s Storage) Open(ctx context.Context, logger *slog.Logger) (*Stores, error) {
	var (
		base   kv.Store
		closer func() error
	)

	switch s.Driver {
	case DriverMemory:
		base = kv.NewMemory()
	case DriverSQLite:
		db, err := kv.OpenSQLite(s.Path)
		if err != nil {
			return nil, err
		}
		base, closer = db, db.Close
		if n, err := db.PurgeExpired(ctx); err != nil {
			logger.Warn("purging expired entries failed", "error", err)
		} else if n > 0 {
			logger.Debug("purged expired entries", "count", n)
		}
	case DriverRedis:
		r, err := kv.NewRedis(s.RedisAddr, kv.WithPrefix(s.RedisPrefix))
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		base, closer = r, r.Close
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
	}

	logger.Debug("storage opened", "driver", s.Driver, "selection_ttl", s.SelectionTTL)
	return &Stores{
		Cart:      base,
		Selection: kv.WithTTL(base, s.SelectionTTL),
		closer:    closer,
	}, nil
}
