package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/shopcart/internal/kv"
	"github.com/roach88/shopcart/internal/shop"
)

// DefaultKey is the storage key shared with the web client.
const DefaultKey = "shop_demo_cart_v1"

// Observer is notified after every successful mutation with the cart as
// persisted. Observers run synchronously, in registration order.
type Observer func(Cart)

// Store is the persisted cart.
//
// Thread-safety: mutations are serialized within one Store. Two Stores (or
// two processes) over the same key race with last-write-wins.
type Store struct {
	kv     kv.Store
	key    string
	logger *slog.Logger

	mu sync.Mutex // serializes read-modify-write

	obsMu     sync.Mutex
	observers []subscription
	nextSubID int
}

type subscription struct {
	id int
	fn Observer
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) StoreOption {
	return func(s *Store) {
		s.key = key
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a cart persisted in store.
func NewStore(store kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:     store,
		key:    DefaultKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Get returns the persisted cart. Absent, unreadable or corrupted storage
// reads as an empty cart; the cause is logged.
func (s *Store) Get(ctx context.Context) Cart {
	c, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("cart read failed, using empty cart", "key", s.key, "error", err)
		return Cart{}
	}
	return c
}

// TotalQuantity returns the number of units in the cart.
func (s *Store) TotalQuantity(ctx context.Context) int {
	return s.Get(ctx).TotalQuantity()
}

// TotalPrice returns the cart value in minor units.
func (s *Store) TotalPrice(ctx context.Context) shop.Money {
	return s.Get(ctx).TotalPrice()
}

// Add puts item in the cart, merging with an existing line for the same
// product. Returns false without touching storage if the item has no product
// id or clamps to zero units.
//
// A missing quantity counts as one unit. When merging, the quantity becomes
// min(existing+incoming, stock), where stock is the incoming item's if it
// carries one and the existing line's otherwise.
func (s *Store) Add(ctx context.Context, item LineItem) (bool, error) {
	item.ProductID = shop.NewID(item.ProductID.String())
	if item.ProductID.IsZero() {
		return false, nil
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	c, err := s.loadForUpdate(ctx)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}

	if i := c.Index(item.ProductID); i >= 0 {
		line := c[i]
		if item.Stock != nil {
			line.Stock = Stock(*item.Stock)
		}
		if item.ProductName != "" {
			line.ProductName = item.ProductName
		}
		if item.UnitPrice != 0 {
			line.UnitPrice = item.UnitPrice
		}
		line.Quantity = clamp(line.Quantity+item.Quantity, line.Stock)
		if line.Quantity == 0 {
			c = append(c[:i:i], c[i+1:]...)
		} else {
			c[i] = line
		}
	} else {
		item.Quantity = clamp(item.Quantity, item.Stock)
		if item.Quantity == 0 {
			s.mu.Unlock()
			return false, nil
		}
		if item.Stock != nil {
			item.Stock = Stock(*item.Stock)
		}
		c = append(c, item)
	}

	if err := s.save(ctx, c); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.notify(c)
	return true, nil
}

// UpdateQuantity sets the quantity of an existing line, clamped to
// [0, stock]. A result of zero removes the line. Unknown ids are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, id shop.ID, qty int) error {
	s.mu.Lock()
	c, err := s.loadForUpdate(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	i := c.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}

	c[i].Quantity = clamp(qty, c[i].Stock)
	if c[i].Quantity == 0 {
		c = append(c[:i:i], c[i+1:]...)
	}

	if err := s.save(ctx, c); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// Remove deletes the line for id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id shop.ID) error {
	_, err := s.RemoveMany(ctx, []shop.ID{id})
	return err
}

// RemoveMany deletes every line whose id is in ids with a single write and
// a single notification. Returns the number of lines removed.
func (s *Store) RemoveMany(ctx context.Context, ids []shop.ID) (int, error) {
	s.mu.Lock()
	c, err := s.loadForUpdate(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	kept := make(Cart, 0, len(c))
	for _, li := range c {
		if !shop.ContainsID(ids, li.ProductID) {
			kept = append(kept, li)
		}
	}
	removed := len(c) - len(kept)
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}

	if err := s.save(ctx, kept); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	s.notify(kept)
	return removed, nil
}

// Clear deletes the persisted cart and notifies observers.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear cart: %w", err)
	}
	s.mu.Unlock()

	s.notify(Cart{})
	return nil
}

// load reads the cart. Absent data is an empty cart; corrupted data is an
// error of type *CorruptError.
func (s *Store) load(ctx context.Context) (Cart, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, &CorruptError{Key: s.key, Err: err}
	}
	return sanitize(c), nil
}

// loadForUpdate is load for mutations: corrupted data is replaced by an
// empty cart, but storage I/O failures abort the mutation so a transient
// read error cannot wipe the cart.
func (s *Store) loadForUpdate(ctx context.Context) (Cart, error) {
	c, err := s.load(ctx)
	var corrupt *CorruptError
	if errors.As(err, &corrupt) {
		s.logger.Warn("discarding corrupted cart", "key", s.key, "error", corrupt.Err)
		return Cart{}, nil
	}
	return c, err
}

func (s *Store) save(ctx context.Context, c Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}

func (s *Store) notify(c Cart) {
	s.obsMu.Lock()
	subs := make([]subscription, len(s.observers))
	copy(subs, s.observers)
	s.obsMu.Unlock()

	for _, sub := range subs {
		sub.fn(c.clone())
	}
}

// sanitize drops lines that violate the cart invariants: empty ids,
// non-positive quantities and duplicate ids (first occurrence wins).
func sanitize(c Cart) Cart {
	out := make(Cart, 0, len(c))
	for _, li := range c {
		if li.ProductID.IsZero() || li.Quantity <= 0 {
			continue
		}
		if out.Index(li.ProductID) >= 0 {
			continue
		}
		out = append(out, li)
	}
	return out
}

// CorruptError reports persisted data that could not be decoded.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupted data under %q: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
