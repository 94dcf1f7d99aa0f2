package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/shopcart/internal/kv"
	"github.com/roach88/shopcart/internal/shop"
)

// DefaultSelectionKey is the storage key for the checkout selection.
const DefaultSelectionKey = "checkout_selection"

// Selection is the set of product ids chosen for the next checkout pass.
// It lives in its own, usually shorter-lived, store (see kv.WithTTL) and is
// independent of the cart: selecting an id does not require it to be in
// the cart, and ids not in the cart are ignored at checkout.
type Selection struct {
	kv     kv.Store
	key    string
	logger *slog.Logger
}

// SelectionOption configures a Selection.
type SelectionOption func(*Selection)

// WithSelectionKey overrides the storage key.
func WithSelectionKey(key string) SelectionOption {
	return func(s *Selection) {
		s.key = key
	}
}

// WithSelectionLogger sets the logger. Defaults to slog.Default().
func WithSelectionLogger(l *slog.Logger) SelectionOption {
	return func(s *Selection) {
		s.logger = l
	}
}

// NewSelection creates a selection persisted in store.
func NewSelection(store kv.Store, opts ...SelectionOption) *Selection {
	s := &Selection{
		kv:     store,
		key:    DefaultSelectionKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IDs returns the selected ids. Absent or unparseable data reads as an
// empty selection.
func (s *Selection) IDs(ctx context.Context) []shop.ID {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []shop.ID{}
	}
	if err != nil {
		s.logger.Warn("selection read failed", "key", s.key, "error", err)
		return []shop.ID{}
	}

	var ids []shop.ID
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.logger.Warn("discarding corrupted selection", "key", s.key, "error", err)
		return []shop.ID{}
	}

	out := make([]shop.ID, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() && !shop.ContainsID(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Set replaces the selection. Duplicates and empty ids are dropped.
func (s *Selection) Set(ctx context.Context, ids []shop.ID) error {
	unique := make([]shop.ID, 0, len(ids))
	for _, id := range ids {
		id = shop.NewID(id.String())
		if !id.IsZero() && !shop.ContainsID(unique, id) {
			unique = append(unique, id)
		}
	}

	data, err := json.Marshal(unique)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

// Clear removes the selection.
func (s *Selection) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Contains reports whether id is currently selected.
func (s *Selection) Contains(ctx context.Context, id shop.ID) bool {
	return shop.ContainsID(s.IDs(ctx), shop.NewID(id.String()))
}
