// Package cart keeps the persisted minimal cart and reconciles it against
// live catalog data.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storage"
)

// DefaultKey is the storage key the cart lives under.
const DefaultKey = "cart"

// Line references a design and a chosen size, never a variant id. An empty
// SizeName marks a line written before sizes were recorded.
type Line struct {
	DesignID string `json:"designId"`
	SizeName string `json:"sizeName,omitempty"`
	Quantity int    `json:"quantity"`
}

// Cart is the persisted cart. Totals are never stored.
type Cart struct {
	Lines []Line `json:"lines"`
}

func (c Cart) index(designID, sizeName string) int {
	for i, line := range c.Lines {
		if line.DesignID == designID && line.SizeName == sizeName {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	return Cart{Lines: append([]Line{}, c.Lines...)}
}

// Fingerprint identifies the cart contents.
func (c Cart) Fingerprint() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// Store is safe for concurrent use within a process. Other processes sharing
// the same storage are noticed by the Watcher, not locked out.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	key     string
	logg    *logger.Logger

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// NewStore builds a store persisting under key (DefaultKey when empty).
func NewStore(st storage.Storage, key string, logg *logger.Logger) (*Store, error) {
	if st == nil {
		return nil, errors.New("cart storage required")
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		storage: st,
		key:     key,
		logg:    logg,
		subs:    map[chan struct{}]struct{}{},
	}, nil
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Storage returns the backing storage.
func (s *Store) Storage() storage.Storage { return s.storage }

// Get returns the persisted cart. Missing or malformed data yields an empty
// cart, and so does a failed read, which is logged.
func (s *Store) Get(ctx context.Context) Cart {
	c, err := s.Load(ctx)
	if err != nil {
		s.logg.Error(s.logg.WithStorageKey(ctx, s.key), "read cart; using empty cart", err)
		return Cart{Lines: []Line{}}
	}
	return c
}

// Load is Get without the fallback for read failures: a storage error is
// returned as DEPENDENCY_ERROR. Missing or malformed data still yields an
// empty cart.
func (s *Store) Load(ctx context.Context) (Cart, error) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return Cart{Lines: []Line{}}, nil
	}
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		s.logg.Warn(s.logg.WithStorageKey(ctx, s.key), "persisted cart is not valid json; using empty cart")
		return Cart{Lines: []Line{}}, nil
	}
	return sanitize(c), nil
}

// sanitize drops invalid lines and folds duplicates written by other writers.
func sanitize(c Cart) Cart {
	out := Cart{Lines: make([]Line, 0, len(c.Lines))}
	for _, line := range c.Lines {
		line.DesignID = strings.TrimSpace(line.DesignID)
		line.SizeName = strings.TrimSpace(line.SizeName)
		if line.DesignID == "" || line.Quantity < 1 {
			continue
		}
		if i := out.index(line.DesignID, line.SizeName); i >= 0 {
			out.Lines[i].Quantity += line.Quantity
			continue
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// Add merges quantity into the (designID, sizeName) line or appends a new
// one. A zero quantity adds one; a negative quantity decrements, and a line
// reaching zero is removed.
func (s *Store) Add(ctx context.Context, designID, sizeName string, quantity int) (Cart, error) {
	if quantity == 0 {
		quantity = 1
	}
	return s.mutate(ctx, designID, func(c *Cart, designID string) {
		sizeName = strings.TrimSpace(sizeName)
		if i := c.index(designID, sizeName); i >= 0 {
			c.Lines[i].Quantity += quantity
			if c.Lines[i].Quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			}
			return
		}
		if quantity > 0 {
			c.Lines = append(c.Lines, Line{DesignID: designID, SizeName: sizeName, Quantity: quantity})
		}
	})
}

// SetQuantity replaces the line's quantity, adding the line if needed.
// quantity <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, designID, sizeName string, quantity int) (Cart, error) {
	return s.mutate(ctx, designID, func(c *Cart, designID string) {
		sizeName = strings.TrimSpace(sizeName)
		i := c.index(designID, sizeName)
		switch {
		case quantity <= 0 && i >= 0:
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		case quantity <= 0:
		case i >= 0:
			c.Lines[i].Quantity = quantity
		default:
			c.Lines = append(c.Lines, Line{DesignID: designID, SizeName: sizeName, Quantity: quantity})
		}
	})
}

// Remove deletes every line of the design.
func (s *Store) Remove(ctx context.Context, designID string) (Cart, error) {
	return s.mutate(ctx, designID, func(c *Cart, designID string) {
		kept := c.Lines[:0]
		for _, line := range c.Lines {
			if line.DesignID != designID {
				kept = append(kept, line)
			}
		}
		c.Lines = kept
	})
}

// RemoveLine deletes the single (designID, sizeName) line.
func (s *Store) RemoveLine(ctx context.Context, designID, sizeName string) (Cart, error) {
	return s.SetQuantity(ctx, designID, sizeName, 0)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, Cart{Lines: []Line{}}); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) mutate(ctx context.Context, designID string, fn func(c *Cart, designID string)) (Cart, error) {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "design id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Load(ctx)
	if err != nil {
		return Cart{}, err
	}
	c := current.clone()
	fn(&c, designID)
	if err := s.persist(ctx, c); err != nil {
		return Cart{}, err
	}
	s.notify()
	return c, nil
}

func (s *Store) persist(ctx context.Context, c Cart) error {
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

// Subscribe returns a channel signalled after every mutation made through
// this store, and a function that ends the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
