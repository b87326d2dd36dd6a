// Package cart keeps shopper carts keyed by session.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/forma/internal/pricing"
)

var (
	// ErrInvalidItem is returned when an item lacks an id or a usable price.
	ErrInvalidItem = errors.New("cart: invalid item")
	// ErrItemNotFound is returned when the cart item id is unknown.
	ErrItemNotFound = errors.New("cart: item not found")
)

// Item is one configured garment in the cart.
type Item struct {
	ID            string                `json:"cartItemId"`
	ProductID     string                `json:"id"`
	Configuration pricing.Configuration `json:"configuration"`
	Quantity      int                   `json:"quantity"`
	UnitPrice     float64               `json:"calculatedUnitPrice"`
	Breakdown     map[string]string     `json:"priceBreakdown,omitempty"`
	AddedAt       time.Time             `json:"addedAt"`
}

// LineTotal is the unit price times quantity.
func (i Item) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Cart is the list of items of one session.
type Cart struct {
	SessionID string `json:"sessionId"`
	Items     []Item `json:"items"`
}

// TotalQuantity sums item quantities.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums line totals.
func (c Cart) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// Store persists carts in a Backend with a sliding TTL.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

// NewStore returns a cart store. Every write refreshes the cart's TTL.
func NewStore(backend Backend, ttl time.Duration) *Store {
	return &Store{backend: backend, ttl: ttl, now: time.Now}
}

func key(sessionID string) string {
	return "cart:" + sessionID
}

// Get returns the cart of a session; an unknown session has an empty cart.
func (s *Store) Get(ctx context.Context, sessionID string) (Cart, error) {
	data, err := s.backend.Get(ctx, key(sessionID))
	if errors.Is(err, ErrMiss) {
		return emptyCart(sessionID), nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}

	c, ok := decode(sessionID, data)
	if !ok {
		// A corrupt cart is dropped rather than blocking the shopper.
		_ = s.backend.Del(ctx, key(sessionID))
	}
	return c, nil
}

func emptyCart(sessionID string) Cart {
	return Cart{SessionID: sessionID, Items: []Item{}}
}

// decode reports false when data is not a cart; the result is then empty.
func decode(sessionID string, data []byte) (Cart, bool) {
	if data == nil {
		return emptyCart(sessionID), true
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return emptyCart(sessionID), false
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.SessionID = sessionID
	return c, true
}

// update applies fn to the session's cart atomically and stores the result.
// Nothing is written when fn fails.
func (s *Store) update(ctx context.Context, sessionID string, fn func(c *Cart) error) error {
	return s.backend.Update(ctx, key(sessionID), s.ttl, func(data []byte) ([]byte, error) {
		c, _ := decode(sessionID, data)
		if err := fn(&c); err != nil {
			return nil, err
		}
		out, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal cart: %w", err)
		}
		return out, nil
	})
}

// Add appends an item under a new cart item id and returns it as stored.
// The same product may be added several times.
func (s *Store) Add(ctx context.Context, sessionID string, item Item) (Item, error) {
	if item.ProductID == "" {
		return Item{}, fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if item.UnitPrice < 0 {
		return Item{}, fmt.Errorf("%w: unit price %.2f", ErrInvalidItem, item.UnitPrice)
	}

	item.ID = "cartItem_" + uuid.NewString()
	item.Quantity = max(1, item.Quantity)
	item.AddedAt = s.now().UTC()

	err := s.update(ctx, sessionID, func(c *Cart) error {
		c.Items = append(c.Items, item)
		return nil
	})
	if err != nil {
		return Item{}, fmt.Errorf("add cart item: %w", err)
	}
	return item, nil
}

// UpdateQuantity sets the quantity of an item, never below one.
func (s *Store) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) (Item, error) {
	var updated Item
	err := s.update(ctx, sessionID, func(c *Cart) error {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				c.Items[i].Quantity = max(1, quantity)
				updated = c.Items[i]
				return nil
			}
		}
		return ErrItemNotFound
	})
	if err != nil {
		return Item{}, fmt.Errorf("update cart item: %w", err)
	}
	return updated, nil
}

// Remove deletes an item from the cart.
func (s *Store) Remove(ctx context.Context, sessionID, itemID string) error {
	err := s.update(ctx, sessionID, func(c *Cart) error {
		kept := c.Items[:0]
		for _, item := range c.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(c.Items) {
			return ErrItemNotFound
		}
		c.Items = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.backend.Del(ctx, key(sessionID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
