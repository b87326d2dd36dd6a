// Package checkout turns a session cart into a stored order.
package checkout

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/cart"
)

var (
	ErrEmptyCart       = errors.New("checkout: cart is empty")
	ErrDeliveryType    = errors.New("checkout: unknown delivery type")
	ErrDeliveryDetails = errors.New("checkout: delivery details incomplete")
	ErrOrderNotFound   = errors.New("checkout: order not found")
)

// DeliveryType is how the order reaches the customer.
type DeliveryType string

const (
	HomeDelivery DeliveryType = "home_delivery"
	StorePickup  DeliveryType = "store_pickup"
)

// Contact holds the customer details required by the delivery type.
// Address is only required for home delivery.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

// Request is a checkout submission.
type Request struct {
	DeliveryType DeliveryType `json:"deliveryType"`
	Contact      Contact      `json:"contact"`
}

func (r Request) validate() error {
	switch r.DeliveryType {
	case HomeDelivery:
		if strings.TrimSpace(r.Contact.Address) == "" {
			return fmt.Errorf("%w: address is required for home delivery", ErrDeliveryDetails)
		}
	case StorePickup:
	default:
		return fmt.Errorf("%w: %q", ErrDeliveryType, r.DeliveryType)
	}
	if strings.TrimSpace(r.Contact.Name) == "" || strings.TrimSpace(r.Contact.Phone) == "" {
		return fmt.Errorf("%w: name and phone are required", ErrDeliveryDetails)
	}
	return nil
}

// Order is a placed order with its item snapshots.
type Order struct {
	ID             string       `db:"id" json:"orderId"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	DeliveryType   DeliveryType `db:"delivery_type" json:"deliveryType"`
	ContactName    string       `db:"contact_name" json:"contactName"`
	ContactPhone   string       `db:"contact_phone" json:"contactPhone"`
	Address        string       `db:"address" json:"address,omitempty"`
	Subtotal       float64      `db:"subtotal" json:"orderSubtotal"`
	DeliveryCharge float64      `db:"delivery_charge" json:"deliveryCharge"`
	Total          float64      `db:"total" json:"orderTotal"`
	Status         string       `db:"status" json:"status"`
	SessionID      string       `db:"session_id" json:"-"`
	Items          []OrderItem  `db:"-" json:"items"`
}

// PlacedBy reports whether the order was placed from the given cart session.
func (o Order) PlacedBy(sessionID string) bool {
	if o.SessionID == "" || sessionID == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.SessionID), []byte(sessionID)) == 1
}

// Quantity sums item quantities.
func (o Order) Quantity() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// OrderItem is the frozen state of one cart item at checkout.
type OrderItem struct {
	OrderID           string  `db:"order_id" json:"-"`
	CartItemID        string  `db:"cart_item_id" json:"cartItemId"`
	Size              string  `db:"size" json:"size"`
	MaterialKey       string  `db:"material_key" json:"thickness"`
	Quantity          int     `db:"quantity" json:"quantity"`
	UnitPrice         float64 `db:"unit_price" json:"unitPrice"`
	ConfigurationJSON string  `db:"configuration_json" json:"-"`
	BreakdownJSON     string  `db:"breakdown_json" json:"-"`
}

// Breakdown decodes the stored display breakdown.
func (i OrderItem) Breakdown() map[string]string {
	var b map[string]string
	if err := json.Unmarshal([]byte(i.BreakdownJSON), &b); err != nil {
		return map[string]string{}
	}
	return b
}

// Carts is the cart storage checkout reads from and clears.
type Carts interface {
	Get(ctx context.Context, sessionID string) (cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

// Notifier is told about every placed order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order Order) error
}

// Service places and reads orders.
type Service struct {
	db          *sqlx.DB
	carts       Carts
	notifier    Notifier
	deliveryFee float64
	log         *zap.Logger
	now         func() time.Time
}

// NewService returns a checkout service. notifier may be nil.
func NewService(db *sqlx.DB, carts Carts, notifier Notifier, homeDeliveryFee float64, log *zap.Logger) *Service {
	return &Service{
		db:          db,
		carts:       carts,
		notifier:    notifier,
		deliveryFee: homeDeliveryFee,
		log:         log,
		now:         time.Now,
	}
}

// Totals computes subtotal, delivery charge and grand total for a cart.
func Totals(c cart.Cart, deliveryType DeliveryType, homeDeliveryFee float64) (subtotal, charge, total float64) {
	subtotal = c.Subtotal()
	if deliveryType == HomeDelivery {
		charge = homeDeliveryFee
	}
	return round2(subtotal), round2(charge), round2(subtotal + charge)
}

// PlaceOrder stores the session's cart as an order, clears the cart and
// notifies staff. A failed notification does not fail the order.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, req Request) (Order, error) {
	if err := req.validate(); err != nil {
		return Order{}, err
	}

	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return Order{}, fmt.Errorf("load cart: %w", err)
	}
	if len(c.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	subtotal, charge, total := Totals(c, req.DeliveryType, s.deliveryFee)
	order := Order{
		ID:             "FRM-" + strings.ToUpper(uuid.NewString()[:8]),
		CreatedAt:      s.now().UTC(),
		DeliveryType:   req.DeliveryType,
		ContactName:    strings.TrimSpace(req.Contact.Name),
		ContactPhone:   strings.TrimSpace(req.Contact.Phone),
		Subtotal:       subtotal,
		DeliveryCharge: charge,
		Total:          total,
		Status:         "placed",
		SessionID:      sessionID,
	}
	if req.DeliveryType == HomeDelivery {
		order.Address = strings.TrimSpace(req.Contact.Address)
	}

	for _, item := range c.Items {
		oi, err := snapshot(order.ID, item)
		if err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, oi)
	}

	if err := s.save(ctx, order); err != nil {
		return Order{}, err
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.log.Warn("failed to clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Float64("total", order.Total))

	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, order); err != nil {
			s.log.Warn("order notification failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return order, nil
}

func snapshot(orderID string, item cart.Item) (OrderItem, error) {
	cfgJSON, err := json.Marshal(item.Configuration)
	if err != nil {
		return OrderItem{}, fmt.Errorf("marshal configuration of %s: %w", item.ID, err)
	}
	breakdown := item.Breakdown
	if breakdown == nil {
		breakdown = map[string]string{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return OrderItem{}, fmt.Errorf("marshal breakdown of %s: %w", item.ID, err)
	}

	return OrderItem{
		OrderID:           orderID,
		CartItemID:        item.ID,
		Size:              string(item.Configuration.Size),
		MaterialKey:       item.Configuration.MaterialKey,
		Quantity:          max(1, item.Quantity),
		UnitPrice:         item.UnitPrice,
		ConfigurationJSON: string(cfgJSON),
		BreakdownJSON:     string(breakdownJSON),
	}, nil
}

func (s *Service) save(ctx context.Context, order Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO orders (
			id, created_at, delivery_type, contact_name, contact_phone, address,
			subtotal, delivery_charge, total, status, session_id
		) VALUES (
			:id, :created_at, :delivery_type, :contact_name, :contact_phone, :address,
			:subtotal, :delivery_charge, :total, :status, :session_id
		)
	`, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_items (
				order_id, cart_item_id, size, material_key, quantity, unit_price,
				configuration_json, breakdown_json
			) VALUES (
				:order_id, :cart_item_id, :size, :material_key, :quantity, :unit_price,
				:configuration_json, :breakdown_json
			)
		`, item); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// Order reads one order with its items.
func (s *Service) Order(ctx context.Context, id string) (Order, error) {
	var order Order
	err := s.db.GetContext(ctx, &order, `
		SELECT id, created_at, delivery_type, contact_name, contact_phone, address,
			subtotal, delivery_charge, total, status, session_id
		FROM orders
		WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("query order %s: %w", id, err)
	}

	if err := s.db.SelectContext(ctx, &order.Items, `
		SELECT order_id, cart_item_id, size, material_key, quantity, unit_price,
			configuration_json, breakdown_json
		FROM order_items
		WHERE order_id = ?
		ORDER BY id
	`, id); err != nil {
		return Order{}, fmt.Errorf("query order items %s: %w", id, err)
	}
	return order, nil
}

// ListOrders returns the most recent orders first, without items.
func (s *Service) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	orders := make([]Order, 0)
	if err := s.db.SelectContext(ctx, &orders, `
		SELECT id, created_at, delivery_type, contact_name, contact_phone, address,
			subtotal, delivery_charge, total, status
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return orders, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
