package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/cart"
	"github.com/Simplici0/forma/internal/catalog"
	"github.com/Simplici0/forma/internal/checkout"
	"github.com/Simplici0/forma/internal/pricing"
)

const (
	cartCookieName = "forma_cart"
	maxJSONBody    = 1 << 20
)

type priceResponse struct {
	UnitPrice   float64           `json:"unitPrice"`
	Breakdown   map[string]string `json:"breakdown"`
	Errors      []string          `json:"errors"`
	BaseInvalid bool              `json:"baseInvalid,omitempty"`
}

func newPriceResponse(res pricing.Result) priceResponse {
	return priceResponse{
		UnitPrice:   res.UnitPrice,
		Breakdown:   res.Display(),
		Errors:      res.Errors,
		BaseInvalid: res.BaseInvalid,
	}
}

type catalogResponse struct {
	Materials []catalog.Material `json:"materials"`
	Sizes     []catalog.SizeArea `json:"sizes"`
	Designs   []catalog.Design   `json:"designs"`
}

type addItemRequest struct {
	ProductID     string                `json:"id"`
	Configuration pricing.Configuration `json:"configuration"`
	Quantity      int                   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items         []cart.Item `json:"items"`
	TotalQuantity int         `json:"totalQuantity"`
	Subtotal      float64     `json:"subtotal"`
}

func newCartResponse(c cart.Cart) cartResponse {
	return cartResponse{
		Items:         c.Items,
		TotalQuantity: c.TotalQuantity(),
		Subtotal:      c.Subtotal(),
	}
}

type addItemResponse struct {
	Item   cart.Item    `json:"item"`
	Errors []string     `json:"errors"`
	Cart   cartResponse `json:"cart"`
}

type checkoutResponse struct {
	Success bool           `json:"success"`
	Order   checkout.Order `json:"order"`
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var cfg pricing.Configuration
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid configuration JSON")
		return
	}

	res, err := s.price(r.Context(), &cfg)
	if err != nil {
		s.internalError(w, "failed to price configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, newPriceResponse(res))
}

// price calculates a configuration against the current catalog rates. cfg
// is left holding the catalog design prices it was priced with.
func (s *server) price(ctx context.Context, cfg *pricing.Configuration) (pricing.Result, error) {
	rates, err := s.catalog.Rates(ctx)
	if err != nil {
		return pricing.Result{}, err
	}
	if err := s.applyDesignPrices(ctx, cfg); err != nil {
		return pricing.Result{}, err
	}
	return pricing.Calculate(*cfg, rates), nil
}

// applyDesignPrices replaces element prices sent by the client with catalog
// prices. Unknown or inactive designs get no price, so the library access
// rate applies.
func (s *server) applyDesignPrices(ctx context.Context, cfg *pricing.Configuration) error {
	for _, side := range []**pricing.Customization{&cfg.Front, &cfg.Back} {
		if *side == nil || len((*side).Elements) == 0 {
			continue
		}
		cust := **side
		cust.Elements = make([]pricing.Element, len((*side).Elements))
		for i, el := range (*side).Elements {
			el.Price = nil
			d, err := s.catalog.Design(ctx, el.DesignID)
			switch {
			case errors.Is(err, catalog.ErrNotFound):
			case err != nil:
				return fmt.Errorf("look up design %q: %w", el.DesignID, err)
			case d.Active:
				price := d.Price
				el.Price = &price
			}
			cust.Elements[i] = el
		}
		*side = &cust
	}
	return nil
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	materials, err := s.catalog.ListMaterials(ctx)
	if err != nil {
		s.internalError(w, "failed to load materials", err)
		return
	}
	active := make([]catalog.Material, 0, len(materials))
	for _, m := range materials {
		if m.Active {
			active = append(active, m)
		}
	}

	sizes, err := s.catalog.ListSizes(ctx)
	if err != nil {
		s.internalError(w, "failed to load sizes", err)
		return
	}

	designs, err := s.catalog.ListDesigns(ctx, strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		s.internalError(w, "failed to load designs", err)
		return
	}

	writeJSON(w, http.StatusOK, catalogResponse{Materials: active, Sizes: sizes, Designs: designs})
}

func (s *server) handleCartGet(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w, r, s.cartSession(w, r))
}

func (s *server) writeCart(w http.ResponseWriter, r *http.Request, sessionID string) {
	c, err := s.carts.Get(r.Context(), sessionID)
	if err != nil {
		s.internalError(w, "failed to load cart", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

// handleCartAdd prices the configuration server-side and stores the item with
// that price. Client-supplied prices are never trusted.
func (s *server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid cart item JSON")
		return
	}

	res, err := s.price(r.Context(), &req.Configuration)
	if err != nil {
		s.internalError(w, "failed to price configuration", err)
		return
	}
	if !res.Priced() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": "configuration cannot be priced",
			"errors":  res.Errors,
		})
		return
	}

	sessionID := s.cartSession(w, r)
	item, err := s.carts.Add(r.Context(), sessionID, cart.Item{
		ProductID:     req.ProductID,
		Configuration: req.Configuration,
		Quantity:      req.Quantity,
		UnitPrice:     res.UnitPrice,
		Breakdown:     res.Display(),
	})
	if errors.Is(err, cart.ErrInvalidItem) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "failed to add cart item", err)
		return
	}

	c, err := s.carts.Get(r.Context(), sessionID)
	if err != nil {
		s.internalError(w, "failed to load cart", err)
		return
	}
	writeJSON(w, http.StatusCreated, addItemResponse{Item: item, Errors: res.Errors, Cart: newCartResponse(c)})
}

func (s *server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid quantity JSON")
		return
	}

	sessionID := s.cartSession(w, r)
	if _, err := s.carts.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "id"), req.Quantity); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeJSONError(w, http.StatusNotFound, "cart item not found")
			return
		}
		s.internalError(w, "failed to update cart item", err)
		return
	}
	s.writeCart(w, r, sessionID)
}

func (s *server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	sessionID := s.cartSession(w, r)
	if err := s.carts.Remove(r.Context(), sessionID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeJSONError(w, http.StatusNotFound, "cart item not found")
			return
		}
		s.internalError(w, "failed to remove cart item", err)
		return
	}
	s.writeCart(w, r, sessionID)
}

func (s *server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	if err := s.carts.Clear(r.Context(), s.cartSession(w, r)); err != nil {
		s.internalError(w, "failed to clear cart", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(cart.Cart{Items: []cart.Item{}}))
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid checkout JSON")
		return
	}

	order, err := s.checkout.PlaceOrder(r.Context(), s.cartSession(w, r), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, checkoutResponse{Success: true, Order: order})
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSONError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, checkout.ErrDeliveryType), errors.Is(err, checkout.ErrDeliveryDetails):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.internalError(w, "failed to place order", err)
	}
}

func (s *server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	order, err := s.checkout.Order(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, checkout.ErrOrderNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.internalError(w, "failed to load order", err)
		return
	}
	if !s.canViewOrder(r, order) {
		http.NotFound(w, r)
		return
	}

	currency := "INR"
	if addons, err := s.catalog.AddonRates(r.Context()); err == nil && addons.Currency != "" {
		currency = addons.Currency
	}

	var buf bytes.Buffer
	if err := s.receipts.WritePDF(&buf, order, currency); err != nil {
		s.internalError(w, "failed to render receipt", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+order.ID+`.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

// canViewOrder allows the cart session that placed the order and signed-in
// staff; anyone else gets a 404.
func (s *server) canViewOrder(r *http.Request, order checkout.Order) bool {
	if s.auth.isAuthenticated(r) {
		return true
	}
	cookie, err := r.Cookie(cartCookieName)
	return err == nil && order.PlacedBy(cookie.Value)
}

// cartSession returns the shopper's cart session id, issuing a new cookie when
// the request has none or carries a malformed one.
func (s *server) cartSession(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(cartCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, zap.Error(err))
	writeJSONError(w, http.StatusInternalServerError, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
