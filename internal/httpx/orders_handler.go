package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/saga"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in saga.CreateOrderInput) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string, userID int64) (*orders.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]orders.Order, error)
	Statistics(ctx context.Context, userID int64) (orders.Stats, error)
	History(ctx context.Context, orderID string, userID int64) ([]orders.StatusChange, error)
}

type StatusTransitioner interface {
	Transition(ctx context.Context, orderID string, to orders.Status) (*orders.Order, error)
}

type OrderCache interface {
	Get(ctx context.Context, orderID string) (*orders.Order, bool, error)
	Put(ctx context.Context, o *orders.Order) error
	Invalidate(ctx context.Context, orderID string) error
}

type IdempotencyStore interface {
	Begin(ctx context.Context, userID int64, key string) (string, error)
	Complete(ctx context.Context, userID int64, key, orderID string) error
	Abort(ctx context.Context, userID int64, key string) error
}

// OrdersHandler serves the order API. Routes expect Authenticate in front.
// Cache and Idem are optional.
type OrdersHandler struct {
	Orders OrderService
	Status StatusTransitioner
	Cache  OrderCache
	Idem   IdempotencyStore
	Log    *zap.Logger
}

type CreateOrderReq struct {
	ShippingAddress     string              `json:"shipping_address"`
	SpecialInstructions string              `json:"special_instructions"`
	CustomerInfo        orders.CustomerInfo `json:"customer_info"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

const HeaderIdempotencyKey = "Idempotency-Key"

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/statistics", h.statistics)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/history", h.history)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := errorResponse(err)
	if code >= http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, code, msg)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := r.Context()
	userID := p.identity.UserID

	// Fast-path idempotency via Redis (optional, ledger tetap jadi kebenaran)
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key != "" && h.Idem != nil {
		prev, err := h.Idem.Begin(ctx, userID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, http.StatusConflict, "a request with this idempotency key is still being processed")
			return
		case err != nil:
			h.Log.Warn("idempotency unavailable, continuing without", zap.Error(err))
			key = ""
		case prev != "":
			o, err := h.Orders.GetOrder(ctx, prev, userID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, viewOrder(o))
			return
		}
	} else {
		key = ""
	}

	recorded := false
	if key != "" {
		// lepas key kalau gagal (termasuk panic) supaya client bisa retry
		defer func() {
			if recorded {
				return
			}
			if err := h.Idem.Abort(context.WithoutCancel(ctx), userID, key); err != nil {
				h.Log.Warn("release idempotency key", zap.Error(err))
			}
		}()
	}

	o, err := h.Orders.CreateOrder(ctx, saga.CreateOrderInput{
		UserID:              userID,
		Credential:          p.credential,
		ShippingAddress:     req.ShippingAddress,
		SpecialInstructions: req.SpecialInstructions,
		Customer:            req.CustomerInfo,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if key != "" {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), userID, key, o.ID); err != nil {
			h.Log.Warn("record idempotency key", zap.String("order_id", o.ID), zap.Error(err))
		} else {
			recorded = true
		}
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	list, err := h.Orders.ListOrders(r.Context(), p.identity.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, viewOrder(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) statistics(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	st, err := h.Orders.Statistics(r.Context(), p.identity.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewStats(st))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	// 1) coba cache
	if h.Cache != nil {
		o, hit, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			h.Log.Debug("order cache read", zap.Error(err))
		}
		if hit && o.UserID == p.identity.UserID {
			writeJSON(w, http.StatusOK, viewOrder(o))
			return
		}
	}

	// 2) fallback ledger
	o, err := h.Orders.GetOrder(ctx, orderID, p.identity.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	hist, err := h.Orders.History(r.Context(), chi.URLParam(r, "id"), p.identity.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	// hanya pemilik order yang boleh ubah status
	if _, err := h.Orders.GetOrder(ctx, orderID, p.identity.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Status.Transition(ctx, orderID, to)
	if h.Cache != nil {
		if ierr := h.Cache.Invalidate(context.WithoutCancel(ctx), orderID); ierr != nil {
			h.Log.Warn("invalidate order cache", zap.String("order_id", orderID), zap.Error(ierr))
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *OrdersHandler) cachePut(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.Log.Debug("order cache write", zap.String("order_id", o.ID), zap.Error(err))
	}
}
