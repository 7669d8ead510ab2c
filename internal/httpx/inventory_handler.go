package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
)

type StockService interface {
	inventory.Store
	inventory.StockReader
}

// InventoryHandler exposes the reservation primitive to the order service.
type InventoryHandler struct {
	Stock StockService
	Log   *zap.Logger
}

type QuantityReq struct {
	Quantity *int `json:"quantity"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Post("/api/products/{id}/reserve/", h.reserve)
	r.Post("/api/products/{id}/release/", h.release)
	r.Get("/api/products/{id}/stock/", h.stock)
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// quantity defaults to 1 when the body or the field is absent.
func quantity(r *http.Request) (int, bool) {
	var req QuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return 0, false
	}
	if req.Quantity == nil {
		return 1, true
	}
	return *req.Quantity, *req.Quantity > 0
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	qty, ok := quantity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}
	ctx := r.Context()
	granted, err := h.Stock.Reserve(ctx, id, qty)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	if !granted {
		resp := map[string]any{"success": false, "message": "Insufficient stock"}
		h.withCount(ctx, resp, "available_stock", id)
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	resp := map[string]any{"success": true}
	h.withCount(ctx, resp, "remaining_stock", id)
	writeJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	qty, ok := quantity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}
	ctx := r.Context()
	if err := h.Stock.Release(ctx, id, qty); err != nil {
		h.storeError(w, id, err)
		return
	}
	resp := map[string]any{"success": true}
	h.withCount(ctx, resp, "current_stock", id)
	writeJSON(w, http.StatusOK, resp)
}

// withCount adds the current stock under field. The reserve or release has
// already been applied, so a failed read only drops the field.
func (h *InventoryHandler) withCount(ctx context.Context, resp map[string]any, field string, id int64) {
	n, err := h.Stock.Available(ctx, id)
	if err != nil {
		h.Log.Warn("read stock after update", zap.Int64("product_id", id), zap.Error(err))
		return
	}
	resp[field] = n
}

func (h *InventoryHandler) stock(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	n, err := h.Stock.Available(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "available_quantity": n})
}

func (h *InventoryHandler) storeError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, inventory.ErrUnknownProduct):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Product not found"})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error("stock operation failed", zap.Int64("product_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stock temporarily unavailable")
	}
}
