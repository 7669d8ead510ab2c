package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
)

// InventoryClient is the remote inventory.Store.
type InventoryClient struct{ c *resty.Client }

func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	return &InventoryClient{c: newResty(baseURL, timeout)}
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

func (ic *InventoryClient) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, inventory.ErrInvalidQuantity
	}
	resp, err := ic.post(ctx, productID, "reserve", qty)
	if err != nil {
		return false, unavailable("inventory service", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusConflict, http.StatusBadRequest:
		return false, nil
	case http.StatusNotFound:
		return false, fmt.Errorf("product %d: %w", productID, inventory.ErrUnknownProduct)
	}
	return false, unexpected("inventory service", resp)
}

func (ic *InventoryClient) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return inventory.ErrInvalidQuantity
	}
	resp, err := ic.post(ctx, productID, "release", qty)
	if err != nil {
		return unavailable("inventory service", err)
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("product %d: %w", productID, inventory.ErrUnknownProduct)
	}
	return unexpected("inventory service", resp)
}

func (ic *InventoryClient) post(ctx context.Context, productID int64, action string, qty int) (*resty.Response, error) {
	return ic.c.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": strconv.FormatInt(productID, 10), "action": action}).
		SetBody(quantityReq{Quantity: qty}).
		Post("/api/products/{id}/{action}/")
}
