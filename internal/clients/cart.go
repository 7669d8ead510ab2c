package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type CartClient struct{ c *resty.Client }

func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	return &CartClient{c: newResty(baseURL, timeout)}
}

// GetCart reads the caller's cart. The cart service scopes the cart by the
// bearer credential. A missing cart reads as an empty one.
func (cc *CartClient) GetCart(ctx context.Context, userID int64, credential string) (orders.Cart, error) {
	var cart orders.Cart
	resp, err := cc.c.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetResult(&cart).
		Get("/api/cart/")
	service := fmt.Sprintf("cart service (user %d)", userID)
	if err != nil {
		return orders.Cart{}, unavailable(service, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return orders.Cart{}, nil
	case resp.IsSuccess():
		return cart, nil
	}
	return orders.Cart{}, unexpected(service, resp)
}
