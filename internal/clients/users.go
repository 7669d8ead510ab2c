package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type UserClient struct{ c *resty.Client }

func NewUserClient(baseURL string, timeout time.Duration) *UserClient {
	return &UserClient{c: newResty(baseURL, timeout)}
}

func (uc *UserClient) Resolve(ctx context.Context, credential string) (orders.Identity, error) {
	if credential == "" {
		return orders.Identity{}, fmt.Errorf("user service: %w: missing credential", orders.ErrUnauthenticated)
	}
	var id orders.Identity
	resp, err := uc.c.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetResult(&id).
		Get("/api/users/profile/")
	if err != nil {
		return orders.Identity{}, unavailable("user service", err)
	}
	if !resp.IsSuccess() {
		return orders.Identity{}, unexpected("user service", resp)
	}
	if id.UserID == 0 {
		return orders.Identity{}, fmt.Errorf("user service: %w: profile without id", orders.ErrUnauthenticated)
	}
	return id, nil
}
