// Package clients talks to the cart, user and inventory services over HTTP.
package clients

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

func newResty(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// unavailable wraps transport failures, timeouts included.
func unavailable(service string, err error) error {
	return fmt.Errorf("%s: %w: %w", service, orders.ErrDependencyUnavailable, err)
}

// unexpected maps a non-success reply that has no business meaning.
func unexpected(service string, resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", service, orders.ErrUnauthenticated)
	}
	return fmt.Errorf("%s: %w: status %d", service, orders.ErrDependencyUnavailable, resp.StatusCode())
}
