package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

var statusByKind = map[error]int{
	orders.ErrInvalidInput:          http.StatusBadRequest,
	orders.ErrUnauthenticated:       http.StatusUnauthorized,
	orders.ErrEmptyCart:             http.StatusUnprocessableEntity,
	orders.ErrInsufficientStock:     http.StatusConflict,
	orders.ErrInvalidTransition:     http.StatusConflict,
	orders.ErrNotFound:              http.StatusNotFound,
	orders.ErrDependencyUnavailable: http.StatusServiceUnavailable,
	orders.ErrPersistenceFailed:     http.StatusInternalServerError,
}

const genericFailure = "the order service is temporarily unavailable, please retry"

// errorResponse maps a saga error to status code and caller-facing message.
func errorResponse(err error) (int, string) {
	var oe *orders.Error
	if errors.As(err, &oe) {
		if code, ok := statusByKind[oe.Kind]; ok {
			return code, oe.Public()
		}
	}
	if kind := orders.KindOf(err); kind != nil {
		if code, ok := statusByKind[kind]; ok && code < 500 {
			return code, kind.Error()
		}
	}
	return http.StatusInternalServerError, genericFailure
}
