package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (orders.Identity, error)
}

type principal struct {
	identity   orders.Identity
	credential string
}

type principalKey struct{}

// Authenticate resolves "Authorization: Bearer <token>" through the user
// service and stores the identity on the request context.
func Authenticate(users IdentityResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
				return
			}
			id, err := users.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, orders.ErrUnauthenticated) {
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				log.Warn("resolve identity failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "user service unavailable, please retry")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal{identity: id, credential: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(h string) (string, bool) {
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}
