package middleware

import (
	"context"
	"net/http"

	goRefresh "github.com/MrEthical07/goRefresh"
	"github.com/MrEthical07/goRefresh/transport"
)

type principalContextKey struct{}

// PrincipalFromContext returns the authenticated principal injected by Guard.
func PrincipalFromContext(ctx context.Context) (*goRefresh.AuthenticatedPrincipal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*goRefresh.AuthenticatedPrincipal)
	return p, ok
}

// Guard returns middleware that authenticates the access token read from tr
// and injects the principal into the request context. Every failure is a
// uniform 401.
func Guard(engine *goRefresh.Engine, tr transport.Transport) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || tr == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := engine.Authenticate(r.Context(), tr.ReadAccessToken(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
