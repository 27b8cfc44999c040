package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/auth"
)

type ctxKey string

const principalKey ctxKey = "principal"

func (s *HTTPServer) accessTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		p, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.fail(r.Context(), w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// PrincipalFrom returns the principal the access-token middleware stored.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}
