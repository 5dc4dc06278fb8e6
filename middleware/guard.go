package middleware

import (
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// SessionFromContext returns the session injected by [RequireSession].
func SessionFromContext(r *http.Request) (goIdentity.SessionInfo, bool) {
	return goIdentity.SessionFromContext(r.Context())
}

// RequireSession returns middleware that rejects requests without a valid
// opaque session token. Revocation is visible immediately; every request
// costs one Redis round-trip.
func RequireSession(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goIdentity.WithSession(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
