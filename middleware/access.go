package middleware

import (
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// RequireAccess returns middleware that verifies a signed access token
// offline, skipping Redis entirely. Session revocation is NOT visible until
// the token expires; use [RequireSession] where it must be.
func RequireAccess(engine *goIdentity.Engine) func(http.Handler) http.Handler {
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

			userID, userType, _, err := engine.ValidateAccess(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goIdentity.WithSession(r.Context(), goIdentity.SessionInfo{
				UserID:   userID,
				UserType: userType,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
