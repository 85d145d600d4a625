package btcvault

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/twitchtv/twirp"
	"github.com/yiplee/go-cache"
)

func extractBearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	return strings.TrimPrefix(token, "Bearer ")
}

// handleAuth gates every route behind a bearer token issued by the
// configured issuer. The token subject names the calling member; the
// core still enforces membership on its own, this is perimeter only.
// An empty issuer disables the check.
func handleAuth(issuer string) func(next http.Handler) http.Handler {
	callers := cache.New[string, *Caller]()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if issuer == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token := extractBearerToken(r)

			if caller, ok := callers.Get(token); ok {
				next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
				return
			}

			var claim jwt.StandardClaims
			_, _ = jwt.ParseWithClaims(token, &claim, nil)

			if err := claim.Valid(); err != nil {
				_ = twirp.WriteError(w, twirp.Unauthenticated.Error(err.Error()))
				return
			}

			if claim.Issuer != issuer {
				_ = twirp.WriteError(w, twirp.NewError(twirp.Unauthenticated, "auth required"))
				return
			}

			caller := &Caller{Subject: claim.Subject}
			callers.Set(token, caller)

			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		}

		return http.HandlerFunc(fn)
	}
}
