package middleware

import (
	"net/http"
	"strings"

	"hallbook/pkg/auth"
	apperrors "hallbook/pkg/errors"
	httputil "hallbook/pkg/http"
	"hallbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Authenticate attaches the caller's Principal when a bearer token is present.
// A malformed or invalid token is rejected; a missing one is passed through
// and left to RequireAuth on the routes that need it.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Authorization header must use the Bearer scheme"))
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				log.Warn("Token verification failed",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func RequireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			_ = httputil.WriteError(w, apperrors.Unauthorized("Authentication token is required"))
			return
		}
		next(w, r, ps)
	}
}

func RequireRole(role string, next httprouter.Handle) httprouter.Handle {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		p, _ := auth.FromContext(r.Context())
		if p.Role != role {
			_ = httputil.WriteError(w, apperrors.Forbidden("Access denied"))
			return
		}
		next(w, r, ps)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
