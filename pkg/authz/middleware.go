package authz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Middleware builds the identity middleware selected by cfg.Mode, followed
// by RequireIdentity when cfg.RequireIdentity is set.
func Middleware(cfg Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	var extract func(http.Handler) http.Handler
	switch cfg.Mode {
	case IdentityModeHeader, "":
		extract = IdentityMiddleware()
	case IdentityModeJWT:
		mw, err := JWTIdentityMiddleware(cfg, logger)
		if err != nil {
			return nil, err
		}
		extract = mw
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
	}

	if !cfg.RequireIdentity {
		return extract, nil
	}
	return func(next http.Handler) http.Handler {
		return extract(RequireIdentity()(next))
	}, nil
}

// RequireIdentity rejects mutating requests that carry no identity.
// Reads are always allowed.
func RequireIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := IdentityFromContext(r.Context()); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "an identity is required to modify assessments",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
