package authz

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTIdentityMiddleware returns middleware that reads the actor from an
// "Authorization: Bearer <token>" header.
//
// If cfg.PublicKeyPath is set tokens are verified with RS256; otherwise they
// are parsed without verification (trusted proxy mode). Missing or invalid
// tokens leave the request without identity.
func JWTIdentityMiddleware(cfg Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ActorClaim == "" {
		cfg.ActorClaim = "preferred_username"
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		publicKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		logger.Info("JWT identity: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	} else {
		logger.Warn("JWT identity: no public key configured, tokens parsed without verification")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseClaims(token, publicKey, cfg)
			if err != nil {
				logger.Debug("JWT parse failed, request has no identity", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			user := claimString(claims, cfg.ActorClaim)
			if user == "" {
				user = claimString(claims, "sub")
			}
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}

			id := Identity{User: user, Groups: claimStrings(claims, "groups")}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}, nil
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseClaims(tokenString string, publicKey *rsa.PublicKey, cfg Config) (jwt.MapClaims, error) {
	var opts []jwt.ParserOption
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	var (
		token *jwt.Token
		err   error
	)
	if publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return publicKey, nil
		}, opts...)
	} else {
		// ParseUnverified skips claim validation, so issuer, audience and
		// expiry are checked separately.
		token, _, err = jwt.NewParser(opts...).ParseUnverified(tokenString, jwt.MapClaims{})
		if err == nil {
			err = jwt.NewValidator(opts...).Validate(token.Claims)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse JWT: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	return claims, nil
}

// lookupClaim follows a dot-separated path through nested claims.
func lookupClaim(claims jwt.MapClaims, path string) (any, bool) {
	var current any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

func claimString(claims jwt.MapClaims, path string) string {
	v, ok := lookupClaim(claims, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func claimStrings(claims jwt.MapClaims, path string) []string {
	v, ok := lookupClaim(claims, path)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
