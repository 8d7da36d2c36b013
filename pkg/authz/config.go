package authz

import "os"

// IdentityMode selects where the acting user is read from.
type IdentityMode string

const (
	// IdentityModeHeader trusts X-Remote-User / X-Remote-Group set by a proxy.
	IdentityModeHeader IdentityMode = "header"
	// IdentityModeJWT reads the actor from a bearer token.
	IdentityModeJWT IdentityMode = "jwt"
)

// Config holds identity extraction settings.
type Config struct {
	Mode IdentityMode `mapstructure:"mode"`

	// ActorClaim names the JWT claim holding the actor. Dot-notation
	// selects nested claims. Falls back to "sub" when the claim is absent.
	ActorClaim string `mapstructure:"actor_claim"`

	// PublicKeyPath is a PEM-encoded RSA public key for RS256 verification.
	// If empty, tokens are parsed without verification.
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`

	// RequireIdentity rejects mutating requests that carry no identity.
	RequireIdentity bool `mapstructure:"require_identity"`
}

// DefaultConfig returns header mode without enforcement.
func DefaultConfig() Config {
	return Config{
		Mode:       IdentityModeHeader,
		ActorClaim: "preferred_username",
	}
}

// ConfigFromEnv reads PROFILE_IDENTITY_* environment variables on top of
// the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields whose PROFILE_IDENTITY_* variable is set.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("PROFILE_IDENTITY_MODE"); v != "" {
		cfg.Mode = IdentityMode(v)
	}
	if v := os.Getenv("PROFILE_IDENTITY_ACTOR_CLAIM"); v != "" {
		cfg.ActorClaim = v
	}
	if v := os.Getenv("PROFILE_IDENTITY_JWT_PUBLIC_KEY"); v != "" {
		cfg.PublicKeyPath = v
	}
	if v := os.Getenv("PROFILE_IDENTITY_JWT_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("PROFILE_IDENTITY_JWT_AUDIENCE"); v != "" {
		cfg.Audience = v
	}
	if v := os.Getenv("PROFILE_IDENTITY_REQUIRED"); v != "" {
		cfg.RequireIdentity = v == "true" || v == "1"
	}
}
