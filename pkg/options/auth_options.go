package options

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuthOptions)(nil)

// AuthOptions configures the password login gate in front of the HTTP API.
type AuthOptions struct {
	// Password unlocks the gate. Falls back to AUTH_PASSWORD; empty disables the gate.
	Password string `json:"password" mapstructure:"password"`

	// Secret signs the session token. Falls back to AUTH_SECRET, then to a random
	// per-process value: tokens then end with the process and are not shared
	// between replicas.
	Secret string `json:"secret" mapstructure:"secret"`

	// CookieName of the authentication marker.
	CookieName string `json:"cookie-name" mapstructure:"cookie-name"`

	// TokenTTL is the lifetime of the cookie and its token.
	TokenTTL time.Duration `json:"token-ttl" mapstructure:"token-ttl"`

	// SecureCookie marks the cookie Secure (HTTPS only).
	SecureCookie bool `json:"secure-cookie" mapstructure:"secure-cookie"`
}

// NewAuthOptions creates AuthOptions with default values.
func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		CookieName: "auth-token",
		TokenTTL:   7 * 24 * time.Hour,
	}
}

// Complete fills the password and secret from the environment. An enabled gate
// without a secret gets a random one, never one derived from the password.
func (o *AuthOptions) Complete() {
	o.Password = envOr(o.Password, "AUTH_PASSWORD")
	o.Secret = envOr(o.Secret, "AUTH_SECRET")
	if o.Secret == "" && o.Enabled() {
		o.Secret = rand.Text() + rand.Text()
	}
}

// Enabled reports whether the gate is active.
func (o *AuthOptions) Enabled() bool {
	return o != nil && o.Password != ""
}

// Validate checks cookie settings.
func (o *AuthOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.CookieName == "" {
		errs = append(errs, errors.New("--auth.cookie-name must not be empty"))
	}
	if o.TokenTTL <= 0 {
		errs = append(errs, errors.New("--auth.token-ttl must be positive"))
	}

	return errs
}

// AddFlags adds flags for AuthOptions to the specified FlagSet.
func (o *AuthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Password, "auth.password", o.Password, "Password of the login gate (defaults to $AUTH_PASSWORD, empty disables it).")
	fs.StringVar(&o.Secret, "auth.secret", o.Secret, "HMAC secret used to sign session tokens (defaults to $AUTH_SECRET, then to a random per-process value). Set it to keep sessions across restarts and replicas.")
	fs.StringVar(&o.CookieName, "auth.cookie-name", o.CookieName, "Name of the authentication cookie.")
	fs.DurationVar(&o.TokenTTL, "auth.token-ttl", o.TokenTTL, "Lifetime of the authentication cookie.")
	fs.BoolVar(&o.SecureCookie, "auth.secure-cookie", o.SecureCookie, "Only send the authentication cookie over HTTPS.")
}
