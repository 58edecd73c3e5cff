package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/autopeer-io/botpod/pkg/options"
)

const subject = "operator"

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// Claims is the payload of the authentication token.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator implements the password login gate. A nil *Authenticator
// lets every request through.
type Authenticator struct {
	password   []byte
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewAuthenticator returns nil when no password is configured.
func NewAuthenticator(opts *options.AuthOptions) *Authenticator {
	if !opts.Enabled() {
		return nil
	}
	return &Authenticator{
		password:   []byte(opts.Password),
		secret:     []byte(opts.Secret),
		cookieName: opts.CookieName,
		ttl:        opts.TokenTTL,
		secure:     opts.SecureCookie,
	}
}

// Login checks password and issues a signed token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), a.password) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := time.Now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and verifies a token.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(subject))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Require rejects requests without a valid token in the cookie or a Bearer header.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		if _, err := a.Validate(token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     a.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
		c.MaxAge = int(time.Until(expires).Seconds())
	}
	return c
}

func (a *Authenticator) extractToken(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return extractBearerToken(r)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Authenticated bool       `json:"authenticated"`
	Token         string     `json:"token,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// authHandler handles the login gate endpoints.
type authHandler struct {
	auth *Authenticator
}

// Login handles POST /v1/auth/login
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeJSON(w, http.StatusOK, loginResponse{Authenticated: true})
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeErr(w, err)
		return
	}

	http.SetCookie(w, h.auth.cookie(token, expiresAt))
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: true, Token: token, ExpiresAt: &expiresAt})
}

// Logout handles POST /v1/auth/logout
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		http.SetCookie(w, h.auth.cookie("", time.Time{}))
	}
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: false})
}
