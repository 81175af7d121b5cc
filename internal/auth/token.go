// Package auth accepts the session tokens issued by the hosted identity
// provider. Users sign in there; this service only verifies.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/invoicely/internal/config"
	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
)

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

type Verifier struct {
	secret     []byte
	cookieName string
	leeway     time.Duration
}

func NewVerifier(cfg config.Config, log *zap.Logger) *Verifier {
	if cfg.AuthJWTSecret == "" {
		log.Named("auth").Warn("AUTH_JWT_SECRET is empty; every authenticated request will be rejected")
	}
	return &Verifier{
		secret:     []byte(cfg.AuthJWTSecret),
		cookieName: cfg.AuthCookieName,
		leeway:     30 * time.Second,
	}
}

// NewStaticVerifier is used by tests.
func NewStaticVerifier(secret, cookieName string) *Verifier {
	return &Verifier{secret: []byte(secret), cookieName: cookieName, leeway: 30 * time.Second}
}

// ReadToken prefers the Authorization header and falls back to the cookie.
func (v *Verifier) ReadToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, true
			}
		}
		return "", false
	}

	if v.cookieName == "" {
		return "", false
	}
	token, err := c.Cookie(v.cookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func (v *Verifier) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return Identity{}, ErrInvalidToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: subject, Email: strings.ToLower(strings.TrimSpace(claims.Email))}, nil
}

// Issue signs a token the way the identity provider does. Used by tests and
// local tooling.
func Issue(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
