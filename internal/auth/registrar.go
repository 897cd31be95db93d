package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRegistrar is recorded when no operator identity is supplied.
const DefaultRegistrar = "system"

// Claims represents JWT claims used by this service. Registrar is the
// operator identity recorded on ledger entries; when absent the token
// subject is used instead.
type Claims struct {
	Registrar string `json:"registrar"`
	jwt.RegisteredClaims
}

// ParseJWT validates a JWT and returns claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, errors.New("auth: token expired")
	}
	return claims, nil
}

// Identity returns the registrar identity carried by the claims.
func (c *Claims) Identity() string {
	if c == nil {
		return DefaultRegistrar
	}
	if c.Registrar != "" {
		return c.Registrar
	}
	if c.Subject != "" {
		return c.Subject
	}
	return DefaultRegistrar
}

// RegistrarFromRequest extracts the operator identity from the
// Authorization header. Missing or invalid tokens fall back to the
// system identity; the registrar string is informational and never
// gates ingestion.
func RegistrarFromRequest(r *http.Request, secret []byte) string {
	if r == nil || len(secret) == 0 {
		return DefaultRegistrar
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return DefaultRegistrar
	}
	claims, err := ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
	if err != nil {
		return DefaultRegistrar
	}
	return claims.Identity()
}
