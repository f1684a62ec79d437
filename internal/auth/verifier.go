// Package auth verifies bearer tokens issued by the hosted auth provider.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID  uuid.UUID
	Email   string
	Role    string
	IsAdmin bool
}

// Claims mirrors the hosted provider's access token. The role may arrive at
// the top level or under app_metadata.
type Claims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret    []byte
	audience  string
	adminRole string
	leeway    time.Duration
}

func NewVerifier(secret, audience, adminRole string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Verifier{
		secret:    []byte(secret),
		audience:  audience,
		adminRole: adminRole,
		leeway:    30 * time.Second,
	}, nil
}

// Verify parses and validates a raw token. Only HMAC-signed tokens are accepted.
func (v *Verifier) Verify(raw string) (*Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := claims.AppMetadata.Role
	if role == "" {
		role = claims.Role
	}

	return &Principal{
		UserID:  userID,
		Email:   claims.Email,
		Role:    role,
		IsAdmin: role == v.adminRole,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
