package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AdminClaimValue   = "true"
	StudentClaimValue = "true"

	refreshTokenBytes = 64
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the access token payload. Admin and Student are only present
// when the flag is set on the user.
type Claims struct {
	UserID   string `json:"userid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Admin    string `json:"admin,omitempty"`
	Student  string `json:"student,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool   { return c.Admin == AdminClaimValue }
func (c *Claims) IsStudent() bool { return c.Student == StudentClaimValue }

// Subject is what the issuer needs to know about a user.
type Subject struct {
	ID        uuid.UUID
	Username  string
	Email     string
	IsAdmin   bool
	IsStudent bool
}

type Issuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret, issuer, audience string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source; tests use it to mint expired tokens.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTokenExpiry() time.Time {
	return i.now().UTC().Add(i.accessTTL)
}

func (i *Issuer) RefreshTokenExpiry() time.Time {
	return i.now().UTC().Add(i.refreshTTL)
}

// GenerateAccessToken signs an HS256 token for s and returns it with its expiry.
func (i *Issuer) GenerateAccessToken(s Subject) (string, time.Time, error) {
	now := i.now().UTC()
	expiresAt := now.Add(i.accessTTL)

	claims := Claims{
		UserID:   s.ID.String(),
		Username: s.Username,
		Email:    s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID.String(),
			Issuer:    i.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	if s.IsAdmin {
		claims.Admin = AdminClaimValue
	}
	if s.IsStudent {
		claims.Student = StudentClaimValue
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken validates signature, expiry, issuer and audience.
func (i *Issuer) ParseAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateRefreshToken returns 64 random bytes, base64 encoded.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
