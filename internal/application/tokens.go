package application

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuerName = "salafacil"

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenIssuer constructs an issuer. accessTTL defaults to 24 hours.
func NewTokenIssuer(secret string, accessTTL time.Duration, now func() time.Time) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, now: now}
}

// IssueAccessToken signs an access token for user.
func (t *TokenIssuer) IssueAccessToken(user User) (string, time.Time, error) {
	if t == nil || len(t.secret) == 0 {
		return "", time.Time{}, errors.New("token issuer not configured")
	}
	issuedAt := jwt.NewNumericDate(t.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(t.accessTTL))

	claims := AccessClaims{
		Role:     string(user.Role),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuerName,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the claims.
func (t *TokenIssuer) ParseAccessToken(raw string) (AccessClaims, error) {
	if t == nil || len(t.secret) == 0 {
		return AccessClaims{}, errors.New("token issuer not configured")
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrSessionExpired
		}
		return AccessClaims{}, ErrInvalidCredentials
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return AccessClaims{}, ErrInvalidCredentials
	}
	return claims, nil
}

// RandomToken returns 48 random bytes encoded as hex.
func RandomToken() string {
	buf := make([]byte, 48)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// HashToken returns the hex sha256 of a raw refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ParseLegacyToken extracts the user id from the opaque token_<ms>_<id> and
// google_token_<ms>_<id> formats. Such tokens carry no signature.
func ParseLegacyToken(token string) (userID string, issuedAt time.Time, ok bool) {
	rest, found := strings.CutPrefix(token, "google_token_")
	if !found {
		rest, found = strings.CutPrefix(token, "token_")
	}
	if !found {
		return "", time.Time{}, false
	}

	stamp, id, found := strings.Cut(rest, "_")
	if !found || stamp == "" || strings.TrimSpace(id) == "" {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || ms <= 0 {
		return "", time.Time{}, false
	}
	return id, time.UnixMilli(ms).UTC(), true
}
