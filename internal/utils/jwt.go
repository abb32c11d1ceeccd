package utils // package utils provides helper functions for token signing and hashing

import (
	"crypto/sha256" // SHA-256 hashing for refresh tokens at rest
	"encoding/hex"  // hex encoding of digests
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
	"github.com/google/uuid"       // unique token ids (jti)
)

// Token type markers carried in the "typ" claim.  A refresh token can never
// be replayed as an access token because the verifier checks the marker.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessClaims is the payload of an access token.  Subject holds the
// account id as a decimal string.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// RegisteredFor builds the standard claims shared by both token kinds.  A
// random jti keeps two tokens issued in the same second distinct.
func RegisteredFor(accountID uint64, issuer, audience string, issuedAt, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatUint(accountID, 10),
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ID:        uuid.NewString(),
	}
}

// Sign serialises claims as an HS256 JWT.
func Sign(claims jwt.Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies signature, issuer, audience and expiry of raw and decodes
// it into claims.  now supplies the clock used for the expiry check.
func Parse(raw string, claims jwt.Claims, secret, issuer, audience string, now func() time.Time) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	return err
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.  Storing only the hash means a leaked database row cannot be
// presented as a token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

var ttlPattern = regexp.MustCompile(`^\s*(\d+)\s*([dhm])\s*$`)

// ParseTTL converts a duration string with a day, hour or minute suffix
// ("7d", "12h", "15m") into a time.Duration.  Anything else, including a
// zero amount, yields fallback.
func ParseTTL(s string, fallback time.Duration) time.Duration {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return fallback
	}
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour
	case "h":
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}
