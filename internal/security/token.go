package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qrattendance/internal/models"
)

const RefreshTokenBytes = 64

// AccessClaims binds a bearer token to its persisted token row (sid) and to
// the credential space it was issued for (kind).
type AccessClaims struct {
	Kind      models.PrincipalKind `json:"kind"`
	SessionID string               `json:"sid"`
	jwt.RegisteredClaims
}

func (c AccessClaims) PrincipalID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func GenerateAccessToken(secret string, kind models.PrincipalKind, principalID int64, tokenID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := AccessClaims{
		Kind:      kind,
		SessionID: tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			Subject:   strconv.FormatInt(principalID, 10),
			ID:        tokenID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies tokenStr and checks its expiry against now.
func ParseAccessToken(tokenStr string, secret string, now time.Time) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.Kind.Valid() || claims.SessionID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func GenerateRefreshToken(length int) (string, []byte, error) {
	if length <= 0 {
		length = RefreshTokenBytes
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashRefreshToken(token), nil
}

func HashRefreshToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func RefreshTokenMatches(token string, hash []byte) bool {
	if token == "" || len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(HashRefreshToken(token), hash) == 1
}
