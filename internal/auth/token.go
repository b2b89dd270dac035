package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevTokenClaims mirrors the claims issued by the studio API.
type DevTokenClaims struct {
	jwt.RegisteredClaims
}

// IssueToken creates an HS256 signed JWT whose subject is the numeric user id.
// It exists for local development and tests; clients never verify it.
func IssueToken(signingKey string, userID int64, ttl time.Duration) (string, error) {
	if signingKey == "" {
		return "", errors.New("signing key is required")
	}

	now := time.Now()
	claims := &DevTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "studiodesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(signingKey))
}
