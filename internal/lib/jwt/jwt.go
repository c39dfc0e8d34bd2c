package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and verifies the two token classes. Access and refresh tokens
// use distinct secrets, so one can never be presented in place of the other.
type Tokens struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (t Tokens) NewAccessToken(userID string) (string, error) {
	return newToken(userID, t.AccessSecret, t.AccessTTL)
}

func (t Tokens) NewRefreshToken(userID string) (string, error) {
	return newToken(userID, t.RefreshSecret, t.RefreshTTL)
}

// ParseAccessToken returns the user id embedded in an access token.
func (t Tokens) ParseAccessToken(tokenStr string) (string, error) {
	return parseToken(tokenStr, t.AccessSecret)
}

// ParseRefreshToken returns the user id embedded in a refresh token.
func (t Tokens) ParseRefreshToken(tokenStr string) (string, error) {
	return parseToken(tokenStr, t.RefreshSecret)
}

func newToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	const op = "jwt.newToken"

	now := time.Now()

	// The jti claim makes every issued token unique, even two tokens minted
	// for the same user within the same second. Rotation relies on that.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func parseToken(tokenStr string, secret []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
