package realtime

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long a subscription token stays valid. Tokens are
// minted per request; the UI asks for a fresh one whenever it reconnects.
const DefaultTokenTTL = 5 * time.Minute

// SubscriptionClaims are the claims embedded in a realtime subscription token.
type SubscriptionClaims struct {
	UserID   string   `json:"uid"`
	Channels []string `json:"channels,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies short-lived subscription tokens for the
// realtime endpoint.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing with the given HMAC secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: DefaultTokenTTL}
}

// Issue mints a token allowing userID to subscribe to the given channels.
// An empty channel list permits all channels.
func (i *TokenIssuer) Issue(userID string, channels []string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID cannot be empty")
	}

	now := time.Now()
	claims := SubscriptionClaims{
		UserID:   userID,
		Channels: channels,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign subscription token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a subscription token, returning its claims.
func (i *TokenIssuer) Verify(tokenString string) (*SubscriptionClaims, error) {
	claims := &SubscriptionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid subscription token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid subscription token")
	}

	return claims, nil
}
