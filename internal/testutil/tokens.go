package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken signs an HS256 access token for userID the way the identity
// service issues them.
func AccessToken(t *testing.T, secret, userID string) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":    userID,
		"token_type": "access",
		"sub":        userID,
		"iss":        "wealthsync-identity",
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"exp":        now.Add(15 * time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return token
}
