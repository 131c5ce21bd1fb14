// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// TokenConfig holds the configuration for admin token signing
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// Token represents a signed admin token
type Token struct {
	Subject   string `json:"subject"`
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
}

// GenerateToken creates a signed token for configuration access
func GenerateToken(subject string, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("secret key is required")
	}

	token := &Token{
		Subject:   subject,
		ExpiresAt: time.Now().Add(config.Expiration).Unix(),
		IssuedAt:  time.Now().Unix(),
	}

	payload := fmt.Sprintf("%s|%d|%d", token.Subject, token.ExpiresAt, token.IssuedAt)

	h := hmac.New(sha256.New, config.Secret)
	h.Write([]byte(payload))
	signature := h.Sum(nil)

	encodedPayload := base64.URLEncoding.EncodeToString([]byte(payload))
	encodedSignature := base64.URLEncoding.EncodeToString(signature)

	return fmt.Sprintf("%s.%s", encodedPayload, encodedSignature), nil
}

// ParseToken parses and validates a token
func ParseToken(tokenString string, config *TokenConfig) (*Token, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("secret key is required")
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid token payload: %w", err)
	}

	signatureBytes, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid token signature: %w", err)
	}

	// Verify signature
	expected := hmac.New(sha256.New, config.Secret)
	expected.Write(payloadBytes)
	if !hmac.Equal(signatureBytes, expected.Sum(nil)) {
		return nil, fmt.Errorf("invalid token signature")
	}

	payloadParts := strings.Split(string(payloadBytes), "|")
	if len(payloadParts) != 3 {
		return nil, fmt.Errorf("invalid payload format")
	}

	token := &Token{
		Subject:   payloadParts[0],
		ExpiresAt: parseTimestamp(payloadParts[1]),
		IssuedAt:  parseTimestamp(payloadParts[2]),
	}

	if time.Now().Unix() > token.ExpiresAt {
		return nil, fmt.Errorf("token has expired")
	}

	return token, nil
}

// parseTimestamp converts string timestamp to int64
func parseTimestamp(timestampStr string) int64 {
	var timestamp int64
	fmt.Sscanf(timestampStr, "%d", &timestamp)
	return timestamp
}
