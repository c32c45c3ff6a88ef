package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthToken signs and verifies session scoped JWT tokens. The scan endpoint
// issues one per session; the morph endpoint requires it back, binding the
// expensive synthesis call to a prior scan.
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthToken builds a token helper using the provided secret.
func NewAuthToken(secretKey string) *AuthToken {
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       time.Hour,
	}
}

// WithTTL customises the expiration duration.
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	if ttl > 0 {
		at.ttl = ttl
	}
	return at
}

// Claims carried by a session token.
type Claims struct {
	SessionID string
	DeviceID  string
}

// GenerateToken issues a JWT bound to a session and the device that scanned.
func (at *AuthToken) GenerateToken(claims Claims) (string, error) {
	if at == nil || len(at.secretKey) == 0 {
		return "", errors.New("auth token secret is empty")
	}
	if claims.SessionID == "" {
		return "", errors.New("session id required")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": claims.SessionID,
		"device_id":  claims.DeviceID,
		"exp":        now.Add(at.ttl).Unix(),
		"iat":        now.Unix(),
	})
	signed, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates the JWT and extracts its claims.
func (at *AuthToken) VerifyToken(tokenString string) (Claims, error) {
	if at == nil || len(at.secretKey) == 0 {
		return Claims{}, errors.New("auth token secret is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sessionID, ok := mapClaims["session_id"].(string)
	if !ok || sessionID == "" {
		return Claims{}, errors.New("invalid session_id claim")
	}
	deviceID, _ := mapClaims["device_id"].(string)
	return Claims{SessionID: sessionID, DeviceID: deviceID}, nil
}
