package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"media-caption-server/internal/platform/errors"
)

const issuer = "media-caption-server"

// AuthToken signs and verifies HS256 tokens for API editors.
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthToken builds a token helper using the provided secret.
func NewAuthToken(secretKey string) *AuthToken {
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       24 * time.Hour,
		now:       time.Now,
	}
}

// WithTTL allows customising the expiration duration.
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	if ttl > 0 {
		at.ttl = ttl
	}
	return at
}

// GenerateToken issues a JWT whose subject is the editor name.
func (at *AuthToken) GenerateToken(subject string) (string, error) {
	if len(at.secretKey) == 0 {
		return "", errors.New(errors.KindConfig, "auth.generate", "auth token secret is empty")
	}
	if subject == "" {
		return "", errors.New(errors.KindDomain, "auth.generate", "token subject is empty")
	}

	now := at.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", errors.Wrap(errors.KindPlatform, "auth.generate", "failed to sign token", err)
	}
	return tokenString, nil
}

// VerifyToken validates the JWT and returns its subject.
func (at *AuthToken) VerifyToken(tokenString string) (string, error) {
	if len(at.secretKey) == 0 {
		return "", errors.New(errors.KindConfig, "auth.verify", "auth token secret is empty")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(at.now),
	)
	if err != nil {
		return "", errors.Wrap(errors.KindDomain, "auth.verify", "invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New(errors.KindDomain, "auth.verify", "invalid token")
	}
	return claims.Subject, nil
}
