// Package token issues and validates the service's bearer tokens.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrFirebaseDisabled = errors.New("firebase token exchange is not configured")
)

// idTokenVerifier is the part of *auth.Client the service uses.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Service handles JWT generation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	firebase   idTokenVerifier
}

// Claims are the JWT claims carried by service tokens.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// New creates a token service. authClient may be nil, which disables
// Firebase token exchange.
func New(signingKey, issuer string, ttl time.Duration, authClient *auth.Client) *Service {
	s := &Service{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl}
	if authClient != nil {
		s.firebase = authClient
	}
	return s
}

// GenerateSigningKey generates a random signing key.
func GenerateSigningKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateToken creates a token for userID valid for the configured TTL.
func (s *Service) GenerateToken(userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	return claims, nil
}

// Exchange verifies a Firebase ID token and issues a service token for the
// same user. The username is the token's name claim, falling back to email.
func (s *Service) Exchange(ctx context.Context, idToken string) (tok string, claims *Claims, err error) {
	if s.firebase == nil {
		return "", nil, ErrFirebaseDisabled
	}
	fb, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", nil, fmt.Errorf("%w: firebase: %v", ErrInvalidToken, err)
	}

	username, _ := fb.Claims["name"].(string)
	if username == "" {
		username, _ = fb.Claims["email"].(string)
	}
	tok, err = s.GenerateToken(fb.UID, username)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return tok, &Claims{UserID: fb.UID, Username: username}, nil
}
