package utils

import (
	"fmt"
	"time"

	"coach-sync-api/core/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenData is the subset of access token claims the API cares about.
type TokenData struct {
	UserID uuid.UUID
	Role   string
}

type accessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func jwtSecret() ([]byte, error) {
	cfg, ok := config.GetSafe()
	if !ok || cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret not configured")
	}
	return []byte(cfg.JWT.Secret), nil
}

// GenerateToken issues an HS256 access token. Tokens are normally issued by the
// auth service; this exists for local tooling and tests.
func GenerateToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	secret, err := jwtSecret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := accessClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ValidateAndParseToken(token string) (*TokenData, error) {
	secret, err := jwtSecret()
	if err != nil {
		return nil, err
	}

	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id claim: %w", err)
	}
	return &TokenData{UserID: userID, Role: claims.Role}, nil
}

// OAuthState is the payload carried through a provider consent screen.
type OAuthState struct {
	OwnerID  uuid.UUID
	Provider string
	Nonce    string
}

type stateClaims struct {
	OwnerID  string `json:"owner_id"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// StateSigner signs and verifies OAuth state values.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{secret: []byte(secret), ttl: ttl}
}

func (s *StateSigner) Sign(ownerID uuid.UUID, provider string) (string, *OAuthState, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	claims := stateClaims{
		OwnerID:  ownerID.String(),
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, &OAuthState{OwnerID: ownerID, Provider: provider, Nonce: nonce}, nil
}

func (s *StateSigner) Parse(state string) (*OAuthState, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	ownerID, err := uuid.Parse(claims.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state owner: %w", err)
	}
	return &OAuthState{OwnerID: ownerID, Provider: claims.Provider, Nonce: claims.ID}, nil
}
