package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coach-sync-api/core/cache"
	"coach-sync-api/core/constants"
	"coach-sync-api/core/utils"

	"github.com/google/uuid"
)

// ErrInvalidState means the callback state is forged, expired or already used.
var ErrInvalidState = errors.New("invalid oauth state")

// SignedState issues JWT-signed state values and remembers their nonce so each
// value can be redeemed once.
type SignedState struct {
	signer *utils.StateSigner
	cache  cache.Cache
	ttl    time.Duration
}

func NewSignedState(secret string, store cache.Cache) *SignedState {
	return &SignedState{
		signer: utils.NewStateSigner(secret, constants.OAuthStateTTL),
		cache:  store,
		ttl:    constants.OAuthStateTTL,
	}
}

func (s *SignedState) Issue(ctx context.Context, ownerID uuid.UUID, provider string) (string, error) {
	state, claims, err := s.signer.Sign(ownerID, provider)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	if err := s.cache.Set(ctx, constants.RedisKeyOAuthState+claims.Nonce, ownerID.String(), s.ttl); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return state, nil
}

// Consume verifies the state and burns its nonce.
func (s *SignedState) Consume(ctx context.Context, state string) (*utils.OAuthState, error) {
	claims, err := s.signer.Parse(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	owner, err := s.cache.Take(ctx, constants.RedisKeyOAuthState+claims.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce not found", ErrInvalidState)
	}
	if owner != claims.OwnerID.String() {
		return nil, fmt.Errorf("%w: owner mismatch", ErrInvalidState)
	}
	return claims, nil
}
