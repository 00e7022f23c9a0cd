package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Nonces travel inside the OAuth state and as cache keys, so only URL-safe runes.
const nonceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

const nonceLength = 24

func NewNonce() (string, error) {
	id, err := gonanoid.Generate(nonceAlphabet, nonceLength)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return id, nil
}
