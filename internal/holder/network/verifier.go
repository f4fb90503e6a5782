package network

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Ed25519Verifier checks envelope signatures against a single public key.
type Ed25519Verifier struct {
	key ed25519.PublicKey
}

// NewEd25519Verifier parses a base64-encoded ed25519 public key.
func NewEd25519Verifier(encodedKey string) (*Ed25519Verifier, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signing key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return &Ed25519Verifier{key: ed25519.PublicKey(raw)}, nil
}

func (v *Ed25519Verifier) Verify(_ context.Context, payload, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.key, payload, signature)
}

var _ Verifier = (*Ed25519Verifier)(nil)
