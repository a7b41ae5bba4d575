// Package signer provides transaction signing for swap settlement.
// Key custody beyond a locally held keypair is out of scope; callers talk
// to the Signer interface only.
package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Signing errors.
var (
	ErrNotReady      = errors.New("signer not ready")
	ErrBadSecretKey  = errors.New("secret key must be a base58-encoded 64-byte ed25519 keypair")
	ErrBadPublicKey  = errors.New("public key is not a valid curve point")
	ErrMalformedTx   = errors.New("malformed transaction payload")
	ErrNoSignerSlot  = errors.New("transaction has no signature slot")
)

// Signer signs serialized Solana transactions.
type Signer interface {
	// Ready reports whether the signer can sign. Execution checks this
	// before any network call.
	Ready(ctx context.Context) bool

	// PublicKey returns the base58 fee payer public key.
	PublicKey() string

	// SignTransaction fills the fee payer signature slot of a serialized
	// unsigned transaction and returns the signed bytes.
	SignTransaction(ctx context.Context, unsignedTx []byte) ([]byte, error)
}

// LocalSigner signs with an in-process ed25519 keypair.
type LocalSigner struct {
	priv   ed25519.PrivateKey
	pubB58 string
}

// NewLocalSigner creates a signer from a base58-encoded 64-byte secret key
// (the standard Solana keypair export format). The embedded public key is
// validated as a canonical curve point.
func NewLocalSigner(secretKeyB58 string) (*LocalSigner, error) {
	raw, err := base58.Decode(secretKeyB58)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrBadSecretKey
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)

	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, ErrBadPublicKey
	}

	return &LocalSigner{
		priv:   priv,
		pubB58: base58.Encode(pub),
	}, nil
}

// Compile-time interface check.
var _ Signer = (*LocalSigner)(nil)

// Ready always reports true for a constructed local signer.
func (s *LocalSigner) Ready(_ context.Context) bool {
	return s.priv != nil
}

// PublicKey returns the base58 fee payer public key.
func (s *LocalSigner) PublicKey() string {
	return s.pubB58
}

// SignTransaction signs the message section of a serialized transaction and
// writes the signature into the fee payer slot (slot 0).
//
// Wire layout: compact-u16 signature count, then count*64 signature bytes,
// then the message. Versioned and legacy transactions share this envelope.
func (s *LocalSigner) SignTransaction(_ context.Context, unsignedTx []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, ErrNotReady
	}

	numSigs, header, err := decodeCompactU16(unsignedTx)
	if err != nil {
		return nil, err
	}
	if numSigs == 0 {
		return nil, ErrNoSignerSlot
	}

	sigSection := header + numSigs*ed25519.SignatureSize
	if len(unsignedTx) <= sigSection {
		return nil, ErrMalformedTx
	}

	message := unsignedTx[sigSection:]
	signature := ed25519.Sign(s.priv, message)

	signed := make([]byte, len(unsignedTx))
	copy(signed, unsignedTx)
	copy(signed[header:header+ed25519.SignatureSize], signature)

	return signed, nil
}

// decodeCompactU16 decodes Solana's compact-u16 length prefix, returning the
// value and the number of header bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, ErrMalformedTx
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, ErrMalformedTx
}
