package stub

import (
	"context"

	"solana-exit-engine/internal/signer"
)

// Signer implements signer.Signer for testing.
type Signer struct {
	ReadyFlag bool
	Pubkey    string
	SignErr   error
	Signed    [][]byte // payloads passed to SignTransaction
}

// NewSigner creates a ready stub signer.
func NewSigner() *Signer {
	return &Signer{
		ReadyFlag: true,
		Pubkey:    "StubPubkey11111111111111111111111111111111",
	}
}

// Compile-time interface check.
var _ signer.Signer = (*Signer)(nil)

// Ready reports the scripted readiness flag.
func (s *Signer) Ready(_ context.Context) bool { return s.ReadyFlag }

// PublicKey returns the scripted public key.
func (s *Signer) PublicKey() string { return s.Pubkey }

// SignTransaction records the payload and echoes it back unchanged.
func (s *Signer) SignTransaction(_ context.Context, unsignedTx []byte) ([]byte, error) {
	if s.SignErr != nil {
		return nil, s.SignErr
	}
	s.Signed = append(s.Signed, unsignedTx)
	return unsignedTx, nil
}
