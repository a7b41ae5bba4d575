package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeypair(t *testing.T) (string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(priv), pub
}

// unsignedTx builds the wire envelope: compact-u16 signature count, zeroed
// signature slots, then the message.
func unsignedTx(numSigs int, message []byte) []byte {
	tx := []byte{byte(numSigs)}
	tx = append(tx, make([]byte, numSigs*ed25519.SignatureSize)...)
	return append(tx, message...)
}

func TestNewLocalSigner(t *testing.T) {
	secret, pub := newTestKeypair(t)

	s, err := NewLocalSigner(secret)
	require.NoError(t, err)

	assert.True(t, s.Ready(context.Background()))
	assert.Equal(t, base58.Encode(pub), s.PublicKey())
}

func TestNewLocalSigner_BadInput(t *testing.T) {
	_, err := NewLocalSigner("not base58 !!!")
	assert.Error(t, err)

	// Valid base58 but wrong length.
	_, err = NewLocalSigner(base58.Encode([]byte("short")))
	assert.ErrorIs(t, err, ErrBadSecretKey)
}

func TestSignTransaction(t *testing.T) {
	secret, pub := newTestKeypair(t)
	s, err := NewLocalSigner(secret)
	require.NoError(t, err)

	message := []byte("serialized message bytes")
	tx := unsignedTx(1, message)

	signed, err := s.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, signed, len(tx))

	// Signature lands in slot 0 and verifies against the message.
	sig := signed[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))
	// Message untouched.
	assert.Equal(t, message, signed[1+ed25519.SignatureSize:])
	// Input not mutated.
	assert.Equal(t, make([]byte, ed25519.SignatureSize), tx[1:1+ed25519.SignatureSize])
}

func TestSignTransaction_MultipleSlots(t *testing.T) {
	secret, pub := newTestKeypair(t)
	s, err := NewLocalSigner(secret)
	require.NoError(t, err)

	message := []byte("multisig message")
	tx := unsignedTx(2, message)

	signed, err := s.SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	// Only the fee payer slot is filled; the second stays zeroed for
	// other signers.
	sig := signed[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))
	second := signed[1+ed25519.SignatureSize : 1+2*ed25519.SignatureSize]
	assert.Equal(t, make([]byte, ed25519.SignatureSize), second)
}

func TestSignTransaction_Malformed(t *testing.T) {
	secret, _ := newTestKeypair(t)
	s, err := NewLocalSigner(secret)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = s.SignTransaction(ctx, nil)
	assert.ErrorIs(t, err, ErrMalformedTx)

	_, err = s.SignTransaction(ctx, unsignedTx(0, []byte("msg")))
	assert.ErrorIs(t, err, ErrNoSignerSlot)

	// Claims one slot but the payload is too short to hold it.
	_, err = s.SignTransaction(ctx, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedTx)
}

func TestDecodeCompactU16(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantValue int
		wantSize  int
		wantErr   bool
	}{
		{name: "single byte", data: []byte{0x05}, wantValue: 5, wantSize: 1},
		{name: "two bytes", data: []byte{0x80, 0x01}, wantValue: 128, wantSize: 2},
		{name: "empty", data: nil, wantErr: true},
		{name: "unterminated", data: []byte{0xff, 0xff, 0xff}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, size, err := decodeCompactU16(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}
