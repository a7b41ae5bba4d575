package stub

import (
	"context"
	"sync"

	"solana-exit-engine/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Responses are scripted
// per signature; SendTransaction records what was broadcast.
type RPCClient struct {
	mu sync.Mutex

	// SendSignature is returned by SendTransaction when SendErr is nil.
	SendSignature string
	SendErr       error
	Sent          []string // base64 payloads passed to SendTransaction

	BlockhashValue string

	// Statuses holds the status returned for a signature. Missing entries
	// yield nil (unknown signature).
	Statuses map[string]*solana.SignatureStatus

	// ConfirmErr, when set, is returned by WaitForConfirmation.
	ConfirmErr error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		SendSignature:  "stub-signature",
		BlockhashValue: "StubB1ockhash1111111111111111111111111111111",
		Statuses:       make(map[string]*solana.SignatureStatus),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// SendTransaction records the payload and returns the scripted signature.
func (c *RPCClient) SendTransaction(_ context.Context, signedTxBase64 string, _ *solana.SendOpts) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.Sent = append(c.Sent, signedTxBase64)
	return c.SendSignature, nil
}

// GetLatestBlockhash returns the scripted blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	return &solana.Blockhash{Blockhash: c.BlockhashValue, LastValidBlockHeight: 1000}, nil
}

// GetSignatureStatuses returns scripted statuses.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

// WaitForConfirmation returns the scripted status for the signature,
// defaulting to an immediately confirmed status.
func (c *RPCClient) WaitForConfirmation(_ context.Context, signature string) (*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConfirmErr != nil {
		return nil, c.ConfirmErr
	}
	if status, ok := c.Statuses[signature]; ok {
		if status.Failed() {
			return status, &solana.TxError{Signature: signature, Err: status.Err}
		}
		return status, nil
	}
	return &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed}, nil
}
