package solana

import (
	"context"
)

// ConfirmClient wraps an RPC client with a WebSocket fast path for
// confirmation. WaitForConfirmation subscribes to the signature first and
// falls back to RPC polling when the subscription cannot be established or
// dies before delivering; everything else delegates to the RPC client.
type ConfirmClient struct {
	rpc RPCClient
	ws  WSClient
}

// NewConfirmClient creates a ConfirmClient. ws may be nil, in which case
// every call delegates to rpc.
func NewConfirmClient(rpc RPCClient, ws WSClient) *ConfirmClient {
	return &ConfirmClient{rpc: rpc, ws: ws}
}

// Compile-time interface check.
var _ RPCClient = (*ConfirmClient)(nil)

func (c *ConfirmClient) SendTransaction(ctx context.Context, signedTxBase64 string, opts *SendOpts) (string, error) {
	return c.rpc.SendTransaction(ctx, signedTxBase64, opts)
}

func (c *ConfirmClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	return c.rpc.GetLatestBlockhash(ctx)
}

func (c *ConfirmClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	return c.rpc.GetSignatureStatuses(ctx, signatures)
}

// WaitForConfirmation waits over the WebSocket subscription when available.
// A closed channel without a notification means the connection dropped; the
// signature may still have landed, so the RPC poll path decides.
func (c *ConfirmClient) WaitForConfirmation(ctx context.Context, signature string) (*SignatureStatus, error) {
	if c.ws == nil {
		return c.rpc.WaitForConfirmation(ctx, signature)
	}

	ch, err := c.ws.SubscribeSignature(ctx, signature)
	if err != nil {
		return c.rpc.WaitForConfirmation(ctx, signature)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case notif, ok := <-ch:
		if !ok {
			return c.rpc.WaitForConfirmation(ctx, signature)
		}
		if notif.Err != nil {
			return nil, &TxError{Signature: signature, Err: notif.Err}
		}
		return &SignatureStatus{
			Slot:               notif.Slot,
			ConfirmationStatus: CommitmentConfirmed,
		}, nil
	}
}
