package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface used for
// low-latency transaction confirmation.
type WSClient interface {
	// SubscribeSignature subscribes to the confirmation of one signature.
	// The returned channel receives exactly one notification and is closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is a signatureSubscribe message: the signature
// reached confirmed commitment, with Err set when it failed on chain.
type SignatureNotification struct {
	Signature string
	Slot      uint64
	Err       interface{}
}
