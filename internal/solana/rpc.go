package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used for trade settlement.
type RPCClient interface {
	// SendTransaction broadcasts a signed, base64-encoded transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, signedTxBase64 string, opts *SendOpts) (string, error)

	// GetLatestBlockhash retrieves the most recent blockhash.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Unknown signatures yield nil entries.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// WaitForConfirmation blocks until the signature reaches at least
	// confirmed commitment, the transaction fails on chain, or ctx expires.
	WaitForConfirmation(ctx context.Context, signature string) (*SignatureStatus, error)
}
