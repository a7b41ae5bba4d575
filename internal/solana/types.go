package solana

import "fmt"

// Commitment levels.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SendOpts defines optional parameters for sendTransaction.
type SendOpts struct {
	SkipPreflight       bool
	PreflightCommitment string // defaults to confirmed
	MaxRetries          *int   // RPC-side resend retries
}

// Blockhash is the result of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64 // nil once rooted
	ConfirmationStatus string  // processed | confirmed | finalized
	Err                interface{}
}

// Confirmed reports whether the status reached at least confirmed commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s != nil && (s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized)
}

// Failed reports whether the transaction errored on chain.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}

// TxError carries the on-chain error payload of a failed transaction so the
// raw error text stays available for classification.
type TxError struct {
	Signature string
	Err       interface{}
	Logs      []string
}

func (e *TxError) Error() string {
	if len(e.Logs) > 0 {
		return fmt.Sprintf("transaction %s failed: %v; logs: %v", e.Signature, e.Err, e.Logs)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}
