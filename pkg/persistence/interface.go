package persistence

import (
	"context"
	"errors"

	"github.com/Layr-Labs/signature-validator-go/pkg/types"
)

// ErrClosed is returned by every ledger operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// INonceLedger records which nonces have been accepted. A nonce moves from unused to
// consumed exactly once and never back. All implementations must be thread-safe.
//
// The interface supports:
// - Atomic check-and-insert of a nonce (ConsumeNonce)
// - Lookup of consumed nonces and their audit record
// - Lifecycle management (close, health check)
type INonceLedger interface {
	// ConsumeNonce records the nonce in record as used. The check and the insert are a
	// single atomic step: of any number of concurrent calls for the same nonce exactly one
	// succeeds and the rest return types.ErrNonceAlreadyUsed.
	ConsumeNonce(ctx context.Context, record *types.ConsumedNonce) error

	// IsNonceConsumed reports whether the nonce has been consumed.
	IsNonceConsumed(ctx context.Context, nonce types.Nonce) (bool, error)

	// LoadConsumedNonce returns the audit record for a consumed nonce.
	// Returns nil if the nonce is unused, error only on storage failure.
	LoadConsumedNonce(ctx context.Context, nonce types.Nonce) (*types.ConsumedNonce, error)

	// CountConsumedNonces returns the number of consumed nonces. The ledger only grows.
	CountConsumedNonces(ctx context.Context) (int64, error)

	// Close cleanly shuts down the ledger.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the ledger is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
