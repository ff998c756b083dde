package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of INonceLedger.
//
// All data is stored in memory and will be lost when the process exits, which re-opens
// every consumed nonce to replay. Thread-safe using sync.RWMutex; ConsumeNonce holds the
// write lock across the check and the insert. Records are copied in and out to prevent
// external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// nonce -> audit record
	nonces map[types.Nonce]types.ConsumedNonce

	// Closed flag
	closed bool
}

var _ persistence.INonceLedger = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory nonce ledger.
// Prints a loud warning since replay protection does not survive a restart.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory nonce ledger - CONSUMED NONCES ARE FORGOTTEN ON RESTART")

	return &MemoryPersistence{
		nonces: make(map[types.Nonce]types.ConsumedNonce),
	}
}

// ConsumeNonce atomically marks a nonce as used.
func (m *MemoryPersistence) ConsumeNonce(ctx context.Context, record *types.ConsumedNonce) error {
	if record == nil {
		return fmt.Errorf("cannot consume nil ConsumedNonce")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	if _, exists := m.nonces[record.Nonce]; exists {
		return types.ErrNonceAlreadyUsed
	}
	m.nonces[record.Nonce] = *record
	return nil
}

// IsNonceConsumed reports whether a nonce has been used.
func (m *MemoryPersistence) IsNonceConsumed(ctx context.Context, nonce types.Nonce) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, persistence.ErrClosed
	}

	_, exists := m.nonces[nonce]
	return exists, nil
}

// LoadConsumedNonce returns a copy of the audit record, or nil if the nonce is unused.
func (m *MemoryPersistence) LoadConsumedNonce(ctx context.Context, nonce types.Nonce) (*types.ConsumedNonce, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.nonces[nonce]
	if !exists {
		return nil, nil
	}
	return &record, nil
}

// CountConsumedNonces returns the number of consumed nonces.
func (m *MemoryPersistence) CountConsumedNonces(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, persistence.ErrClosed
	}

	return int64(len(m.nonces)), nil
}

// Close shuts down the ledger.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the ledger is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
