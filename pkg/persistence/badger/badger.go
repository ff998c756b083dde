package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixNonce       = "nonce:"
	keyNonceCount        = "metadata:nonce_count"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a durable nonce ledger using Badger.
// Provides disk-based storage with ACID guarantees; consumed nonces survive restarts.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	// writeMu serializes consume transactions so concurrent consumes of one nonce never
	// race inside Badger's optimistic concurrency control
	writeMu sync.Mutex
	closed  bool
}

var _ persistence.INonceLedger = (*BadgerPersistence)(nil)

// NewBadgerPersistence creates a new Badger-backed nonce ledger.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newLedgerLogger(logger)
	opts.SyncWrites = true // fsync on every consume
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Start background GC
	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger nonce ledger initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			// First time setup - set schema version
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func nonceKey(nonce types.Nonce) []byte {
	return []byte(keyPrefixNonce + persistence.NonceKey(nonce))
}

// ConsumeNonce checks and inserts the nonce inside one read-write transaction. The
// consumed-nonce counter is updated in the same transaction.
func (b *BadgerPersistence) ConsumeNonce(ctx context.Context, record *types.ConsumedNonce) error {
	if record == nil {
		return fmt.Errorf("cannot consume nil ConsumedNonce")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalConsumedNonce(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ConsumedNonce: %w", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		key := nonceKey(record.Nonce)
		_, err := txn.Get(key)
		if err == nil {
			return types.ErrNonceAlreadyUsed
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}

		count, err := readCount(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(keyNonceCount), encodeCount(count+1))
	})

	return consumeError(err)
}

// consumeError maps the result of the consume transaction. Only a stored nonce record proves a
// replay; a transaction conflict is a storage failure and leaves the nonce unconsumed.
func consumeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrNonceAlreadyUsed):
		return types.ErrNonceAlreadyUsed
	default:
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
}

// IsNonceConsumed reports whether a nonce has been used.
func (b *BadgerPersistence) IsNonceConsumed(ctx context.Context, nonce types.Nonce) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, persistence.ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(nonceKey(nonce))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}
	return exists, nil
}

// LoadConsumedNonce retrieves the audit record of a consumed nonce
func (b *BadgerPersistence) LoadConsumedNonce(ctx context.Context, nonce types.Nonce) (*types.ConsumedNonce, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(nonceKey(nonce))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ConsumedNonce: %w", err)
	}

	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalConsumedNonce(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ConsumedNonce: %w", err)
	}
	return record, nil
}

// CountConsumedNonces returns the number of consumed nonces
func (b *BadgerPersistence) CountConsumedNonces(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, persistence.ErrClosed
	}

	var count uint64
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		count, err = readCount(txn)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce count: %w", err)
	}
	return int64(count), nil
}

func readCount(txn *badgerdb.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keyNonceCount))
	if err == badgerdb.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var count uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid nonce count length: %d", len(val))
		}
		count = binary.BigEndian.Uint64(val)
		return nil
	})
	return count, err
}

func encodeCount(count uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return buf
}

// Close shuts down the ledger
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	// Stop GC goroutine
	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger nonce ledger closed")
	return nil
}

// HealthCheck verifies the ledger is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	// Try a simple read operation to verify database is accessible
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
