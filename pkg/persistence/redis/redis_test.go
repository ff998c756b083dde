package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigner = common.HexToAddress("0xF1dF824419879Bb8a7E758173523F88EfB7Af193")

// newTestRedis starts an in-process Redis server and connects a ledger to it
func newTestRedis(t *testing.T, keyPrefix string) (*RedisPersistence, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	rp, err := NewRedisPersistence(&RedisConfig{
		Address:   mr.Addr(),
		KeyPrefix: keyPrefix,
	}, testLogger)
	require.NoError(t, err)

	return rp, mr
}

func newRecord(t *testing.T) *types.ConsumedNonce {
	nonce, err := types.RandomNonce()
	require.NoError(t, err)
	return types.NewConsumedNonce(nonce, testSigner)
}

func TestRedisPersistence_NewRedisPersistence_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address cannot be empty")
}

func TestRedisPersistence_ConsumeAndLoad(t *testing.T) {
	ctx := context.Background()
	rp, mr := newTestRedis(t, "")
	defer func() { _ = rp.Close() }()

	record := newRecord(t)

	// Unused before consumption
	consumed, err := rp.IsNonceConsumed(ctx, record.Nonce)
	require.NoError(t, err)
	assert.False(t, consumed)

	loaded, err := rp.LoadConsumedNonce(ctx, record.Nonce)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Consume
	require.NoError(t, rp.ConsumeNonce(ctx, record))

	// Verify
	consumed, err = rp.IsNonceConsumed(ctx, record.Nonce)
	require.NoError(t, err)
	assert.True(t, consumed)

	loaded, err = rp.LoadConsumedNonce(ctx, record.Nonce)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record, loaded)

	count, err := rp.CountConsumedNonces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.True(t, mr.Exists(keyPrefixNonce+record.Nonce.Hex()))
}

func TestRedisPersistence_ConsumeNonce_Twice(t *testing.T) {
	ctx := context.Background()
	rp, _ := newTestRedis(t, "")
	defer func() { _ = rp.Close() }()

	record := newRecord(t)
	require.NoError(t, rp.ConsumeNonce(ctx, record))

	err := rp.ConsumeNonce(ctx, types.NewConsumedNonce(record.Nonce, common.HexToAddress("0x01")))
	require.ErrorIs(t, err, types.ErrNonceAlreadyUsed)

	count, err := rp.CountConsumedNonces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	loaded, err := rp.LoadConsumedNonce(ctx, record.Nonce)
	require.NoError(t, err)
	assert.Equal(t, testSigner, loaded.Signer)
}

func TestRedisPersistence_SharedLedgerAcrossInstances(t *testing.T) {
	ctx := context.Background()
	rp1, mr := newTestRedis(t, "tenant:")
	defer func() { _ = rp1.Close() }()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	rp2, err := NewRedisPersistence(&RedisConfig{Address: mr.Addr(), KeyPrefix: "tenant:"}, testLogger)
	require.NoError(t, err)
	defer func() { _ = rp2.Close() }()

	other, err := NewRedisPersistence(&RedisConfig{Address: mr.Addr(), KeyPrefix: "other:"}, testLogger)
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	record := newRecord(t)
	require.NoError(t, rp1.ConsumeNonce(ctx, record))

	// Same prefix shares the ledger
	err = rp2.ConsumeNonce(ctx, record)
	require.ErrorIs(t, err, types.ErrNonceAlreadyUsed)

	// A different prefix is a different ledger
	require.NoError(t, other.ConsumeNonce(ctx, record))

	assert.True(t, mr.Exists("tenant:"+keyPrefixNonce+record.Nonce.Hex()))
}

func TestRedisPersistence_ConcurrentConsume_SameNonce(t *testing.T) {
	ctx := context.Background()
	rp, _ := newTestRedis(t, "")
	defer func() { _ = rp.Close() }()

	record := newRecord(t)

	var wg sync.WaitGroup
	var successes, rejections int64
	numGoroutines := 20

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := rp.ConsumeNonce(ctx, types.NewConsumedNonce(record.Nonce, testSigner))
			switch {
			case err == nil:
				atomic.AddInt64(&successes, 1)
			case assert.ErrorIs(t, err, types.ErrNonceAlreadyUsed):
				atomic.AddInt64(&rejections, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)
	assert.Equal(t, int64(numGoroutines-1), rejections)
}

func TestRedisPersistence_SchemaVersionMismatch(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set(keySchemaVersion, "v0"))

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	_, err := NewRedisPersistence(&RedisConfig{Address: mr.Addr()}, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestRedisPersistence_Close(t *testing.T) {
	ctx := context.Background()
	rp, _ := newTestRedis(t, "")

	require.NoError(t, rp.Close())

	// Operations after close should fail
	err := rp.ConsumeNonce(ctx, newRecord(t))
	require.ErrorIs(t, err, persistence.ErrClosed)

	_, err = rp.IsNonceConsumed(ctx, types.Nonce{})
	require.Error(t, err)

	// Second close should also succeed
	require.NoError(t, rp.Close())
}

func TestRedisPersistence_HealthCheck(t *testing.T) {
	rp, mr := newTestRedis(t, "")
	defer func() { _ = rp.Close() }()

	require.NoError(t, rp.HealthCheck())

	// Schema key removed out from under the ledger
	mr.Del(keySchemaVersion)
	err := rp.HealthCheck()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version not found")
}
