package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixNonce       = "sigval:nonce:"
	keySchemaVersion     = "sigval:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index set for counting (Redis doesn't support prefix iteration natively)
	keySetNonces = "sigval:nonces:index"

	operationTimeout = 5 * time.Second
)

// consumeScript inserts the nonce record only if absent and indexes it, as one atomic
// server-side step. Returns 1 when consumed, 0 when the nonce was already used.
var consumeScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
return 1
`)

// RedisPersistence is a nonce ledger backed by Redis.
// Several verifier processes sharing one Redis and key prefix share one ledger: the
// consume script is atomic across all of them.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.INonceLedger = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:sigval:nonce:0x...". If empty, keys use the default "sigval:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed nonce ledger.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis nonce ledger initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis nonce ledger initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) nonceKey(nonce types.Nonce) string {
	return r.prefixKey(keyPrefixNonce + persistence.NonceKey(nonce))
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// ConsumeNonce atomically marks a nonce as used via the consume script.
func (r *RedisPersistence) ConsumeNonce(ctx context.Context, record *types.ConsumedNonce) error {
	if record == nil {
		return fmt.Errorf("cannot consume nil ConsumedNonce")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalConsumedNonce(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ConsumedNonce: %w", err)
	}

	keys := []string{r.nonceKey(record.Nonce), r.prefixKey(keySetNonces)}
	consumed, err := consumeScript.Run(ctx, r.client, keys, data, persistence.NonceKey(record.Nonce)).Int()
	if err != nil {
		return fmt.Errorf("failed to consume nonce in Redis: %w", err)
	}
	if consumed == 0 {
		return types.ErrNonceAlreadyUsed
	}
	return nil
}

// IsNonceConsumed reports whether a nonce has been used.
func (r *RedisPersistence) IsNonceConsumed(ctx context.Context, nonce types.Nonce) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, persistence.ErrClosed
	}

	n, err := r.client.Exists(ctx, r.nonceKey(nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check nonce in Redis: %w", err)
	}
	return n == 1, nil
}

// LoadConsumedNonce retrieves the audit record of a consumed nonce
func (r *RedisPersistence) LoadConsumedNonce(ctx context.Context, nonce types.Nonce) (*types.ConsumedNonce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(ctx, r.nonceKey(nonce)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ConsumedNonce from Redis: %w", err)
	}

	record, err := persistence.UnmarshalConsumedNonce(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ConsumedNonce: %w", err)
	}
	return record, nil
}

// CountConsumedNonces returns the size of the nonce index set
func (r *RedisPersistence) CountConsumedNonces(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, persistence.ErrClosed
	}

	count, err := r.client.SCard(ctx, r.prefixKey(keySetNonces)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count nonces in Redis: %w", err)
	}
	return count, nil
}

// Close shuts down the ledger
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis nonce ledger closed")
	return nil
}

// HealthCheck verifies the ledger is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	// Verify schema version exists
	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
