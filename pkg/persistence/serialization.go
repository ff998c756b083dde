package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/signature-validator-go/pkg/types"
)

// MarshalConsumedNonce serializes a ledger record to JSON bytes.
func MarshalConsumedNonce(cn *types.ConsumedNonce) ([]byte, error) {
	if cn == nil {
		return nil, fmt.Errorf("cannot marshal nil ConsumedNonce")
	}

	data, err := json.Marshal(cn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ConsumedNonce to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalConsumedNonce deserializes a ledger record from JSON bytes.
func UnmarshalConsumedNonce(data []byte) (*types.ConsumedNonce, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var cn types.ConsumedNonce
	if err := json.Unmarshal(data, &cn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to ConsumedNonce: %w", err)
	}

	return &cn, nil
}

// NonceKey is the storage key suffix for a nonce: its lowercase 0x-prefixed hex form.
func NonceKey(nonce types.Nonce) string {
	return nonce.Hex()
}
