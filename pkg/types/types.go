package types

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// NonceLength is the exact size of a replay-protection nonce in bytes
	NonceLength = 32

	// SignatureLength is the size of an r || s || v secp256k1 signature
	SignatureLength = 65
)

// Nonce is an opaque 32-byte value that makes a signature single-use.
type Nonce [NonceLength]byte

// NewNonce copies b into a Nonce. b must be exactly NonceLength bytes.
func NewNonce(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) != NonceLength {
		return n, fmt.Errorf("%w: got %d bytes", ErrInvalidNonceLength, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// NewNonceFromHex parses a 0x-prefixed hex nonce.
func NewNonceFromHex(s string) (Nonce, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Nonce{}, fmt.Errorf("%w: %v", ErrInvalidNonceLength, err)
	}
	return NewNonce(b)
}

// RandomNonce draws a nonce uniformly at random from crypto/rand.
func RandomNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("failed to read random nonce: %w", err)
	}
	return n, nil
}

func (n Nonce) Bytes() []byte {
	b := make([]byte, NonceLength)
	copy(b, n[:])
	return b
}

func (n Nonce) Hex() string {
	return hexutil.Encode(n[:])
}

func (n Nonce) String() string {
	return n.Hex()
}

func (n Nonce) MarshalText() ([]byte, error) {
	return []byte(n.Hex()), nil
}

func (n *Nonce) UnmarshalText(text []byte) error {
	parsed, err := NewNonceFromHex(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ConsumedNonce is the ledger record written when a nonce is accepted.
type ConsumedNonce struct {
	Nonce      Nonce          `json:"nonce"`
	Signer     common.Address `json:"signer"`
	ConsumedAt int64          `json:"consumedAt"` // unix seconds
}

// NewConsumedNonce stamps a record with the current time.
func NewConsumedNonce(nonce Nonce, signer common.Address) *ConsumedNonce {
	return &ConsumedNonce{
		Nonce:      nonce,
		Signer:     signer,
		ConsumedAt: time.Now().Unix(),
	}
}
