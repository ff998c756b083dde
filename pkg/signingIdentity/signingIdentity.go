package signingIdentity

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ISigningIdentity is an opaque private-key capability. SignHash signs a 32-byte hash as-is
// and returns a 65-byte r || s || v signature with v in {27, 28}.
type ISigningIdentity interface {
	Address() common.Address
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// RecoverAddress recovers the address that produced sig over hash. v may be 0/1 or 27/28.
func RecoverAddress(hash common.Hash, sig []byte) (common.Address, error) {
	recoverable, err := types.ToRecoverableSignature(sig)
	if err != nil {
		return common.Address{}, err
	}
	pubKey, err := crypto.SigToPub(hash[:], recoverable)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", types.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignedBy checks that sig over hash recovers to expected.
func VerifySignedBy(hash common.Hash, sig []byte, expected common.Address) error {
	recovered, err := RecoverAddress(hash, sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return fmt.Errorf("signature recovers to %s, expected %s", recovered.Hex(), expected.Hex())
	}
	return nil
}
