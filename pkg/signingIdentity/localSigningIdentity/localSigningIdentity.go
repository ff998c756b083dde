package localSigningIdentity

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalSigningIdentity holds a secp256k1 private key in process memory.
type LocalSigningIdentity struct {
	logger     *zap.Logger
	keyId      string
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ signingIdentity.ISigningIdentity = (*LocalSigningIdentity)(nil)

func NewLocalSigningIdentity(privateKey *ecdsa.PrivateKey, logger *zap.Logger) (*LocalSigningIdentity, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	address, err := privateKey.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive Ethereum address from private key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())

	logger.Info("Loaded local signing identity",
		zap.String("keyId", keyId),
		zap.String("address", address.String()),
	)

	return &LocalSigningIdentity{
		logger:     logger,
		keyId:      keyId,
		privateKey: privateKey,
		address:    address,
	}, nil
}

// NewLocalSigningIdentityFromHex loads a private key from a hex string. The hex string can
// optionally start with "0x".
func NewLocalSigningIdentityFromHex(privateKeyHex string, logger *zap.Logger) (*LocalSigningIdentity, error) {
	privateKey, err := ecdsa.NewPrivateKeyFromHexString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return NewLocalSigningIdentity(privateKey, logger)
}

// GenerateLocalSigningIdentity creates an identity backed by a freshly generated key.
func GenerateLocalSigningIdentity(logger *zap.Logger) (*LocalSigningIdentity, error) {
	privateKey, _, err := ecdsa.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewLocalSigningIdentity(privateKey, logger)
}

func (l *LocalSigningIdentity) KeyId() string {
	return l.keyId
}

func (l *LocalSigningIdentity) Address() common.Address {
	return l.address
}

func (l *LocalSigningIdentity) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	signature, err := l.privateKey.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash with key %s: %w", l.keyId, err)
	}

	sigBytes, err := types.ToEthereumSignature(signature.Bytes())
	if err != nil {
		return nil, fmt.Errorf("unexpected signature format from key %s: %w", l.keyId, err)
	}

	if err := signingIdentity.VerifySignedBy(hash, sigBytes, l.address); err != nil {
		return nil, fmt.Errorf("signature produced by key %s does not verify: %w", l.keyId, err)
	}

	l.logger.Debug("Signed hash with local key",
		zap.String("keyId", l.keyId),
		zap.String("hash", hash.Hex()),
	)

	return sigBytes, nil
}
