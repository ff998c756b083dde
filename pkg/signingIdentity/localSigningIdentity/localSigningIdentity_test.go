package localSigningIdentity

import (
	"context"
	"testing"

	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPrivateKeyHex = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress       = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func testLogger(t *testing.T) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	return l
}

func TestNewLocalSigningIdentityFromHex(t *testing.T) {
	identity, err := NewLocalSigningIdentityFromHex(testPrivateKeyHex, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(testAddress), identity.Address())
	assert.Contains(t, identity.KeyId(), "local-key-")
}

func TestNewLocalSigningIdentity_InvalidKey(t *testing.T) {
	_, err := NewLocalSigningIdentity(nil, testLogger(t))
	assert.Error(t, err)

	_, err = NewLocalSigningIdentityFromHex("0xnothex", testLogger(t))
	assert.Error(t, err)
}

func TestLocalSigningIdentity_SignHash(t *testing.T) {
	ctx := context.Background()
	identity, err := NewLocalSigningIdentityFromHex(testPrivateKeyHex, testLogger(t))
	require.NoError(t, err)

	hash := crypto.Keccak256Hash([]byte("hello"))
	sig, err := identity.SignHash(ctx, hash)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := signingIdentity.RecoverAddress(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, identity.Address(), recovered)

	other := crypto.Keccak256Hash([]byte("world"))
	recovered, err = signingIdentity.RecoverAddress(other, sig)
	require.NoError(t, err)
	assert.NotEqual(t, identity.Address(), recovered)
}

func TestGenerateLocalSigningIdentity(t *testing.T) {
	a, err := GenerateLocalSigningIdentity(testLogger(t))
	require.NoError(t, err)
	b, err := GenerateLocalSigningIdentity(testLogger(t))
	require.NoError(t, err)

	assert.NotEqual(t, a.Address(), b.Address())
	assert.NotEqual(t, a.KeyId(), b.KeyId())
}
