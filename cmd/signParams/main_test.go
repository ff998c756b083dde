package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Layr-Labs/signature-validator-go/pkg/config"
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence/memory"
	"github.com/Layr-Labs/signature-validator-go/pkg/signer"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet/staticValidatorSet"
	"github.com/Layr-Labs/signature-validator-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var (
	testTypes  = []string{"uint256", "address"}
	testValues = []interface{}{"1208394723", "0xF1dF824419879Bb8a7E758173523F88EfB7Af193"}
)

func newTestSigner(t *testing.T) (*signer.Signer, *verifier.Verifier) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	identity, err := buildSigningIdentity(context.Background(), &config.SignerConfig{PrivateKey: testPrivateKey}, l)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(testAddress), identity.Address())

	validators := staticValidatorSet.NewStaticValidatorSet([]common.Address{identity.Address()}, l)
	return signer.NewSigner(identity, l), verifier.NewVerifier(validators, memory.NewMemoryPersistence(), nil, l)
}

func TestSignParams_RandomNonce(t *testing.T) {
	ctx := context.Background()
	s, v := newTestSigner(t)

	signed, err := signParams(ctx, s, testTypes, testValues, "", false)
	require.NoError(t, err)
	require.NotNil(t, signed.Nonce)
	assert.Equal(t, common.HexToAddress(testAddress), signed.Signer)

	encoded, err := encoding.EncodeValues(testTypes, testValues)
	require.NoError(t, err)
	require.NoError(t, v.ValidateSignature(ctx, encoded, signed.Nonce[:], signed.Signature))
}

func TestSignParams_ExplicitNonce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	nonceHex := "0x0101010101010101010101010101010101010101010101010101010101010101"
	signed, err := signParams(ctx, s, testTypes, testValues, nonceHex, false)
	require.NoError(t, err)
	assert.Equal(t, nonceHex, signed.Nonce.Hex())

	_, err = signParams(ctx, s, testTypes, testValues, "0x0102", false)
	require.ErrorIs(t, err, types.ErrInvalidNonceLength)
}

func TestSignParams_NoNonce(t *testing.T) {
	ctx := context.Background()
	s, v := newTestSigner(t)

	signed, err := signParams(ctx, s, testTypes, testValues, "", true)
	require.NoError(t, err)
	assert.Nil(t, signed.Nonce)

	ok, err := v.IsSignedByAuthority(ctx, signed.Digest, signed.Signature)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignParams_InvalidValues(t *testing.T) {
	s, _ := newTestSigner(t)

	_, err := signParams(context.Background(), s, []string{"uint8"}, []interface{}{"256"}, "", false)
	require.ErrorIs(t, err, types.ErrInvalidValue)

	_, err = signParams(context.Background(), s, testTypes, testValues[:1], "", true)
	require.ErrorIs(t, err, types.ErrInvalidValue)
}

func TestWriteJSON(t *testing.T) {
	s, _ := newTestSigner(t)
	signed, err := signParams(context.Background(), s, testTypes, testValues, "", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, signed))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "signature")
	assert.Contains(t, decoded, "nonce")
	assert.Contains(t, decoded, "signer")
	assert.Contains(t, decoded, "digest")
}
