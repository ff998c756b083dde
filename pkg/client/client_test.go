package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence/memory"
	"github.com/Layr-Labs/signature-validator-go/pkg/server"
	"github.com/Layr-Labs/signature-validator-go/pkg/signer"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity/localSigningIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet/staticValidatorSet"
	"github.com/Layr-Labs/signature-validator-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTypes  = []string{"uint256", "address"}
	testValues = []interface{}{1208394723, "0xF1dF824419879Bb8a7E758173523F88EfB7Af193"}

	fastRetry = RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
)

func newTestBackend(t *testing.T) (*httptest.Server, *signer.Signer) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	identity, err := localSigningIdentity.GenerateLocalSigningIdentity(l)
	require.NoError(t, err)
	s := signer.NewSigner(identity, l)

	validators := staticValidatorSet.NewStaticValidatorSet([]common.Address{identity.Address()}, l)
	v := verifier.NewVerifier(validators, memory.NewMemoryPersistence(), nil, l)

	ts := httptest.NewServer(server.NewServer(v, nil, 0, l).GetHandler())
	t.Cleanup(ts.Close)
	return ts, s
}

func signedRequest(t *testing.T, s *signer.Signer) (*types.SignedParams, *types.ValidateRequest) {
	signed, err := s.SignTypes(context.Background(), testTypes, testValues, nil)
	require.NoError(t, err)

	params, err := encoding.EncodeValues(testTypes, testValues)
	require.NoError(t, err)

	return signed, &types.ValidateRequest{
		EncodedParams: params,
		Nonce:         signed.Nonce[:],
		Signature:     signed.Signature,
	}
}

func TestValidatorClient_Validate(t *testing.T) {
	ctx := context.Background()
	ts, s := newTestBackend(t)
	c := NewValidatorClient(ts.URL, fastRetry)

	signed, req := signedRequest(t, s)

	resp, err := c.Validate(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, s.Identity().Address(), resp.Signer)
	assert.Equal(t, *signed.Nonce, resp.Nonce)

	_, err = c.Validate(ctx, req)
	require.ErrorIs(t, err, types.ErrNonceAlreadyUsed)

	req.Nonce = req.Nonce[:8]
	_, err = c.Validate(ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidNonceLength)
}

func TestValidatorClient_Validate_Unauthorized(t *testing.T) {
	ctx := context.Background()
	ts, _ := newTestBackend(t)
	c := NewValidatorClient(ts.URL, fastRetry)

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	stranger, err := localSigningIdentity.GenerateLocalSigningIdentity(l)
	require.NoError(t, err)

	_, req := signedRequest(t, signer.NewSigner(stranger, l))
	_, err = c.Validate(ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestValidatorClient_IsSignedByAuthority(t *testing.T) {
	ctx := context.Background()
	ts, s := newTestBackend(t)
	c := NewValidatorClient(ts.URL, fastRetry)

	signed, _ := signedRequest(t, s)

	ok, err := c.IsSignedByAuthority(ctx, signed.Digest, signed.Signature)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsSignedByAuthority(ctx, common.Hash{0x01}, signed.Signature)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidatorClient_Health(t *testing.T) {
	ts, _ := newTestBackend(t)
	c := NewValidatorClient(ts.URL, fastRetry)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, int64(0), health.ConsumedNonces)
}

func TestValidatorClient_DoesNotRetryRejections(t *testing.T) {
	var hits int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Validator: Nonce already used"}`))
	}))
	defer ts.Close()

	c := NewValidatorClient(ts.URL, fastRetry)
	_, err := c.Validate(context.Background(), &types.ValidateRequest{})
	require.ErrorIs(t, err, types.ErrNonceAlreadyUsed)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestValidatorClient_RetriesTransportErrors(t *testing.T) {
	var hits int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			// Drop the first connection without a response
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","consumedNonces":3}`))
	}))
	defer ts.Close()

	c := NewValidatorClient(ts.URL, fastRetry)
	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), health.ConsumedNonces)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestValidatorClient_GivesUpAfterMaxAttempts(t *testing.T) {
	// Reserve a port and close it so every dial is refused
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	c := NewValidatorClient("http://"+addr, fastRetry)
	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call health")
}
