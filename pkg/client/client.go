// Package client is an HTTP client for the signature validator server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

// RetryConfig configures retry behavior. Only transport failures are retried; a response from
// the server, including a rejection, is final.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    5,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// ValidatorClient calls a remote verifier over HTTP
type ValidatorClient struct {
	rest *resty.Client
}

// NewValidatorClient creates a client for the server at baseURL, e.g. "http://localhost:8080"
func NewValidatorClient(baseURL string, retry RetryConfig) *ValidatorClient {
	retryCount := retry.MaxAttempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	rest := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(retry.InitialBackoff).
		SetRetryMaxWaitTime(retry.MaxBackoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		})

	return &ValidatorClient{rest: rest}
}

// Validate asks the server to validate a signature and consume its nonce. Rejections are
// returned as the matching sentinel error from pkg/types.
func (c *ValidatorClient) Validate(ctx context.Context, req *types.ValidateRequest) (*types.ValidateResponse, error) {
	var result types.ValidateResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&types.ErrorResponse{}).
		Post("/v1/validate")
	if err != nil {
		return nil, fmt.Errorf("failed to call validate: %w", err)
	}
	if res.IsError() {
		return nil, responseError(res)
	}
	return &result, nil
}

// IsSignedByAuthority asks the server whether sig over digest comes from a validator
func (c *ValidatorClient) IsSignedByAuthority(ctx context.Context, digest common.Hash, sig []byte) (bool, error) {
	var result types.AuthorityResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetBody(&types.AuthorityRequest{Digest: digest, Signature: sig}).
		SetResult(&result).
		SetError(&types.ErrorResponse{}).
		Post("/v1/authority")
	if err != nil {
		return false, fmt.Errorf("failed to call authority check: %w", err)
	}
	if res.IsError() {
		return false, responseError(res)
	}
	return result.SignedByAuthority, nil
}

// Health returns the server's ledger health
func (c *ValidatorClient) Health(ctx context.Context) (*types.HealthResponse, error) {
	var result types.HealthResponse
	res, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&types.HealthResponse{}).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("failed to call health: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("validator server unhealthy: status %d", res.StatusCode())
	}
	return &result, nil
}

// responseError maps an error response back onto the error taxonomy
func responseError(res *resty.Response) error {
	msg := res.Status()
	if body, ok := res.Error().(*types.ErrorResponse); ok && body.Error != "" {
		msg = body.Error
	}

	switch res.StatusCode() {
	case http.StatusUnauthorized:
		return types.ErrInvalidSignature
	case http.StatusConflict:
		return types.ErrNonceAlreadyUsed
	case http.StatusBadRequest:
		if strings.HasPrefix(msg, types.ErrInvalidNonceLength.Error()) {
			return fmt.Errorf("%w: %s", types.ErrInvalidNonceLength, msg)
		}
		return fmt.Errorf("%w: %s", types.ErrInvalidValue, msg)
	default:
		return fmt.Errorf("validator server returned %d: %s", res.StatusCode(), msg)
	}
}
