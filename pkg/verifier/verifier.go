// Package verifier checks validator signatures and enforces single use of nonces.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Layr-Labs/signature-validator-go/pkg/digest"
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/metrics"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Verifier struct {
	validators validatorSet.IValidatorSet
	ledger     persistence.INonceLedger
	metrics    metrics.VerifierMetrics
	logger     *zap.Logger

	// consumeMu serializes the ledger check-and-insert across callers of this verifier
	consumeMu sync.Mutex
}

// NewVerifier creates a verifier over the given validator set and nonce ledger.
// A nil metrics records nothing.
func NewVerifier(validators validatorSet.IValidatorSet, ledger persistence.INonceLedger, m metrics.VerifierMetrics, logger *zap.Logger) *Verifier {
	if m == nil {
		m = metrics.NewNoopMetrics()
	}
	return &Verifier{
		validators: validators,
		ledger:     ledger,
		metrics:    m,
		logger:     logger,
	}
}

// Ledger returns the nonce ledger backing this verifier.
func (v *Verifier) Ledger() persistence.INonceLedger {
	return v.ledger
}

// RecoverSigner returns the address that signed the personal-message hash of d.
func (v *Verifier) RecoverSigner(d common.Hash, sig []byte) (common.Address, error) {
	return signingIdentity.RecoverAddress(digest.PersonalMessageHash(d), sig)
}

// IsSignedByAuthority reports whether sig over d recovers to a current validator.
// A malformed signature is reported as false, not as an error. Errors are only returned
// when the validator set cannot be read.
func (v *Verifier) IsSignedByAuthority(ctx context.Context, d common.Hash, sig []byte) (bool, error) {
	signer, err := v.RecoverSigner(d, sig)
	if err != nil {
		v.logger.Sugar().Debugw("Signature recovery failed", "digest", d.Hex(), "error", err)
		v.metrics.RecordAuthorityCheck(false)
		return false, nil
	}

	ok, err := v.isAuthority(ctx, signer)
	if err != nil {
		return false, err
	}
	v.metrics.RecordAuthorityCheck(ok)
	return ok, nil
}

// ValidateSignature checks that sig was produced by a validator over encodedParams bound to
// nonce, then consumes the nonce. Either both happen or neither does:
//   - ErrInvalidNonceLength when nonce is not 32 bytes
//   - ErrInvalidSignature when the signer is not a validator
//   - ErrNonceAlreadyUsed when the nonce was consumed before
func (v *Verifier) ValidateSignature(ctx context.Context, encodedParams []byte, nonce []byte, sig []byte) error {
	n, err := types.NewNonce(nonce)
	if err != nil {
		v.metrics.RecordValidation(metrics.ResultInvalidInput)
		return err
	}

	signer, err := v.authenticate(ctx, digest.BuildDigest(encodedParams, &n), sig)
	if err != nil {
		v.recordFailure(err)
		return err
	}

	if err := v.consume(ctx, n, signer); err != nil {
		v.recordFailure(err)
		return err
	}

	v.metrics.RecordValidation(metrics.ResultAccepted)
	v.logger.Sugar().Infow("Signature validated",
		"signer", signer.Hex(),
		"nonce", n.Hex(),
	)
	return nil
}

// TryToValidate encodes params and validates them with ValidateSignature.
func (v *Verifier) TryToValidate(ctx context.Context, params encoding.ParameterList, nonce []byte, sig []byte) error {
	return v.ValidateSignature(ctx, encoding.Encode(params), nonce, sig)
}

// authenticate recovers the signer of d and requires it to be a validator
func (v *Verifier) authenticate(ctx context.Context, d common.Hash, sig []byte) (common.Address, error) {
	signer, err := v.RecoverSigner(d, sig)
	if err != nil {
		v.logger.Sugar().Debugw("Signature recovery failed", "digest", d.Hex(), "error", err)
		return common.Address{}, types.ErrInvalidSignature
	}

	ok, err := v.isAuthority(ctx, signer)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		v.logger.Sugar().Debugw("Signer is not a validator", "signer", signer.Hex(), "digest", d.Hex())
		return common.Address{}, types.ErrInvalidSignature
	}
	return signer, nil
}

func (v *Verifier) isAuthority(ctx context.Context, signer common.Address) (bool, error) {
	// A zero address is what a degenerate recovery produces; it is never an authority
	if signer == (common.Address{}) {
		return false, nil
	}
	ok, err := v.validators.IsValidator(ctx, signer)
	if err != nil {
		return false, fmt.Errorf("failed to read validator set: %w", err)
	}
	return ok, nil
}

func (v *Verifier) consume(ctx context.Context, nonce types.Nonce, signer common.Address) error {
	v.consumeMu.Lock()
	defer v.consumeMu.Unlock()

	if err := v.ledger.ConsumeNonce(ctx, types.NewConsumedNonce(nonce, signer)); err != nil {
		if errors.Is(err, types.ErrNonceAlreadyUsed) {
			v.logger.Sugar().Warnw("Rejected replayed nonce", "signer", signer.Hex(), "nonce", nonce.Hex())
			return types.ErrNonceAlreadyUsed
		}
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nil
}

func (v *Verifier) recordFailure(err error) {
	switch {
	case errors.Is(err, types.ErrInvalidSignature):
		v.metrics.RecordValidation(metrics.ResultInvalidSignature)
	case errors.Is(err, types.ErrNonceAlreadyUsed):
		v.metrics.RecordValidation(metrics.ResultNonceUsed)
	case errors.Is(err, types.ErrInvalidValue), errors.Is(err, types.ErrInvalidNonceLength):
		v.metrics.RecordValidation(metrics.ResultInvalidInput)
	default:
		v.metrics.RecordValidation(metrics.ResultError)
	}
}
