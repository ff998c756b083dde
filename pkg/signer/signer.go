// Package signer produces validator signatures over typed parameter lists.
package signer

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/signature-validator-go/pkg/digest"
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"go.uber.org/zap"
)

type Signer struct {
	identity signingIdentity.ISigningIdentity
	logger   *zap.Logger
}

func NewSigner(identity signingIdentity.ISigningIdentity, logger *zap.Logger) *Signer {
	return &Signer{
		identity: identity,
		logger:   logger,
	}
}

// Identity returns the signing identity backing this signer.
func (s *Signer) Identity() signingIdentity.ISigningIdentity {
	return s.identity
}

// Sign signs params, optionally bound to a nonce. A nil nonce signs the plain parameter
// digest; a non-nil nonce must be exactly 32 bytes.
func (s *Signer) Sign(ctx context.Context, params encoding.ParameterList, nonce []byte) ([]byte, error) {
	var n *types.Nonce
	if nonce != nil {
		parsed, err := types.NewNonce(nonce)
		if err != nil {
			return nil, err
		}
		n = &parsed
	}

	signed, err := s.signEncoded(ctx, encoding.Encode(params), n)
	if err != nil {
		return nil, err
	}
	return signed.Signature, nil
}

// SignWithNonce signs params bound to nonce, drawing a random nonce when none is given.
func (s *Signer) SignWithNonce(ctx context.Context, params encoding.ParameterList, nonce []byte) (*types.SignedParams, error) {
	n, err := resolveNonce(nonce)
	if err != nil {
		return nil, err
	}
	return s.signEncoded(ctx, encoding.Encode(params), &n)
}

// SignTypes is the dynamic form of SignWithNonce: values are parsed against the Solidity type
// names before signing.
func (s *Signer) SignTypes(ctx context.Context, typeNames []string, values []interface{}, nonce []byte) (*types.SignedParams, error) {
	params, err := encoding.ParseAll(typeNames, values)
	if err != nil {
		return nil, err
	}
	return s.SignWithNonce(ctx, params, nonce)
}

// SignDigest signs an already built digest. The EIP-191 personal prefix is applied here.
func (s *Signer) SignDigest(ctx context.Context, d [32]byte) ([]byte, error) {
	sig, err := s.identity.SignHash(ctx, digest.PersonalMessageHash(d))
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

func (s *Signer) signEncoded(ctx context.Context, encoded []byte, nonce *types.Nonce) (*types.SignedParams, error) {
	d := digest.BuildDigest(encoded, nonce)
	sig, err := s.SignDigest(ctx, d)
	if err != nil {
		return nil, err
	}

	s.logger.Sugar().Debugw("Signed parameters",
		"signer", s.identity.Address().String(),
		"digest", d.Hex(),
		"hasNonce", nonce != nil,
	)

	return &types.SignedParams{
		Signature: sig,
		Nonce:     nonce,
		Signer:    s.identity.Address(),
		Digest:    d,
	}, nil
}

func resolveNonce(nonce []byte) (types.Nonce, error) {
	if nonce == nil {
		return types.RandomNonce()
	}
	return types.NewNonce(nonce)
}
