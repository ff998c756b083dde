package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TypedParam is the wire form of one typed parameter, e.g. {"type":"uint256","value":"42"}.
// Value is kept raw so integers survive JSON without float rounding.
type TypedParam struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ValidateRequest asks the verifier to validate and consume a nonce-bearing signature.
// Exactly one of Params or EncodedParams must be present. A present but empty field is an
// empty parameter list; Params marshals a nil slice as null, which reads back as absent.
type ValidateRequest struct {
	Params        []TypedParam  `json:"params"`
	EncodedParams hexutil.Bytes `json:"encodedParams,omitempty"`
	Nonce         hexutil.Bytes `json:"nonce"`
	Signature     hexutil.Bytes `json:"signature"`
}

type ValidateResponse struct {
	Valid  bool           `json:"valid"`
	Signer common.Address `json:"signer"`
	Nonce  Nonce          `json:"nonce"`
}

// AuthorityRequest checks a signature over a bare 32-byte digest with no nonce involvement.
type AuthorityRequest struct {
	Digest    common.Hash   `json:"digest"`
	Signature hexutil.Bytes `json:"signature"`
}

type AuthorityResponse struct {
	SignedByAuthority bool `json:"signedByAuthority"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ConsumedNonces int64  `json:"consumedNonces"`
}

// SignedParams is the output of signing a parameter list.
type SignedParams struct {
	Signature hexutil.Bytes  `json:"signature"`
	Nonce     *Nonce         `json:"nonce,omitempty"`
	Signer    common.Address `json:"signer"`
	Digest    common.Hash    `json:"digest"`
}
