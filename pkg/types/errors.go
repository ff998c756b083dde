package types

import "errors"

// Error taxonomy shared by the encoder, signer and verifier. Match with errors.Is.
var (
	// ErrInvalidValue means a parameter value does not fit its declared type.
	ErrInvalidValue = errors.New("invalid value for declared type")

	// ErrInvalidNonceLength means a supplied nonce is not exactly 32 bytes.
	ErrInvalidNonceLength = errors.New("Nonce must be exactly 32 bytes")

	// ErrInvalidSignature means the recovered signer is not an authorized validator.
	// It covers both a wrong signer and tampered parameters.
	ErrInvalidSignature = errors.New("Validator: Invalid signature")

	// ErrNonceAlreadyUsed means the nonce was consumed by an earlier validation.
	ErrNonceAlreadyUsed = errors.New("Validator: Nonce already used")
)
