// Package digest builds the 32-byte message digests that validators sign.
package digest

import (
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BuildDigest hashes packed parameters, appending the nonce when one is given:
//
//	nonce == nil: keccak256(encoded)
//	nonce != nil: keccak256(encoded ‖ nonce)
func BuildDigest(encoded []byte, nonce *types.Nonce) common.Hash {
	if nonce == nil {
		return crypto.Keccak256Hash(encoded)
	}
	return crypto.Keccak256Hash(encoded, nonce[:])
}

// BuildParamsDigest encodes params and hashes them with BuildDigest.
func BuildParamsDigest(params encoding.ParameterList, nonce *types.Nonce) common.Hash {
	return BuildDigest(encoding.Encode(params), nonce)
}

// PersonalMessageHash applies the EIP-191 personal message prefix to a digest:
// keccak256("\x19Ethereum Signed Message:\n32" ‖ digest). This is the hash that is
// actually signed and recovered.
func PersonalMessageHash(digest common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(digest[:]))
}
