package awsKmsSigningIdentity

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the subset of the AWS KMS client used for signing.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSSigningIdentity signs with an ECC_SECG_P256K1 key held in AWS KMS. The private key
// never leaves KMS.
type AWSKMSSigningIdentity struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

var _ signingIdentity.ISigningIdentity = (*AWSKMSSigningIdentity)(nil)

func NewAWSKMSSigningIdentity(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSSigningIdentity, error) {
	return NewAWSKMSSigningIdentityWithClient(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSSigningIdentityWithClient fetches the key's public key once and derives its
// address.
func NewAWSKMSSigningIdentityWithClient(ctx context.Context, kmsClient KMSAPI, keyId string, logger *zap.Logger) (*AWSKMSSigningIdentity, error) {
	if keyId == "" {
		return nil, fmt.Errorf("KMS key id is required")
	}

	kmsPubKey, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	ecdsaPubKey, err := parseECDSAPublicKey(kmsPubKey.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	pk := &ecdsa.PublicKey{
		X: ecdsaPubKey.X,
		Y: ecdsaPubKey.Y,
	}
	addr, err := pk.DeriveAddress()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive Ethereum address from public key for key %s", keyId)
	}

	logger.Sugar().Infow("Loaded AWS KMS signing identity",
		"keyId", keyId,
		"address", addr.String(),
	)

	return &AWSKMSSigningIdentity{
		logger:    logger,
		kmsClient: kmsClient,
		keyId:     keyId,
		publicKey: ecdsaPubKey,
		address:   addr,
	}, nil
}

func (a *AWSKMSSigningIdentity) KeyId() string {
	return a.keyId
}

func (a *AWSKMSSigningIdentity) Address() common.Address {
	return a.address
}

func (a *AWSKMSSigningIdentity) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          hash[:],
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", a.keyId)
	}

	sig, err := derToEthereumSignature(hash, signOutput.Signature, a.publicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert KMS signature for key %s", a.keyId)
	}

	a.logger.Sugar().Debugw("Signed hash with AWS KMS key",
		"keyId", a.keyId,
		"hash", hash.Hex(),
	)
	return sig, nil
}

// secp256k1 curve order, used for low-S canonicalization
var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// derToEthereumSignature converts a DER (r, s) signature into r || s || v. s is
// canonicalized to the lower half of the curve order and v is found by trial recovery
// against the expected public key.
func derToEthereumSignature(hash common.Hash, der []byte, expected *cryptoEcdsa.PublicKey) ([]byte, error) {
	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(der, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	signature := make([]byte, 65)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		signature[64] = recoveryId
		recovered, err := crypto.SigToPub(hash[:], signature)
		if err != nil {
			continue
		}
		if recovered.X.Cmp(expected.X) == 0 && recovered.Y.Cmp(expected.Y) == 0 {
			signature[64] = 27 + recoveryId
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

// parseECDSAPublicKey parses the DER-encoded SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}

	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}
