package awsKmsSigningIdentity

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type derSignature struct {
	R *big.Int
	S *big.Int
}

// fakeKMS signs with an in-memory key and answers in the DER formats KMS uses.
type fakeKMS struct {
	key       *cryptoEcdsa.PrivateKey
	keyId     string
	highS     bool
	signCalls int
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if aws.ToString(params.KeyId) != f.keyId {
		return nil, fmt.Errorf("key %s not found", aws.ToString(params.KeyId))
	}
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1},
			Parameters: asn1.ObjectIdentifier{1, 3, 132, 0, 10},
		},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signCalls++
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(derSignature{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: der}, nil
}

func newFakeKMS(t *testing.T) *fakeKMS {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeKMS{key: key, keyId: "test-kms-key"}
}

func TestNewAWSKMSSigningIdentity_DerivesAddress(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	fake := newFakeKMS(t)

	identity, err := NewAWSKMSSigningIdentityWithClient(context.Background(), fake, fake.keyId, l)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), identity.Address())
	assert.Equal(t, fake.keyId, identity.KeyId())

	_, err = NewAWSKMSSigningIdentityWithClient(context.Background(), fake, "missing", l)
	assert.Error(t, err)

	_, err = NewAWSKMSSigningIdentityWithClient(context.Background(), fake, "", l)
	assert.Error(t, err)
}

func TestAWSKMSSigningIdentity_SignHash(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	for _, highS := range []bool{false, true} {
		t.Run(fmt.Sprintf("highS=%v", highS), func(t *testing.T) {
			fake := newFakeKMS(t)
			fake.highS = highS

			identity, err := NewAWSKMSSigningIdentityWithClient(context.Background(), fake, fake.keyId, l)
			require.NoError(t, err)

			for i := 0; i < 8; i++ {
				hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("message-%d", i)))
				sig, err := identity.SignHash(context.Background(), hash)
				require.NoError(t, err)
				require.Len(t, sig, 65)
				assert.Contains(t, []byte{27, 28}, sig[64])

				s := new(big.Int).SetBytes(sig[32:64])
				assert.True(t, s.Cmp(secp256k1HalfN) <= 0, "s must be canonical")

				recovered, err := signingIdentity.RecoverAddress(hash, sig)
				require.NoError(t, err)
				assert.Equal(t, identity.Address(), recovered)
			}
			assert.Equal(t, 8, fake.signCalls)
		})
	}
}

func TestDerToEthereumSignature_WrongKey(t *testing.T) {
	fake := newFakeKMS(t)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash := crypto.Keccak256Hash([]byte("payload"))
	out, err := fake.Sign(context.Background(), &kms.SignInput{KeyId: aws.String(fake.keyId), Message: hash[:]})
	require.NoError(t, err)

	_, err = derToEthereumSignature(hash, out.Signature, &other.PublicKey)
	assert.Error(t, err)

	_, err = derToEthereumSignature(hash, []byte{0x01, 0x02}, &fake.key.PublicKey)
	assert.Error(t, err)
}
