package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/signature-validator-go/internal/aws"
	"github.com/Layr-Labs/signature-validator-go/pkg/digest"
	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity/awsKmsSigningIdentity"
	"github.com/ethereum/go-ethereum/crypto"
)

// Prints the validator address behind a KMS key and checks that a probe signature made with
// the key recovers to that address.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	keyId := os.Getenv("KEY_ID")
	if keyId == "" {
		l.Sugar().Fatal("KEY_ID environment variable is not set")
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		l.Sugar().Fatalw("failed to load AWS config", "error", err)
	}

	identity, err := awsKmsSigningIdentity.NewAWSKMSSigningIdentity(ctx, awsCfg, keyId, l)
	if err != nil {
		l.Sugar().Fatalw("failed to load KMS signing identity", "error", err)
	}

	probe := digest.PersonalMessageHash(crypto.Keccak256Hash([]byte("signature-validator key probe")))
	sig, err := identity.SignHash(ctx, probe)
	if err != nil {
		l.Sugar().Fatalw("failed to sign probe", "error", err)
	}
	if err := signingIdentity.VerifySignedBy(probe, sig, identity.Address()); err != nil {
		l.Sugar().Fatalw("probe signature does not recover to the key address", "error", err)
	}

	l.Sugar().Infow("KMS key",
		"keyId", identity.KeyId(),
		"address", identity.Address().Hex(),
	)
}
