package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Layr-Labs/signature-validator-go/internal/aws"
	"github.com/Layr-Labs/signature-validator-go/pkg/config"
	"github.com/Layr-Labs/signature-validator-go/pkg/digest"
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/signer"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity/awsKmsSigningIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/signingIdentity/localSigningIdentity"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "sign-params",
		Usage: "Sign a list of typed parameters as a validator",
		Description: `Packs the values with their Solidity types, hashes them together with a 32-byte
nonce and signs the result with the EIP-191 personal message prefix.

Example:
  sign-params --types uint256,address --values 1208394723,0xF1dF824419879Bb8a7E758173523F88EfB7Af193 \
    --private-key $SIGNER_PRIVATE_KEY`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "types",
				Usage:    "Comma separated Solidity types, e.g. uint256,address",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "values",
				Usage:    "Comma separated values, one per type",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "nonce",
				Usage: "0x-prefixed 32-byte nonce. A random nonce is used when omitted",
			},
			&cli.BoolFlag{
				Name:  "no-nonce",
				Usage: "Sign the plain parameter digest without a nonce",
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Hex encoded secp256k1 private key",
				EnvVars: []string{config.EnvSignerPrivateKey},
			},
			&cli.StringFlag{
				Name:    "aws-kms-key-id",
				Usage:   "AWS KMS key id, ARN or alias of an ECC_SECG_P256K1 signing key",
				EnvVars: []string{config.EnvSignerAWSKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override for KMS",
				EnvVars: []string{config.EnvSignerAWSRegion},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Action: runSignParams,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runSignParams(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	if c.IsSet("nonce") && c.Bool("no-nonce") {
		return fmt.Errorf("--nonce and --no-nonce are mutually exclusive")
	}

	signerCfg := &config.SignerConfig{
		PrivateKey:  c.String("private-key"),
		AWSKMSKeyID: c.String("aws-kms-key-id"),
		AWSRegion:   c.String("aws-region"),
	}
	if err := signerCfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	identity, err := buildSigningIdentity(c.Context, signerCfg, l)
	if err != nil {
		return err
	}

	typeNames := c.StringSlice("types")
	rawValues := c.StringSlice("values")
	values := make([]interface{}, len(rawValues))
	for i, v := range rawValues {
		values[i] = v
	}

	signed, err := signParams(c.Context, signer.NewSigner(identity, l), typeNames, values, c.String("nonce"), c.Bool("no-nonce"))
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, signed)
}

func buildSigningIdentity(ctx context.Context, cfg *config.SignerConfig, l *zap.Logger) (signingIdentity.ISigningIdentity, error) {
	if cfg.PrivateKey != "" {
		return localSigningIdentity.NewLocalSigningIdentityFromHex(cfg.PrivateKey, l)
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	if identity, err := aws.GetCallerIdentity(ctx, awsCfg); err == nil {
		l.Sugar().Debugw("Using AWS identity", "arn", *identity.Arn)
	} else {
		l.Sugar().Warnw("Failed to resolve AWS caller identity", "error", err)
	}
	return awsKmsSigningIdentity.NewAWSKMSSigningIdentity(ctx, awsCfg, cfg.AWSKMSKeyID, l)
}

// signParams signs values against their type names. With noNonce the plain parameter digest is
// signed; otherwise nonceHex is used, or a random nonce when it is empty.
func signParams(ctx context.Context, s *signer.Signer, typeNames []string, values []interface{}, nonceHex string, noNonce bool) (*types.SignedParams, error) {
	if noNonce {
		params, err := encoding.ParseAll(typeNames, values)
		if err != nil {
			return nil, err
		}
		sig, err := s.Sign(ctx, params, nil)
		if err != nil {
			return nil, err
		}
		return &types.SignedParams{
			Signature: sig,
			Signer:    s.Identity().Address(),
			Digest:    digest.BuildParamsDigest(params, nil),
		}, nil
	}

	var nonce []byte
	if nonceHex != "" {
		n, err := types.NewNonceFromHex(nonceHex)
		if err != nil {
			return nil, err
		}
		nonce = n[:]
	}
	return s.SignTypes(ctx, typeNames, values, nonce)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
