package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/config"
	"github.com/Layr-Labs/signature-validator-go/pkg/logger"
	"github.com/Layr-Labs/signature-validator-go/pkg/metrics"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence"
	badgerPersistence "github.com/Layr-Labs/signature-validator-go/pkg/persistence/badger"
	"github.com/Layr-Labs/signature-validator-go/pkg/persistence/memory"
	redisPersistence "github.com/Layr-Labs/signature-validator-go/pkg/persistence/redis"
	"github.com/Layr-Labs/signature-validator-go/pkg/server"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet/contractValidatorSet"
	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet/staticValidatorSet"
	"github.com/Layr-Labs/signature-validator-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "validator-server",
		Usage: "Signature validator server",
		Description: `Validates signatures produced by authorized validators over typed parameters.

Each accepted signature consumes its 32-byte nonce, so the same signature can never be
accepted twice. Consumed nonces are kept in memory, in Badger on disk, or in Redis.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvSVPort},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Nonce ledger backend: memory, badger or redis",
				Value:   string(config.PersistenceTypeMemory),
				EnvVars: []string{config.EnvSVPersistence},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for the badger nonce ledger",
				EnvVars: []string{config.EnvSVBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis nonce ledger",
				EnvVars: []string{config.EnvSVRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvSVRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvSVRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for all Redis keys. Servers sharing a prefix share one ledger",
				EnvVars: []string{config.EnvSVRedisKeyPrefix},
			},
			&cli.StringSliceFlag{
				Name:    "validators",
				Usage:   "Comma separated validator addresses (static validator source)",
				EnvVars: []string{config.EnvSVValidators},
			},
			&cli.StringFlag{
				Name:    "validators-file",
				Usage:   "YAML file with a 'validators' list of addresses",
				EnvVars: []string{config.EnvSVValidatorsFile},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL (contract validator source)",
				EnvVars: []string{config.EnvSVRPCURL},
			},
			&cli.StringFlag{
				Name:    "registry-address",
				Usage:   "Address of a contract exposing isValidator(address) returns (bool)",
				EnvVars: []string{config.EnvSVRegistryAddress},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Usage:   fmt.Sprintf("Expected chain ID of the RPC endpoint: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvSVChainID},
			},
			&cli.BoolFlag{
				Name:    "metrics",
				Usage:   "Serve prometheus metrics on /metrics",
				Value:   true,
				EnvVars: []string{config.EnvSVMetrics},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvSVVerbose},
			},
		},
		Action: runValidatorServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runValidatorServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := buildLedger(cfg, l)
	if err != nil {
		return err
	}

	validators, err := buildValidatorSet(ctx, cfg, l)
	if err != nil {
		_ = ledger.Close()
		return err
	}

	var registry *prometheus.Registry
	var verifierMetrics metrics.VerifierMetrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		verifierMetrics = metrics.InitMetrics(ctx, registry)
	}

	v := verifier.NewVerifier(validators, ledger, verifierMetrics, l)
	srv := server.NewServer(v, registry, cfg.Port, l)

	l.Sugar().Infow("Starting validator server",
		"port", cfg.Port,
		"persistence", cfg.PersistenceType,
		"validator_source", cfg.ValidatorSource,
		"metrics", cfg.MetricsEnabled,
	)
	if err := srv.Start(); err != nil {
		closeValidatorSet(validators)
		_ = ledger.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Available endpoints",
		"validate", "POST /v1/validate",
		"authority", "POST /v1/authority",
		"health", "GET /health")

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(shutdownCtx, srv, validators, ledger)
}

// shutdown stops the server before releasing the validator set and closing the ledger so no
// request consumes a nonce against a closed store
func shutdown(ctx context.Context, srv *server.Server, validators validatorSet.IValidatorSet, ledger persistence.INonceLedger) error {
	var result *multierror.Error
	if err := srv.Stop(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to stop server: %w", err))
	}
	closeValidatorSet(validators)
	if err := ledger.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close ledger: %w", err))
	}
	return result.ErrorOrNil()
}

func parseServerConfig(c *cli.Context) *config.VerifierServerConfig {
	var validators []string
	for _, v := range c.StringSlice("validators") {
		if v = strings.TrimSpace(v); v != "" {
			validators = append(validators, v)
		}
	}

	source := config.ValidatorSourceStatic
	switch {
	case c.String("registry-address") != "":
		source = config.ValidatorSourceContract
	case c.String("validators-file") != "":
		source = config.ValidatorSourceFile
	}

	return &config.VerifierServerConfig{
		Port:            c.Int("port"),
		PersistenceType: config.PersistenceType(c.String("persistence")),
		BadgerDir:       c.String("badger-dir"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		ValidatorSource: source,
		Validators:      validators,
		ValidatorsFile:  c.String("validators-file"),
		RpcUrl:          c.String("rpc-url"),
		RegistryAddress: c.String("registry-address"),
		ChainID:         config.ChainId(c.Uint64("chain-id")),
		MetricsEnabled:  c.Bool("metrics"),
		Debug:           c.Bool("verbose"),
	}
}

func buildLedger(cfg *config.VerifierServerConfig, l *zap.Logger) (persistence.INonceLedger, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceTypeBadger:
		ledger, err := badgerPersistence.NewBadgerPersistence(cfg.BadgerDir, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger ledger: %w", err)
		}
		return ledger, nil
	case config.PersistenceTypeRedis:
		ledger, err := redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis ledger: %w", err)
		}
		return ledger, nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
}

// closeValidatorSet releases connections held by sets that dial out, such as the contract set
func closeValidatorSet(validators validatorSet.IValidatorSet) {
	if c, ok := validators.(interface{ Close() }); ok {
		c.Close()
	}
}

func buildValidatorSet(ctx context.Context, cfg *config.VerifierServerConfig, l *zap.Logger) (validatorSet.IValidatorSet, error) {
	switch cfg.ValidatorSource {
	case config.ValidatorSourceStatic:
		addrs, err := staticValidatorSet.ParseValidatorAddresses(cfg.Validators)
		if err != nil {
			return nil, fmt.Errorf("invalid validators: %w", err)
		}
		return staticValidatorSet.NewStaticValidatorSet(addrs, l), nil
	case config.ValidatorSourceFile:
		addrs, err := staticValidatorSet.LoadValidatorsFile(cfg.ValidatorsFile)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Loaded validators file", "path", cfg.ValidatorsFile, "count", len(addrs))
		return staticValidatorSet.NewStaticValidatorSet(addrs, l), nil
	case config.ValidatorSourceContract:
		cvs, err := contractValidatorSet.NewContractValidatorSetFromRPC(ctx, cfg.RpcUrl, common.HexToAddress(cfg.RegistryAddress), l)
		if err != nil {
			return nil, err
		}
		if cfg.ChainID != 0 && cvs.ChainID() != nil && cvs.ChainID().Uint64() != uint64(cfg.ChainID) {
			cvs.Close()
			return nil, fmt.Errorf("rpc endpoint is on chain %s, expected %d", cvs.ChainID(), cfg.ChainID)
		}
		return cvs, nil
	default:
		return nil, fmt.Errorf("unsupported validator source: %s", cfg.ValidatorSource)
	}
}
