package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for validator server configuration
const (
	EnvSVPort            = "SV_PORT"
	EnvSVPersistence     = "SV_PERSISTENCE"
	EnvSVBadgerDir       = "SV_BADGER_DIR"
	EnvSVRedisAddress    = "SV_REDIS_ADDRESS"
	EnvSVRedisPassword   = "SV_REDIS_PASSWORD"
	EnvSVRedisDB         = "SV_REDIS_DB"
	EnvSVRedisKeyPrefix  = "SV_REDIS_KEY_PREFIX"
	EnvSVValidators      = "SV_VALIDATORS"
	EnvSVValidatorsFile  = "SV_VALIDATORS_FILE"
	EnvSVRPCURL          = "SV_RPC_URL"
	EnvSVRegistryAddress = "SV_REGISTRY_ADDRESS"
	EnvSVChainID         = "SV_CHAIN_ID"
	EnvSVMetrics         = "SV_METRICS"
	EnvSVVerbose         = "SV_VERBOSE"
)

// Environment variable names for signing configuration
const (
	EnvSignerPrivateKey  = "SIGNER_PRIVATE_KEY"
	EnvSignerAWSKMSKeyID = "SIGNER_AWS_KMS_KEY_ID"
	EnvSignerAWSRegion   = "SIGNER_AWS_REGION"
)

type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

type ValidatorSource string

const (
	// ValidatorSourceStatic reads validator addresses from the Validators list
	ValidatorSourceStatic ValidatorSource = "static"
	// ValidatorSourceFile reads validator addresses from a YAML file
	ValidatorSourceFile ValidatorSource = "file"
	// ValidatorSourceContract queries isValidator(address) on a deployed registry contract
	ValidatorSourceContract ValidatorSource = "contract"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// VerifierServerConfig represents the complete configuration for a validator server
type VerifierServerConfig struct {
	Port int `json:"port"`

	// Nonce ledger
	PersistenceType PersistenceType `json:"persistence_type"`
	BadgerDir       string          `json:"badger_dir,omitempty"`
	Redis           RedisConfig     `json:"redis"`

	// Validator set
	ValidatorSource ValidatorSource `json:"validator_source"`
	Validators      []string        `json:"validators,omitempty"`
	ValidatorsFile  string          `json:"validators_file,omitempty"`
	RpcUrl          string          `json:"rpc_url,omitempty"`
	RegistryAddress string          `json:"registry_address,omitempty"`
	// ChainID, when non-zero, must match the chain behind RpcUrl
	ChainID ChainId `json:"chain_id,omitempty"`

	MetricsEnabled bool `json:"metrics_enabled"`
	Debug          bool `json:"debug"`
}

// Validate validates the validator server configuration
func (c *VerifierServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.BadgerDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerDir"), "badgerDir is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "redis address is required for redis persistence"))
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), c.Redis.DB, "db must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis)}))
	}

	switch c.ValidatorSource {
	case ValidatorSourceStatic:
		if len(c.Validators) == 0 {
			allErrors = append(allErrors, field.Required(field.NewPath("validators"), "at least one validator address is required"))
		}
		for i, v := range c.Validators {
			if !common.IsHexAddress(strings.TrimSpace(v)) {
				allErrors = append(allErrors, field.Invalid(field.NewPath("validators").Index(i), v, "invalid address format"))
			}
		}
	case ValidatorSourceFile:
		if c.ValidatorsFile == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("validatorsFile"), "validatorsFile is required for file validator source"))
		}
	case ValidatorSourceContract:
		if c.RpcUrl == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required for contract validator source"))
		}
		if !common.IsHexAddress(c.RegistryAddress) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("registryAddress"), c.RegistryAddress, "invalid address format"))
		}
		if c.ChainID != 0 {
			if _, ok := ChainIdToName[c.ChainID]; !ok {
				allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), c.ChainID,
					fmt.Sprintf("unsupported chain ID. Supported: %s", GetSupportedChainIDsString())))
			}
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("validatorSource"), c.ValidatorSource,
			[]string{string(ValidatorSourceStatic), string(ValidatorSourceFile), string(ValidatorSourceContract)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// SignerConfig selects the key used to sign parameters. Exactly one of PrivateKey or
// AWSKMSKeyID must be set.
type SignerConfig struct {
	PrivateKey  string `json:"-"`
	AWSKMSKeyID string `json:"aws_kms_key_id,omitempty"`
	AWSRegion   string `json:"aws_region,omitempty"`
}

// Validate validates the signer configuration
func (c *SignerConfig) Validate() error {
	var allErrors field.ErrorList

	switch {
	case c.PrivateKey == "" && c.AWSKMSKeyID == "":
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "one of privateKey or awsKmsKeyId is required"))
	case c.PrivateKey != "" && c.AWSKMSKeyID != "":
		allErrors = append(allErrors, field.Forbidden(field.NewPath("awsKmsKeyId"), "privateKey and awsKmsKeyId are mutually exclusive"))
	case c.PrivateKey != "":
		key := strings.TrimPrefix(c.PrivateKey, "0x")
		if len(key) != 64 { // 64 hex chars
			allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>",
				fmt.Sprintf("private key must be 32 bytes (64 hex chars), got %d chars", len(key))))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
