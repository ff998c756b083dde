package contractValidatorSet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ValidatorRegistryABI is the read surface of an on-chain validator registry.
const ValidatorRegistryABI = `[{"type":"function","name":"isValidator","inputs":[{"name":"account","type":"address","internalType":"address"}],"outputs":[{"name":"","type":"bool","internalType":"bool"}],"stateMutability":"view"}]`

// ContractValidatorSet answers membership by calling isValidator(address) on a deployed
// registry contract. Every check is a live eth_call; nothing is cached.
type ContractValidatorSet struct {
	logger          *zap.Logger
	contractAddress common.Address
	contract        *bind.BoundContract
	// client and chainId are nil unless built from an RPC endpoint
	client          *ethclient.Client
	chainId         *big.Int
}

var _ validatorSet.IValidatorSet = (*ContractValidatorSet)(nil)

func NewContractValidatorSet(contractAddress common.Address, caller bind.ContractCaller, logger *zap.Logger) (*ContractValidatorSet, error) {
	parsed, err := abi.JSON(strings.NewReader(ValidatorRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse validator registry ABI: %w", err)
	}

	return &ContractValidatorSet{
		logger:          logger,
		contractAddress: contractAddress,
		contract:        bind.NewBoundContract(contractAddress, parsed, caller, nil, nil),
	}, nil
}

// NewContractValidatorSetFromRPC dials rpcUrl and binds the registry at contractAddress.
func NewContractValidatorSetFromRPC(ctx context.Context, rpcUrl string, contractAddress common.Address, logger *zap.Logger) (*ContractValidatorSet, error) {
	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s: %w", rpcUrl, err)
	}

	chainId, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	logger.Sugar().Infow("Using contract validator set",
		"chainId", chainId.Uint64(),
		"contractAddress", contractAddress.String(),
	)

	cvs, err := NewContractValidatorSet(contractAddress, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	cvs.client = client
	cvs.chainId = chainId
	return cvs, nil
}

// Close releases the RPC connection dialed by NewContractValidatorSetFromRPC. It is safe to
// call more than once and does nothing for a set built from a caller-supplied ContractCaller.
func (c *ContractValidatorSet) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// ChainID returns the chain reported by the RPC endpoint, or nil when the set was built from
// a caller-supplied ContractCaller.
func (c *ContractValidatorSet) ChainID() *big.Int {
	return c.chainId
}

func (c *ContractValidatorSet) ContractAddress() common.Address {
	return c.contractAddress
}

func (c *ContractValidatorSet) IsValidator(ctx context.Context, address common.Address) (bool, error) {
	if address == (common.Address{}) {
		return false, nil
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isValidator", address); err != nil {
		return false, fmt.Errorf("failed to call isValidator on %s: %w", c.contractAddress.String(), err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected isValidator result count %d", len(out))
	}

	isValidator := *abi.ConvertType(out[0], new(bool)).(*bool)

	c.logger.Sugar().Debugw("Queried validator registry",
		"address", address.String(),
		"isValidator", isValidator,
	)
	return isValidator, nil
}
