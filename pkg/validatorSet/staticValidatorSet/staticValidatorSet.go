package staticValidatorSet

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Layr-Labs/signature-validator-go/pkg/validatorSet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// StaticValidatorSet is an in-memory validator set. Add and Remove are the administrative
// surface; IsValidator reads the current membership under a read lock.
type StaticValidatorSet struct {
	logger     *zap.Logger
	validators map[common.Address]struct{}
	mu         sync.RWMutex
}

var _ validatorSet.IValidatorSet = (*StaticValidatorSet)(nil)

func NewStaticValidatorSet(validators []common.Address, logger *zap.Logger) *StaticValidatorSet {
	s := &StaticValidatorSet{
		logger:     logger,
		validators: make(map[common.Address]struct{}, len(validators)),
	}
	for _, v := range validators {
		if v == (common.Address{}) {
			continue
		}
		s.validators[v] = struct{}{}
	}
	return s
}

// ParseValidatorAddresses parses hex addresses, reporting every malformed entry.
func ParseValidatorAddresses(addresses []string) ([]common.Address, error) {
	var result *multierror.Error
	parsed := make([]common.Address, 0, len(addresses))
	for i, a := range addresses {
		if !common.IsHexAddress(a) {
			result = multierror.Append(result, fmt.Errorf("validator %d: invalid address %q", i, a))
			continue
		}
		addr := common.HexToAddress(a)
		if addr == (common.Address{}) {
			result = multierror.Append(result, fmt.Errorf("validator %d: zero address cannot be a validator", i))
			continue
		}
		parsed = append(parsed, addr)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// validatorsFile is the on-disk format of a validator list:
//
//	validators:
//	  - "0xF1dF824419879Bb8a7E758173523F88EfB7Af193"
type validatorsFile struct {
	Validators []string `yaml:"validators"`
}

// LoadValidatorsFile reads validator addresses from a YAML file.
func LoadValidatorsFile(path string) ([]common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read validators file: %w", err)
	}

	var vf validatorsFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse validators file: %w", err)
	}
	return ParseValidatorAddresses(vf.Validators)
}

func (s *StaticValidatorSet) IsValidator(ctx context.Context, address common.Address) (bool, error) {
	if address == (common.Address{}) {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.validators[address]
	return ok, nil
}

func (s *StaticValidatorSet) Add(address common.Address) error {
	if address == (common.Address{}) {
		return fmt.Errorf("zero address cannot be a validator")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[address] = struct{}{}
	s.logger.Sugar().Infow("Added validator", "address", address.String())
	return nil
}

func (s *StaticValidatorSet) Remove(address common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.validators, address)
	s.logger.Sugar().Infow("Removed validator", "address", address.String())
}

// List returns the current validators sorted by address.
func (s *StaticValidatorSet) List() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Address, 0, len(s.validators))
	for v := range s.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
