package validatorSet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// IValidatorSet answers whether an address is currently authorized to sign. Implementations
// must be read at call time: removing a validator takes effect on the next check.
type IValidatorSet interface {
	IsValidator(ctx context.Context, address common.Address) (bool, error)
}
