package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTS struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.out, f.err
}

func applyOptions(t *testing.T, opts []func(*config.LoadOptions) error) config.LoadOptions {
	var lo config.LoadOptions
	for _, opt := range opts {
		require.NoError(t, opt(&lo))
	}
	return lo
}

func TestLoadOptions(t *testing.T) {
	t.Setenv("AWS_PROFILE", "validator")

	lo := applyOptions(t, loadOptions("us-west-2", false))
	assert.Equal(t, "validator", lo.SharedConfigProfile)
	assert.Equal(t, "us-west-2", lo.Region)

	lo = applyOptions(t, loadOptions("", true))
	assert.Empty(t, lo.SharedConfigProfile)
	assert.Empty(t, lo.Region)
}

func TestGetProfile_Default(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	assert.Equal(t, "default", getProfile())
}

func TestGetCallerIdentity(t *testing.T) {
	out, err := getCallerIdentity(context.Background(), &fakeSTS{out: &sts.GetCallerIdentityOutput{
		Arn:     aws.String("arn:aws:iam::123456789012:role/validator"),
		Account: aws.String("123456789012"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "123456789012", aws.ToString(out.Account))

	_, err = getCallerIdentity(context.Background(), &fakeSTS{err: errors.New("expired token")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get AWS caller identity")
	assert.Contains(t, err.Error(), "expired token")
}
