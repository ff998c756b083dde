package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/pkg/errors"
)

const kubernetesServiceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// LoadAWSConfig loads the default AWS config. Outside Kubernetes the shared config profile
// from AWS_PROFILE (or "default") is used; inside, the pod's service account credentials are.
func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions(regionOverride, isInKubernetes())...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS config")
	}
	return cfg, nil
}

func loadOptions(regionOverride string, inKubernetes bool) []func(*config.LoadOptions) error {
	var options []func(*config.LoadOptions) error

	if !inKubernetes {
		options = append(options, config.WithSharedConfigProfile(getProfile()))
	}

	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}
	return options
}

// Simple check to see if we're running in K8s
func isInKubernetes() bool {
	_, err := os.Stat(kubernetesServiceAccountToken)
	return err == nil
}

func getProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}

// STSAPI is the subset of the STS client used here
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// GetCallerIdentity returns the identity the loaded credentials resolve to
func GetCallerIdentity(ctx context.Context, cfg aws.Config) (*sts.GetCallerIdentityOutput, error) {
	return getCallerIdentity(ctx, sts.NewFromConfig(cfg))
}

func getCallerIdentity(ctx context.Context, client STSAPI) (*sts.GetCallerIdentityOutput, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get AWS caller identity")
	}
	return out, nil
}
