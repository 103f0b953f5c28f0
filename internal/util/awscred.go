// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package util

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWS IAM credential file paths (vault-injected in Kubernetes)
const (
	DefaultAWSKeyFile    = "/vault/secrets/awsaccesskey"
	DefaultAWSSecretFile = "/vault/secrets/awssecretkey"
)

// AWSCredentials are explicit AWS IAM credentials. The zero value means
// "use the default chain".
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// AWSCredentialsProvider picks AWS IAM credentials with the following priority:
// 1. CLI flags / config (creds) - highest priority
// 2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN)
// 3. AWS SDK default chain (AWS CLI credentials, SSO cache, IAM roles, etc.)
// 4. Vault files - fallback when nothing else is configured
//
// A nil provider means the SDK default chain (which covers 2 and 3) is used.
func AWSCredentialsProvider(creds AWSCredentials) aws.CredentialsProvider {
	return awsCredentialsProvider(creds, DefaultAWSKeyFile, DefaultAWSSecretFile)
}

func awsCredentialsProvider(creds AWSCredentials, keyFile, secretFile string) aws.CredentialsProvider {
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		return credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	}

	if os.Getenv("AWS_ACCESS_KEY_ID") != "" || os.Getenv("AWS_PROFILE") != "" {
		return nil
	}

	key, keyErr := os.ReadFile(keyFile)
	secret, secretErr := os.ReadFile(secretFile)
	if keyErr == nil && secretErr == nil {
		return credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(string(key)), strings.TrimSpace(string(secret)), "")
	}
	return nil
}

// LoadAWSConfig loads the SDK config for region with the resolved credentials.
func LoadAWSConfig(ctx context.Context, region string, creds AWSCredentials) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if provider := AWSCredentialsProvider(creds); provider != nil {
		opts = append(opts, config.WithCredentialsProvider(provider))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("create AWS config: %w", err)
	}
	return awsCfg, nil
}
