// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	keyVaultScheme       = "keyvault://"
	secretsManagerScheme = "awssm://"
)

type keyVaultClient interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

type secretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretResolver resolves secret references in configuration values:
//
//	keyvault://<vault>/<secret>              Azure Key Vault
//	awssm://<secret>?region=<r>&field=<f>    AWS Secrets Manager
//
// Any other value is returned unchanged.
type SecretResolver struct {
	newKeyVault       func(vaultURL string) (keyVaultClient, error)
	newSecretsManager func(ctx context.Context, region string) (secretsManagerClient, error)
}

// NewSecretResolver uses cred for Key Vault and the AWS default chain (or
// awsCreds) for Secrets Manager.
func NewSecretResolver(cred azcore.TokenCredential, awsCreds AWSCredentials) *SecretResolver {
	return &SecretResolver{
		newKeyVault: func(vaultURL string) (keyVaultClient, error) {
			if cred == nil {
				return nil, errors.New("no Azure credential available for Key Vault")
			}
			return azsecrets.NewClient(vaultURL, cred, nil)
		},
		newSecretsManager: func(ctx context.Context, region string) (secretsManagerClient, error) {
			awsCfg, err := LoadAWSConfig(ctx, region, awsCreds)
			if err != nil {
				return nil, err
			}
			return secretsmanager.NewFromConfig(awsCfg), nil
		},
	}
}

// IsSecretRef reports whether value is a secret reference.
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, keyVaultScheme) || strings.HasPrefix(value, secretsManagerScheme)
}

// Resolve returns the secret value behind ref, or ref itself when it is
// not a reference.
func (r *SecretResolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, keyVaultScheme):
		return r.resolveKeyVault(ctx, strings.TrimPrefix(ref, keyVaultScheme))
	case strings.HasPrefix(ref, secretsManagerScheme):
		return r.resolveSecretsManager(ctx, ref)
	default:
		return ref, nil
	}
}

func (r *SecretResolver) resolveKeyVault(ctx context.Context, path string) (string, error) {
	vault, name, ok := strings.Cut(path, "/")
	if !ok || vault == "" || name == "" {
		return "", fmt.Errorf("invalid Key Vault reference %q (expected keyvault://<vault>/<secret>)", keyVaultScheme+path)
	}

	client, err := r.newKeyVault(fmt.Sprintf("https://%s.vault.azure.net/", vault))
	if err != nil {
		return "", fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s from Key Vault %s: %w", name, vault, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %s in Key Vault %s has no value", name, vault)
	}
	return *resp.Value, nil
}

func (r *SecretResolver) resolveSecretsManager(ctx context.Context, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid Secrets Manager reference: %w", err)
	}
	name := u.Host + u.Path
	if name == "" {
		return "", fmt.Errorf("secret name is required for Secrets Manager")
	}
	region := u.Query().Get("region")
	if region == "" {
		return "", fmt.Errorf("region is required for Secrets Manager")
	}

	svc, err := r.newSecretsManager(ctx, region)
	if err != nil {
		return "", err
	}
	out, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(name),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret string empty for %s", name)
	}

	field := u.Query().Get("field")
	if field == "" {
		return *out.SecretString, nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	value, ok := payload[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s field empty in secret %s", field, name)
	}
	return value, nil
}
