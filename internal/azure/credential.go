// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package azure adapts the Azure SDK clients to the exporter and subscription
// interfaces.
package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	AuthCLI     = "cli"
	AuthDefault = "default"

	managementScope = "https://management.azure.com/.default"
)

// NewCredential returns the token credential for the auth mode. "cli" reuses
// the `az login` session, "default" walks the DefaultAzureCredential chain.
func NewCredential(mode string) (azcore.TokenCredential, error) {
	switch strings.ToLower(mode) {
	case "", AuthCLI:
		cred, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure CLI credential: %w", err)
		}
		return cred, nil
	case AuthDefault:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default Azure credential: %w", err)
		}
		return cred, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q (expected %q or %q)", mode, AuthCLI, AuthDefault)
	}
}

// CheckAuth fails when cred cannot obtain an ARM token, which means the
// operator is not logged in.
func CheckAuth(ctx context.Context, cred azcore.TokenCredential) error {
	if _, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{managementScope}}); err != nil {
		return fmt.Errorf("not authenticated to Azure (run `az login`): %w", err)
	}
	return nil
}
