// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package azure

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	armcosmos "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/cosmos/armcosmos/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountID = "/subscriptions/0000-1111/resourceGroups/rg-ato/providers/Microsoft.DocumentDB/databaseAccounts/ato-db"

func TestToSubscription(t *testing.T) {
	got := toSubscription(&armsubscriptions.Subscription{
		SubscriptionID: to.Ptr("0000-1111"),
		DisplayName:    to.Ptr("prod-east"),
		TenantID:       to.Ptr("tenant-1"),
		State:          to.Ptr(armsubscriptions.SubscriptionStateEnabled),
	})

	assert.Equal(t, subscription.Subscription{
		ID: "0000-1111", Name: "prod-east", TenantID: "tenant-1", State: subscription.StateEnabled,
	}, got)

	assert.Equal(t, subscription.Subscription{}, toSubscription(&armsubscriptions.Subscription{}))
}

func TestToResource(t *testing.T) {
	got := toResource(&armresources.GenericResourceExpanded{
		ID:       to.Ptr(accountID),
		Name:     to.Ptr("ato-db"),
		Type:     to.Ptr("Microsoft.DocumentDB/databaseAccounts"),
		Kind:     to.Ptr("GlobalDocumentDB"),
		Location: to.Ptr("eastus"),
		Tags:     map[string]*string{"env": to.Ptr("prod"), "empty": nil},
	})

	assert.Equal(t, exporter.Resource{
		ID:            accountID,
		Name:          "ato-db",
		Type:          "Microsoft.DocumentDB/databaseAccounts",
		Kind:          "GlobalDocumentDB",
		Location:      "eastus",
		ResourceGroup: "rg-ato",
		Tags:          map[string]string{"env": "prod", "empty": ""},
	}, got)
}

func TestToResourceGroup(t *testing.T) {
	got := toResourceGroup(&armresources.ResourceGroup{
		ID:         to.Ptr("/subscriptions/0000-1111/resourceGroups/rg-ato"),
		Name:       to.Ptr("rg-ato"),
		Location:   to.Ptr("eastus"),
		Properties: &armresources.ResourceGroupProperties{ProvisioningState: to.Ptr("Succeeded")},
	})

	assert.Equal(t, "rg-ato", got.Name)
	assert.Equal(t, "Succeeded", got.ProvisioningState)
	assert.Nil(t, got.Tags)
}

func TestToCosmosAccount(t *testing.T) {
	got := toCosmosAccount(&armcosmos.DatabaseAccountGetResults{
		ID:       to.Ptr(accountID),
		Name:     to.Ptr("ato-db"),
		Location: to.Ptr("eastus"),
		Properties: &armcosmos.DatabaseAccountGetProperties{
			DocumentEndpoint: to.Ptr("https://ato-db.documents.azure.com:443/"),
		},
	})

	assert.Equal(t, "rg-ato", got.ResourceGroup)
	assert.Equal(t, "https://ato-db.documents.azure.com:443/", got.DocumentEndpoint)
	assert.Nil(t, got.ConnectionInfo)
}

func TestResourceGroupName(t *testing.T) {
	assert.Equal(t, "rg-ato", resourceGroupName(accountID))
	assert.Equal(t, "", resourceGroupName(""))
	assert.Equal(t, "", resourceGroupName("not-an-id"))
}

func TestDecodeAssessments(t *testing.T) {
	data := []any{
		map[string]any{
			"id":          "/subscriptions/0000-1111/providers/Microsoft.Security/assessments/a1",
			"name":        "a1",
			"displayName": "MFA should be enabled",
			"status":      "Unhealthy",
			"severity":    "High",
			"resourceId":  accountID,
			"description": "Enable MFA",
		},
		map[string]any{"id": "a2", "name": "a2", "status": "Healthy"},
	}

	got, err := decodeAssessments(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MFA should be enabled", got[0].DisplayName)
	assert.Equal(t, "High", got[0].Severity)
	assert.Equal(t, "", got[1].Severity)

	none, err := decodeAssessments(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = decodeAssessments("garbage")
	assert.Error(t, err)
}

func TestNewCredential_UnknownMode(t *testing.T) {
	_, err := NewCredential("certificate")
	assert.ErrorContains(t, err, "unsupported auth mode")
}
