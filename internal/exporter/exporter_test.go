// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package exporter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// fakeInventory serves canned data and per-call errors.
type fakeInventory struct {
	groups      []ResourceGroup
	resources   []Resource
	accounts    []CosmosAccount
	keys        map[string]ConnectionInfo
	keyErrs     map[string]error
	assessments []SecurityAssessment

	groupsErr      error
	resourcesErr   error
	accountsErr    error
	assessmentsErr error

	calls []string
}

func (f *fakeInventory) ListResourceGroups(_ context.Context, subscriptionID string) ([]ResourceGroup, error) {
	f.calls = append(f.calls, "groups:"+subscriptionID)
	return f.groups, f.groupsErr
}

func (f *fakeInventory) ListResources(_ context.Context, subscriptionID, resourceGroup string) ([]Resource, error) {
	f.calls = append(f.calls, "resources:"+subscriptionID+":"+resourceGroup)
	return f.resources, f.resourcesErr
}

func (f *fakeInventory) ListCosmosAccounts(_ context.Context, subscriptionID string) ([]CosmosAccount, error) {
	f.calls = append(f.calls, "accounts:"+subscriptionID)
	return f.accounts, f.accountsErr
}

func (f *fakeInventory) ListCosmosKeys(_ context.Context, _, _, accountName string) (ConnectionInfo, error) {
	f.calls = append(f.calls, "keys:"+accountName)
	if err := f.keyErrs[accountName]; err != nil {
		return ConnectionInfo{}, err
	}
	return f.keys[accountName], nil
}

func (f *fakeInventory) ListSecurityAssessments(_ context.Context, subscriptionID string) ([]SecurityAssessment, error) {
	f.calls = append(f.calls, "assessments:"+subscriptionID)
	return f.assessments, f.assessmentsErr
}

var testSub = subscription.Subscription{ID: "sub-a", Name: "prod-east", TenantID: "tenant-1", State: subscription.StateEnabled}

func sampleResources() []Resource {
	return []Resource{
		{ID: "/r/1", Name: "vm1", Type: "Microsoft.Compute/virtualMachines"},
		{ID: "/r/2", Name: "vm2", Type: "Microsoft.Compute/virtualMachines"},
		{ID: "/r/3", Name: "kv", Type: "Microsoft.KeyVault/vaults"},
		{ID: "/r/4", Name: "db", Type: "Microsoft.DocumentDB/databaseAccounts"},
	}
}

func newTestExporter(t *testing.T, inv Inventory) *Exporter {
	e := NewExporter(inv, zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestExportSubscription_AllCategoriesSucceed(t *testing.T) {
	inv := &fakeInventory{
		groups:    []ResourceGroup{{Name: "rg-app"}},
		resources: sampleResources(),
		accounts: []CosmosAccount{
			{Name: "ato-db", ResourceGroup: "rg-app", DocumentEndpoint: "https://ato-db.documents.azure.com:443/"},
		},
		keys:        map[string]ConnectionInfo{"ato-db": {PrimaryKey: "pk", SecondaryKey: "sk"}},
		assessments: []SecurityAssessment{{Name: "a1", Status: "Healthy"}},
	}

	result := newTestExporter(t, inv).ExportSubscription(context.Background(), testSub)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, testSub, result.Subscription)
	assert.Len(t, result.Resources, 4)
	require.Len(t, result.CosmosAccounts, 1)
	assert.True(t, result.CosmosAccounts[0].HasKeys())
	assert.Equal(t, "pk", result.CosmosAccounts[0].ConnectionInfo.PrimaryKey)
	assert.Equal(t, Summary{
		ResourceGroupCount:      1,
		ResourceCount:           4,
		CosmosAccountCount:      1,
		SecurityAssessmentCount: 1,
		ResourceTypes: map[string]int{
			"Microsoft.Compute/virtualMachines":     2,
			"Microsoft.KeyVault/vaults":             1,
			"Microsoft.DocumentDB/databaseAccounts": 1,
		},
	}, result.Summary)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), result.ExportedAt)
}

func TestExportSubscription_CosmosListingFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inv := &fakeInventory{
		groups:      []ResourceGroup{{Name: "rg-app"}},
		resources:   sampleResources(),
		accountsErr: errors.New("AuthorizationFailed"),
	}

	e := NewExporter(inv, zap.New(core))
	result := e.ExportSubscription(context.Background(), testSub)

	assert.True(t, result.Success)
	assert.NotNil(t, result.CosmosAccounts)
	assert.Empty(t, result.CosmosAccounts)
	assert.Len(t, result.Resources, 4)
	assert.Contains(t, result.CosmosError, "AuthorizationFailed")
	assert.Equal(t, 1, logs.FilterMessage("Failed to list CosmosDB accounts").Len())
	assert.Contains(t, inv.calls, "assessments:sub-a", "security pull must still run")
}

func TestExportSubscription_KeyFailureDegradesOnlyThatAccount(t *testing.T) {
	inv := &fakeInventory{
		resources: sampleResources(),
		accounts: []CosmosAccount{
			{Name: "locked", ResourceGroup: "rg1", DocumentEndpoint: "https://locked/"},
			{Name: "open", ResourceGroup: "rg2", DocumentEndpoint: "https://open/"},
		},
		keys:    map[string]ConnectionInfo{"open": {PrimaryKey: "k"}},
		keyErrs: map[string]error{"locked": errors.New("ReadOnly lock")},
	}

	result := newTestExporter(t, inv).ExportSubscription(context.Background(), testSub)

	require.Len(t, result.CosmosAccounts, 2)
	locked, open := result.CosmosAccounts[0], result.CosmosAccounts[1]
	assert.Equal(t, "locked", locked.Name)
	assert.Nil(t, locked.ConnectionInfo)
	assert.Equal(t, "https://locked/", locked.DocumentEndpoint)
	assert.Contains(t, locked.KeyError, "ReadOnly lock")
	assert.True(t, open.HasKeys())
	assert.Equal(t, []CosmosAccount{open}, result.AccountsWithKeys())
}

func TestExportSubscription_ResourceFailureMarksUnsuccessful(t *testing.T) {
	inv := &fakeInventory{
		groups:         []ResourceGroup{{Name: "rg"}},
		resourcesErr:   errors.New("throttled"),
		assessmentsErr: errors.New("not registered"),
	}

	result := newTestExporter(t, inv).ExportSubscription(context.Background(), testSub)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "throttled")
	assert.Empty(t, result.Resources)
	assert.NotNil(t, result.SecurityAssessments)
	assert.Contains(t, result.SecurityError, "not registered")
	assert.Equal(t, 1, result.Summary.ResourceGroupCount)
}

func TestResourceTypeCounts_SumsToResourceCount(t *testing.T) {
	tests := []struct {
		name      string
		resources []Resource
	}{
		{"empty", nil},
		{"single", sampleResources()[:1]},
		{"mixed", sampleResources()},
		{"untyped", []Resource{{Name: "x"}, {Name: "y", Type: "A/b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := ResourceTypeCounts(tt.resources)
			sum := 0
			for _, n := range counts {
				sum += n
			}
			assert.Equal(t, len(tt.resources), sum)
		})
	}
}

func TestWriteResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "azure-export")
	inv := &fakeInventory{resources: sampleResources()}
	result := newTestExporter(t, inv).ExportSubscription(context.Background(), testSub)

	path, err := WriteResult(dir, result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "subscription-sub-a.json"), path)

	loaded, err := ReadResult(path)
	require.NoError(t, err)
	assert.Equal(t, result.Summary, loaded.Summary)
	assert.Equal(t, result.Resources, loaded.Resources)
}
