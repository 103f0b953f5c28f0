// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	armcosmos "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/cosmos/armcosmos/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/go-viper/mapstructure/v2"
	"github.com/netSkope/ato-migration-tool/internal/exporter"
)

const securityAssessmentsQuery = `securityresources
| where type == "microsoft.security/assessments"
| extend displayName = tostring(properties.displayName),
    status = tostring(properties.status.code),
    severity = tostring(properties.metadata.severity),
    resourceId = tostring(properties.resourceDetails.Id),
    description = tostring(properties.metadata.description)
| project id, name, displayName, status, severity, resourceId, description`

// Inventory reads subscription inventory through ARM and Resource Graph.
type Inventory struct {
	cred  azcore.TokenCredential
	graph *armresourcegraph.Client
}

var _ exporter.Inventory = (*Inventory)(nil)

func NewInventory(cred azcore.TokenCredential) (*Inventory, error) {
	graph, err := armresourcegraph.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Resource Graph client: %w", err)
	}
	return &Inventory{cred: cred, graph: graph}, nil
}

func (i *Inventory) ListResourceGroups(ctx context.Context, subscriptionID string) ([]exporter.ResourceGroup, error) {
	client, err := armresources.NewResourceGroupsClient(subscriptionID, i.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}

	var groups []exporter.ResourceGroup
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, rg := range page.Value {
			if rg != nil {
				groups = append(groups, toResourceGroup(rg))
			}
		}
	}
	return groups, nil
}

func (i *Inventory) ListResources(ctx context.Context, subscriptionID, resourceGroup string) ([]exporter.Resource, error) {
	client, err := armresources.NewClient(subscriptionID, i.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resources client: %w", err)
	}

	var resources []exporter.Resource
	appendPage := func(values []*armresources.GenericResourceExpanded) {
		for _, r := range values {
			if r != nil {
				resources = append(resources, toResource(r))
			}
		}
	}

	if resourceGroup != "" {
		pager := client.NewListByResourceGroupPager(resourceGroup, nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			appendPage(page.Value)
		}
		return resources, nil
	}

	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		appendPage(page.Value)
	}
	return resources, nil
}

func (i *Inventory) ListCosmosAccounts(ctx context.Context, subscriptionID string) ([]exporter.CosmosAccount, error) {
	client, err := armcosmos.NewDatabaseAccountsClient(subscriptionID, i.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cosmos accounts client: %w", err)
	}

	var accounts []exporter.CosmosAccount
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range page.Value {
			if a != nil {
				accounts = append(accounts, toCosmosAccount(a))
			}
		}
	}
	return accounts, nil
}

func (i *Inventory) ListCosmosKeys(ctx context.Context, subscriptionID, resourceGroup, accountName string) (exporter.ConnectionInfo, error) {
	client, err := armcosmos.NewDatabaseAccountsClient(subscriptionID, i.cred, nil)
	if err != nil {
		return exporter.ConnectionInfo{}, fmt.Errorf("failed to create cosmos accounts client: %w", err)
	}
	resp, err := client.ListKeys(ctx, resourceGroup, accountName, nil)
	if err != nil {
		return exporter.ConnectionInfo{}, err
	}
	return exporter.ConnectionInfo{
		PrimaryKey:   deref(resp.PrimaryMasterKey),
		SecondaryKey: deref(resp.SecondaryMasterKey),
	}, nil
}

func (i *Inventory) ListSecurityAssessments(ctx context.Context, subscriptionID string) ([]exporter.SecurityAssessment, error) {
	var assessments []exporter.SecurityAssessment
	var skipToken *string
	for {
		result, err := i.graph.Resources(ctx, armresourcegraph.QueryRequest{
			Query:         to.Ptr(securityAssessmentsQuery),
			Subscriptions: []*string{to.Ptr(subscriptionID)},
			Options: &armresourcegraph.QueryRequestOptions{
				ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
				SkipToken:    skipToken,
			},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to execute Resource Graph request: %w", err)
		}

		page, err := decodeAssessments(result.Data)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, page...)

		if result.SkipToken == nil || *result.SkipToken == "" {
			return assessments, nil
		}
		skipToken = result.SkipToken
	}
}

func decodeAssessments(data any) ([]exporter.SecurityAssessment, error) {
	if data == nil {
		return nil, nil
	}
	var rows []struct {
		ID          string `mapstructure:"id"`
		Name        string `mapstructure:"name"`
		DisplayName string `mapstructure:"displayName"`
		Status      string `mapstructure:"status"`
		Severity    string `mapstructure:"severity"`
		ResourceID  string `mapstructure:"resourceId"`
		Description string `mapstructure:"description"`
	}
	if err := mapstructure.Decode(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode Resource Graph result: %w", err)
	}

	out := make([]exporter.SecurityAssessment, 0, len(rows))
	for _, r := range rows {
		out = append(out, exporter.SecurityAssessment{
			ID:          r.ID,
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Status:      r.Status,
			Severity:    r.Severity,
			ResourceID:  r.ResourceID,
			Description: r.Description,
		})
	}
	return out, nil
}

func toResourceGroup(rg *armresources.ResourceGroup) exporter.ResourceGroup {
	group := exporter.ResourceGroup{
		ID:       deref(rg.ID),
		Name:     deref(rg.Name),
		Location: deref(rg.Location),
		Tags:     tags(rg.Tags),
	}
	if rg.Properties != nil {
		group.ProvisioningState = deref(rg.Properties.ProvisioningState)
	}
	return group
}

func toResource(r *armresources.GenericResourceExpanded) exporter.Resource {
	return exporter.Resource{
		ID:            deref(r.ID),
		Name:          deref(r.Name),
		Type:          deref(r.Type),
		Kind:          deref(r.Kind),
		Location:      deref(r.Location),
		ResourceGroup: resourceGroupName(deref(r.ID)),
		Tags:          tags(r.Tags),
	}
}

func toCosmosAccount(a *armcosmos.DatabaseAccountGetResults) exporter.CosmosAccount {
	account := exporter.CosmosAccount{
		ID:            deref(a.ID),
		Name:          deref(a.Name),
		Location:      deref(a.Location),
		ResourceGroup: resourceGroupName(deref(a.ID)),
	}
	if a.Properties != nil {
		account.DocumentEndpoint = deref(a.Properties.DocumentEndpoint)
	}
	return account
}

func resourceGroupName(id string) string {
	if id == "" {
		return ""
	}
	parsed, err := arm.ParseResourceID(id)
	if err != nil {
		return ""
	}
	return parsed.ResourceGroupName
}
