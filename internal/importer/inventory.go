// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/netSkope/ato-migration-tool/internal/exporter"
)

// Inventory is what ImportInventory consumes for one subscription.
type Inventory struct {
	SubscriptionID string
	Resources      []exporter.Resource
	Assessments    []exporter.SecurityAssessment
	// SecurityError is set when the assessment pull failed; Assessments is
	// then empty and the resources are still imported.
	SecurityError error
}

// LoadInventory pulls the inventory live, scoped to resourceGroup when set.
func LoadInventory(ctx context.Context, inv exporter.Inventory, subscriptionID, resourceGroup string) (Inventory, error) {
	out := Inventory{SubscriptionID: subscriptionID}

	resources, err := inv.ListResources(ctx, subscriptionID, resourceGroup)
	if err != nil {
		return out, fmt.Errorf("failed to list resources: %w", err)
	}
	out.Resources = resources

	assessments, err := inv.ListSecurityAssessments(ctx, subscriptionID)
	if err != nil {
		out.SecurityError = fmt.Errorf("failed to list security assessments: %w", err)
		return out, nil
	}
	out.Assessments = FilterAssessments(assessments, resourceGroup)
	return out, nil
}

// InventoryFromExport reads the inventory out of a subscription-<id>.json
// artifact written by the export command.
func InventoryFromExport(path, resourceGroup string) (Inventory, error) {
	result, err := exporter.ReadResult(path)
	if err != nil {
		return Inventory{}, err
	}

	out := Inventory{
		SubscriptionID: result.Subscription.ID,
		Assessments:    FilterAssessments(result.SecurityAssessments, resourceGroup),
	}
	for _, r := range result.Resources {
		if resourceGroup == "" || strings.EqualFold(r.ResourceGroup, resourceGroup) {
			out.Resources = append(out.Resources, r)
		}
	}
	return out, nil
}
