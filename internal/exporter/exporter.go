// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/subscription"
	"go.uber.org/zap"
)

// Inventory reads the Azure inventory of one subscription. The subscription
// is always passed explicitly; implementations hold no active-subscription state.
type Inventory interface {
	ListResourceGroups(ctx context.Context, subscriptionID string) ([]ResourceGroup, error)
	// ListResources lists resources in the subscription, or only in
	// resourceGroup when it is not empty.
	ListResources(ctx context.Context, subscriptionID, resourceGroup string) ([]Resource, error)
	ListCosmosAccounts(ctx context.Context, subscriptionID string) ([]CosmosAccount, error)
	ListCosmosKeys(ctx context.Context, subscriptionID, resourceGroup, accountName string) (ConnectionInfo, error)
	ListSecurityAssessments(ctx context.Context, subscriptionID string) ([]SecurityAssessment, error)
}

// Exporter pulls the inventory of a subscription into an ExportResult.
type Exporter struct {
	inventory Inventory
	logger    *zap.Logger
	now       func() time.Time
}

// NewExporter creates a new exporter over inv.
func NewExporter(inv Inventory, logger *zap.Logger) *Exporter {
	return &Exporter{
		inventory: inv,
		logger:    logger,
		now:       time.Now,
	}
}

// ExportSubscription attempts all four data pulls for sub. It never returns
// an error: failures are recorded on the result.
func (e *Exporter) ExportSubscription(ctx context.Context, sub subscription.Subscription) ExportResult {
	log := e.logger.With(
		zap.String("subscription_id", sub.ID),
		zap.String("subscription_name", sub.Name))
	log.Info("Exporting subscription")

	var errs []error

	groups, err := e.inventory.ListResourceGroups(ctx, sub.ID)
	if err != nil {
		log.Error("Failed to list resource groups", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to list resource groups: %w", err))
		groups = nil
	}

	resources, err := e.inventory.ListResources(ctx, sub.ID, "")
	if err != nil {
		log.Error("Failed to list resources", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to list resources: %w", err))
		resources = nil
	}

	accounts, cosmosErr := e.exportCosmosAccounts(ctx, sub.ID, log)

	assessments, securityErr := e.inventory.ListSecurityAssessments(ctx, sub.ID)
	if securityErr != nil {
		log.Warn("Failed to list security assessments", zap.Error(securityErr))
		assessments = nil
	}
	if groups == nil {
		groups = []ResourceGroup{}
	}
	if resources == nil {
		resources = []Resource{}
	}
	if assessments == nil {
		assessments = []SecurityAssessment{}
	}

	result := ExportResult{
		Subscription:        sub,
		ExportedAt:          e.now().UTC(),
		ResourceGroups:      groups,
		Resources:           resources,
		CosmosAccounts:      accounts,
		SecurityAssessments: assessments,
		Success:             len(errs) == 0,
		Summary: Summary{
			ResourceGroupCount:      len(groups),
			ResourceCount:           len(resources),
			CosmosAccountCount:      len(accounts),
			SecurityAssessmentCount: len(assessments),
			ResourceTypes:           ResourceTypeCounts(resources),
		},
	}
	if len(errs) > 0 {
		result.Error = errors.Join(errs...).Error()
	}
	if cosmosErr != nil {
		result.CosmosError = cosmosErr.Error()
	}
	if securityErr != nil {
		result.SecurityError = securityErr.Error()
	}

	log.Info("Subscription exported",
		zap.Bool("success", result.Success),
		zap.Int("resource_groups", len(groups)),
		zap.Int("resources", len(resources)),
		zap.Int("cosmosdb_accounts", len(accounts)),
		zap.Int("security_assessments", len(assessments)))

	return result
}

// exportCosmosAccounts lists accounts and fetches keys per account. A key
// failure only clears that account's connection info.
func (e *Exporter) exportCosmosAccounts(ctx context.Context, subscriptionID string, log *zap.Logger) ([]CosmosAccount, error) {
	accounts, err := e.inventory.ListCosmosAccounts(ctx, subscriptionID)
	if err != nil {
		log.Warn("Failed to list CosmosDB accounts", zap.Error(err))
		return []CosmosAccount{}, err
	}

	out := make([]CosmosAccount, 0, len(accounts))
	for _, account := range accounts {
		keys, err := e.inventory.ListCosmosKeys(ctx, subscriptionID, account.ResourceGroup, account.Name)
		if err != nil {
			log.Warn("Failed to fetch CosmosDB account keys",
				zap.String("account", account.Name),
				zap.String("resource_group", account.ResourceGroup),
				zap.Error(err))
			account.ConnectionInfo = nil
			account.KeyError = err.Error()
		} else {
			account.ConnectionInfo = &keys
		}
		out = append(out, account)
	}
	return out, nil
}

// ResourceTypeCounts folds resources into a count per resource type.
// The counts always sum to len(resources).
func ResourceTypeCounts(resources []Resource) map[string]int {
	counts := make(map[string]int)
	for _, r := range resources {
		counts[r.Type]++
	}
	return counts
}

// ResultFileName is the per-subscription artifact name.
func ResultFileName(subscriptionID string) string {
	return fmt.Sprintf("subscription-%s.json", subscriptionID)
}

// WriteResult dumps result as indented JSON into dir and returns the file path.
func WriteResult(dir string, result ExportResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export result: %w", err)
	}

	path := filepath.Join(dir, ResultFileName(result.Subscription.ID))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write export result: %w", err)
	}
	return path, nil
}

// ReadResult loads an ExportResult previously written by WriteResult.
func ReadResult(path string) (ExportResult, error) {
	var result ExportResult
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("failed to read export result: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to parse export result: %w", err)
	}
	return result, nil
}
