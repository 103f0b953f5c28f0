// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/subscription"
)

const (
	SummaryFile      = "export-summary.json"
	EnvFile          = "azure-import.env"
	InstructionsFile = "IMPORT_INSTRUCTIONS.md"
)

// SubscriptionSummary is one line of the export summary.
type SubscriptionSummary struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
	ResourceCount      int    `json:"resourceCount"`
	CosmosAccountCount int    `json:"cosmosdbAccountCount"`
	File               string `json:"file"`
}

// Summary aggregates the export results of a run.
type Summary struct {
	GeneratedAt         time.Time             `json:"generatedAt"`
	TotalSubscriptions  int                   `json:"totalSubscriptions"`
	Successful          int                   `json:"successful"`
	Failed              int                   `json:"failed"`
	TotalResources      int                   `json:"totalResources"`
	TotalCosmosAccounts int                   `json:"totalCosmosdbAccounts"`
	ResourceTypes       map[string]int        `json:"resourceTypes"`
	Subscriptions       []SubscriptionSummary `json:"subscriptions"`
}

// Aggregate merges per-subscription results, in input order.
func Aggregate(results []exporter.ExportResult, generatedAt time.Time) Summary {
	s := Summary{
		GeneratedAt:        generatedAt.UTC(),
		TotalSubscriptions: len(results),
		ResourceTypes:      make(map[string]int),
		Subscriptions:      make([]SubscriptionSummary, 0, len(results)),
	}
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		s.TotalResources += len(r.Resources)
		s.TotalCosmosAccounts += len(r.CosmosAccounts)
		for t, n := range exporter.ResourceTypeCounts(r.Resources) {
			s.ResourceTypes[t] += n
		}
		s.Subscriptions = append(s.Subscriptions, SubscriptionSummary{
			ID:                 r.Subscription.ID,
			Name:               r.Subscription.Name,
			Success:            r.Success,
			Error:              r.Error,
			ResourceCount:      len(r.Resources),
			CosmosAccountCount: len(r.CosmosAccounts),
			File:               exporter.ResultFileName(r.Subscription.ID),
		})
	}
	return s
}

// Source is the subscription, and when available the account, the importer
// should read from. Account is nil for a subscription-only source.
type Source struct {
	Subscription subscription.Subscription
	Account      *exporter.CosmosAccount
}

// SelectSource picks the first account with keys in input order, else the
// first successful subscription. ok is false when neither exists.
func SelectSource(results []exporter.ExportResult) (Source, bool) {
	for _, r := range results {
		if accounts := r.AccountsWithKeys(); len(accounts) > 0 {
			account := accounts[0]
			return Source{Subscription: r.Subscription, Account: &account}, true
		}
	}
	for _, r := range results {
		if r.Success {
			return Source{Subscription: r.Subscription}, true
		}
	}
	return Source{}, false
}

// GenerateEnvConfig renders the importer environment for the selected
// source. Without an account the source endpoint and key are left out.
func GenerateEnvConfig(results []exporter.ExportResult, database string, generatedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Generated by ato-migration export at %s\n", generatedAt.UTC().Format(time.RFC3339))
	b.WriteString("# Review before use. This file contains account keys.\n\n")

	source, ok := SelectSource(results)
	switch {
	case ok && source.Account != nil:
		a := source.Account
		fmt.Fprintf(&b, "# Source: CosmosDB account %s in subscription %s\n", a.Name, source.Subscription.Name)
		fmt.Fprintf(&b, "AZURE_SOURCE_SUBSCRIPTION_ID=%s\n", source.Subscription.ID)
		fmt.Fprintf(&b, "AZURE_SOURCE_RESOURCE_GROUP=%s\n", a.ResourceGroup)
		fmt.Fprintf(&b, "AZURE_SOURCE_COSMOS_ENDPOINT=%s\n", a.DocumentEndpoint)
		fmt.Fprintf(&b, "AZURE_SOURCE_COSMOS_KEY=%s\n", a.ConnectionInfo.PrimaryKey)
		fmt.Fprintf(&b, "AZURE_SOURCE_COSMOS_DATABASE=%s\n", database)
	case ok:
		b.WriteString("# No CosmosDB account with readable keys was found.\n")
		b.WriteString("# Only the Azure inventory of this subscription can be imported.\n")
		fmt.Fprintf(&b, "# Source: subscription %s\n", source.Subscription.Name)
		fmt.Fprintf(&b, "AZURE_SOURCE_SUBSCRIPTION_ID=%s\n", source.Subscription.ID)
		fmt.Fprintf(&b, "AZURE_SOURCE_COSMOS_DATABASE=%s\n", database)
	default:
		b.WriteString("# No subscription was exported successfully; no source is available.\n")
	}

	b.WriteString("\n# Target CosmosDB\n")
	b.WriteString("AZURE_TARGET_COSMOS_ENDPOINT=\n")
	b.WriteString("AZURE_TARGET_COSMOS_KEY=\n")
	fmt.Fprintf(&b, "AZURE_TARGET_COSMOS_DATABASE=%s\n", database)
	return b.String()
}

// GenerateInstructions renders IMPORT_INSTRUCTIONS.md.
func GenerateInstructions(summary Summary, results []exporter.ExportResult) string {
	var b strings.Builder
	b.WriteString("# Import instructions\n\n")
	fmt.Fprintf(&b, "Export generated at %s.\n\n", summary.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Subscriptions | %d |\n", summary.TotalSubscriptions)
	fmt.Fprintf(&b, "| Successful | %d |\n", summary.Successful)
	fmt.Fprintf(&b, "| Failed | %d |\n", summary.Failed)
	fmt.Fprintf(&b, "| Resources | %d |\n", summary.TotalResources)
	fmt.Fprintf(&b, "| CosmosDB accounts | %d |\n\n", summary.TotalCosmosAccounts)

	b.WriteString("## Subscriptions\n\n")
	for _, s := range summary.Subscriptions {
		status := "ok"
		if !s.Success {
			status = "failed: " + s.Error
		}
		fmt.Fprintf(&b, "- %s (`%s`): %d resources, %d CosmosDB accounts, %s\n", s.Name, s.ID, s.ResourceCount, s.CosmosAccountCount, status)
	}

	if len(summary.ResourceTypes) > 0 {
		b.WriteString("\n## Resource types\n\n")
		types := make([]string, 0, len(summary.ResourceTypes))
		for t := range summary.ResourceTypes {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			ci, cj := summary.ResourceTypes[types[i]], summary.ResourceTypes[types[j]]
			if ci != cj {
				return ci > cj
			}
			return types[i] < types[j]
		})
		for _, t := range types {
			fmt.Fprintf(&b, "- %s: %d\n", t, summary.ResourceTypes[t])
		}
	}

	b.WriteString("\n## Next steps\n\n")
	source, ok := SelectSource(results)
	switch {
	case ok && source.Account != nil:
		fmt.Fprintf(&b, "1. Review `%s`; it selects account `%s` as the import source.\n", EnvFile, source.Account.Name)
	case ok:
		fmt.Fprintf(&b, "1. Review `%s`; no account keys were readable, so only inventory import is configured.\n", EnvFile)
	default:
		fmt.Fprintf(&b, "1. No subscription exported successfully. Fix the errors above and export again.\n")
	}
	b.WriteString("2. Fill in the target CosmosDB endpoint and key.\n")
	fmt.Fprintf(&b, "3. Load the environment: `set -a; source %s; set +a`.\n", EnvFile)
	b.WriteString("4. Preview with `ato-migration import --dry-run`, then run `ato-migration import`.\n")
	b.WriteString("5. Seed reference data with `ato-migration seed` (add `--variant multi-cloud` for tenant data).\n")
	return b.String()
}

// WriteArtifacts writes the summary, env config and instructions into dir
// and returns the written paths.
func WriteArtifacts(dir string, results []exporter.ExportResult, database string, generatedAt time.Time) (Summary, []string, error) {
	summary := Aggregate(results, generatedAt)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return summary, nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, nil, fmt.Errorf("failed to marshal export summary: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{SummaryFile, data},
		{EnvFile, []byte(GenerateEnvConfig(results, database, generatedAt))},
		{InstructionsFile, []byte(GenerateInstructions(summary, results))},
	}

	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0600); err != nil {
			return summary, paths, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return summary, paths, nil
}
