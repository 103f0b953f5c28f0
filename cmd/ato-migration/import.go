// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/netSkope/ato-migration-tool/internal/azure"
	"github.com/netSkope/ato-migration-tool/internal/config"
	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/importer"
	"github.com/netSkope/ato-migration-tool/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOptions struct {
	dryRun bool
	scope  config.ImportScope
	// noSource is set when containers were skipped for lack of a source endpoint.
	noSource bool
}

type importDeps struct {
	source    store.Store // nil when containers are skipped
	target    store.Store
	inventory exporter.Inventory // nil unless inventory is pulled live
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy CosmosDB containers and Azure inventory into the dashboard database",
		Long: `Copy every container of the source CosmosDB database into the target
database by upsert, creating missing containers with the source partition
key. Then import the source subscription's resources into azure-resources
and its security assessments into security-assessments.

Reads the AZURE_SOURCE_* and AZURE_TARGET_* (or AZURE_COSMOS_*) variables
written by the export command. Items that fail are logged and skipped.
Without a source endpoint only the inventory is imported, unless
--require-containers is given.`,
		Example: `  ato-migration import --dry-run
  ato-migration import --skip-containers --from-export azure-export/subscription-<id>.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := root.setup(ctx, "import")
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.ValidateImport(opts.scope, opts.dryRun); err != nil {
				return err
			}
			if opts.scope, opts.noSource = rt.cfg.EffectiveImportScope(opts.scope); opts.noSource {
				rt.logger.Warn("No source CosmosDB endpoint configured, importing inventory only")
			}
			deps, err := rt.importDeps(opts)
			if err != nil {
				return err
			}
			return runImport(ctx, rt, deps, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Write into memory and report what would be imported")
	cmd.Flags().BoolVar(&opts.scope.SkipContainers, "skip-containers", false, "Do not copy source containers")
	cmd.Flags().BoolVar(&opts.scope.SkipInventory, "skip-inventory", false, "Do not import Azure resources and security assessments")
	cmd.Flags().StringVar(&opts.scope.FromExport, "from-export", "", "Read inventory from an export result file instead of Azure")
	cmd.Flags().BoolVar(&opts.scope.RequireContainers, "require-containers", false, "Fail instead of skipping containers when no source endpoint is configured")
	cmd.MarkFlagsMutuallyExclusive("skip-inventory", "from-export")
	cmd.MarkFlagsMutuallyExclusive("skip-containers", "require-containers")

	return cmd
}

func (rt *runtime) importDeps(opts importOptions) (importDeps, error) {
	var deps importDeps
	cfg := rt.cfg

	if !opts.scope.SkipContainers {
		cred, err := rt.storeCredential(cfg.Source.Key)
		if err != nil {
			return deps, err
		}
		deps.source, err = store.NewCosmosStore(cfg.SourceStore(), cred, rt.logger.With(zap.String("store", "source")))
		if err != nil {
			return deps, fmt.Errorf("failed to connect to source database: %w", err)
		}
	}

	target, err := rt.targetStore(opts.dryRun)
	if err != nil {
		return deps, err
	}
	deps.target = target

	if !opts.scope.SkipInventory && opts.scope.FromExport == "" {
		cred, err := rt.credential()
		if err != nil {
			return deps, err
		}
		deps.inventory, err = azure.NewInventory(cred)
		if err != nil {
			return deps, err
		}
	}
	return deps, nil
}

// targetStore returns the dashboard database, or an in-memory store for a dry run.
func (rt *runtime) targetStore(dryRun bool) (store.Store, error) {
	if dryRun {
		rt.logger.Info("Dry run: writing into an in-memory store")
		return store.NewMemoryStore(), nil
	}
	cred, err := rt.storeCredential(rt.cfg.Target.Key)
	if err != nil {
		return nil, err
	}
	target, err := store.NewCosmosStore(rt.cfg.TargetStore(), cred, rt.logger.With(zap.String("store", "target")))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}
	return target, nil
}

func runImport(ctx context.Context, rt *runtime, deps importDeps, opts importOptions, w io.Writer) error {
	cfg, logger := rt.cfg, rt.logger
	imp := importer.NewImporter(deps.source, deps.target, logger)

	var containerStats, inventoryStats importer.Stats
	var securityErr error

	if !opts.scope.SkipContainers {
		stats, err := imp.ImportContainers(ctx)
		if err != nil {
			return fmt.Errorf("failed to import containers: %w", err)
		}
		containerStats = stats
	}

	if !opts.scope.SkipInventory {
		var (
			inv importer.Inventory
			err error
		)
		if opts.scope.FromExport != "" {
			inv, err = importer.InventoryFromExport(opts.scope.FromExport, cfg.SourceResourceGroup)
		} else {
			inv, err = importer.LoadInventory(ctx, deps.inventory, cfg.SourceSubscriptionID, cfg.SourceResourceGroup)
		}
		if err != nil {
			return fmt.Errorf("failed to load inventory: %w", err)
		}
		if inv.SecurityError != nil {
			securityErr = inv.SecurityError
			logger.Warn("Security assessments unavailable, importing resources only", zap.Error(inv.SecurityError))
		}

		stats, err := imp.ImportInventory(ctx, inv.SubscriptionID, inv.Resources, inv.Assessments)
		if err != nil {
			return fmt.Errorf("failed to import inventory: %w", err)
		}
		inventoryStats = stats
	}

	fmt.Fprintf(w, "\n=== Import Summary ===\n")
	if opts.dryRun {
		fmt.Fprintf(w, "Mode: dry run (nothing written to %s)\n", cfg.Target.Database)
	} else {
		fmt.Fprintf(w, "Target database: %s\n", cfg.Target.Database)
	}
	switch {
	case opts.noSource:
		fmt.Fprintf(w, "Containers: skipped (AZURE_SOURCE_COSMOS_ENDPOINT not set)\n")
	case opts.scope.SkipContainers:
		fmt.Fprintf(w, "Containers: skipped\n")
	default:
		fmt.Fprintf(w, "Source database: %s\n", cfg.Source.Database)
		fmt.Fprintf(w, "Containers: %d (created: %d, skipped: %d)\n",
			containerStats.Containers, containerStats.CreatedContainers, containerStats.SkippedContainers)
		fmt.Fprintf(w, "Items copied: %d\n", containerStats.Copied)
		fmt.Fprintf(w, "Items failed: %d\n", containerStats.Failed)
	}
	if opts.scope.SkipInventory {
		fmt.Fprintf(w, "Inventory: skipped\n")
	} else {
		fmt.Fprintf(w, "Inventory documents upserted: %d\n", inventoryStats.Copied)
		fmt.Fprintf(w, "Inventory documents failed: %d\n", inventoryStats.Failed)
		if securityErr != nil {
			fmt.Fprintf(w, "Security assessments: unavailable (%v)\n", securityErr)
		}
	}

	if mem, ok := deps.target.(*store.MemoryStore); ok {
		printMemoryContents(ctx, w, mem)
	}
	if containerStats.Failed+inventoryStats.Failed > 0 {
		fmt.Fprintf(w, "Some items failed; see the log for item ids.\n")
	}
	return nil
}

// printMemoryContents lists what a dry run would have written.
func printMemoryContents(ctx context.Context, w io.Writer, mem *store.MemoryStore) {
	containers, err := mem.ListContainers(ctx)
	if err != nil || len(containers) == 0 {
		return
	}
	fmt.Fprintf(w, "\nWould write:\n")
	for _, c := range containers {
		fmt.Fprintf(w, "  %s (%s): %d documents\n", c.Name, c.PartitionKeyPath, mem.Count(c.Name))
	}
}
