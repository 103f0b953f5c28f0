// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/netSkope/ato-migration-tool/internal/seed"
	"github.com/netSkope/ato-migration-tool/internal/store"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	variant string
	dryRun  bool
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	var (
		opts        seedOptions
		overlaySeed int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the seed dataset into the dashboard database",
		Long: `Create the seed containers and upsert the seed documents.

  standard     nist-controls, zta-activities, poam-items, vulnerabilities,
               control-history
  multi-cloud  tenant-scoped containers with a per-tenant, per-environment
               status overlay generated from --overlay-seed

Upserts are idempotent; running twice leaves the same contents.`,
		Example: `  ato-migration seed
  ato-migration seed --variant multi-cloud --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("overlay-seed") {
				root.flags.OverlaySeed = &overlaySeed
			}
			ctx := cmd.Context()

			rt, err := root.setup(ctx, "seed")
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.ValidateSeed(opts.dryRun); err != nil {
				return err
			}
			target, err := rt.targetStore(opts.dryRun)
			if err != nil {
				return err
			}
			return runSeed(ctx, rt, target, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", seed.VariantStandard, "Seed variant: standard or multi-cloud")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Write into memory and report what would be seeded")
	cmd.Flags().Int64Var(&overlaySeed, "overlay-seed", seed.DefaultOverlaySeed, "Random seed for the multi-cloud status overlay")

	return cmd
}

func runSeed(ctx context.Context, rt *runtime, target store.Store, opts seedOptions, w io.Writer) error {
	m := seed.NewMigrator(target, rt.cfg.OverlaySeed, rt.logger)
	stats, err := m.Run(ctx, opts.variant)
	if err != nil {
		return fmt.Errorf("seed migration failed: %w", err)
	}

	fmt.Fprintf(w, "\n=== Seed Summary ===\n")
	fmt.Fprintf(w, "Variant: %s\n", opts.variant)
	if opts.dryRun {
		fmt.Fprintf(w, "Mode: dry run (nothing written to %s)\n", rt.cfg.Target.Database)
	} else {
		fmt.Fprintf(w, "Target database: %s\n", rt.cfg.Target.Database)
	}
	if opts.variant == seed.VariantMultiCloud {
		fmt.Fprintf(w, "Overlay seed: %d\n", rt.cfg.OverlaySeed)
	}
	fmt.Fprintf(w, "Containers: %d (created: %d)\n", stats.Containers, stats.CreatedContainers)
	fmt.Fprintf(w, "Documents upserted: %d\n", stats.Upserted)
	fmt.Fprintf(w, "Documents failed: %d\n", stats.Failed)

	if mem, ok := target.(*store.MemoryStore); ok {
		printMemoryContents(ctx, w, mem)
	}
	return nil
}
