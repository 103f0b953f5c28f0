// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/azure"
	"github.com/netSkope/ato-migration-tool/internal/config"
	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/migration"
	"github.com/netSkope/ato-migration-tool/internal/publish"
	"github.com/netSkope/ato-migration-tool/internal/report"
	"github.com/netSkope/ato-migration-tool/internal/subscription"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type exportOptions struct {
	all          bool
	subscription string
}

// exportDeps are the collaborators of an export run.
type exportDeps struct {
	checkAuth    func(ctx context.Context) error
	enumerator   subscription.Enumerator
	inventory    exporter.Inventory
	newPublisher func(ctx context.Context) (publish.Publisher, error)
	now          func() time.Time
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		opts    exportOptions
		allSubs bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export Azure inventory per subscription and write the import configuration",
		Long: `Export resource groups, resources, CosmosDB accounts and security
assessments for the selected subscriptions, one subscription at a time.
A failing subscription is recorded in its result file and the run continues.

Writes subscription-<id>.json per subscription plus export-summary.json,
azure-import.env and IMPORT_INSTRUCTIONS.md into the output directory.`,
		Example: `  ato-migration export --all
  ato-migration export --subscription prod
  ato-migration export --all --publish s3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.all = opts.all || allSubs
			ctx := cmd.Context()

			rt, err := root.setup(ctx, "export")
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.ValidateExport(); err != nil {
				return err
			}
			newDeps := (*runtime).exportDeps
			if root.newExportDeps != nil {
				newDeps = root.newExportDeps
			}
			deps, err := newDeps(rt)
			if err != nil {
				return err
			}
			return runExport(ctx, rt, deps, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Export every enabled subscription")
	cmd.Flags().BoolVar(&allSubs, "all-subscriptions", false, "Alias for --all")
	cmd.Flags().StringVar(&opts.subscription, "subscription", "", "Subscription id or name (exact or partial match)")
	cmd.Flags().StringVar(&root.flags.OutputDir, "output-dir", "", "Export directory (default azure-export)")
	cmd.Flags().StringVar(&root.flags.Publish, "publish", "", "Publish artifacts after export: s3 or blob")
	cmd.Flags().BoolVar(&root.flags.Quiet, "quiet", false, "Suppress 'Next Steps' instructions (useful when run via script)")
	cmd.MarkFlagsMutuallyExclusive("all", "subscription")
	cmd.MarkFlagsMutuallyExclusive("all-subscriptions", "subscription")

	return cmd
}

// exportDeps wires the Azure-backed collaborators.
func (rt *runtime) exportDeps() (exportDeps, error) {
	cred, err := rt.credential()
	if err != nil {
		return exportDeps{}, err
	}
	lister, err := azure.NewSubscriptionLister(cred)
	if err != nil {
		return exportDeps{}, err
	}
	inv, err := azure.NewInventory(cred)
	if err != nil {
		return exportDeps{}, err
	}
	return exportDeps{
		checkAuth:    func(ctx context.Context) error { return azure.CheckAuth(ctx, cred) },
		enumerator:   lister,
		inventory:    inv,
		newPublisher: rt.newPublisher,
		now:          time.Now,
	}, nil
}

// newPublisher creates the publisher for the configured target.
func (rt *runtime) newPublisher(ctx context.Context) (publish.Publisher, error) {
	cfg := rt.cfg
	switch cfg.Publish {
	case publish.TargetS3:
		return publish.NewS3Publisher(ctx, publish.S3Config{
			Bucket:      cfg.S3Bucket,
			Region:      cfg.AWSRegion,
			Credentials: cfg.AWSCredentials(),
		}, rt.logger)
	case publish.TargetBlob:
		cred, err := rt.credential()
		if err != nil {
			return nil, err
		}
		return publish.NewBlobPublisher(publish.BlobConfig{
			AccountURL: cfg.BlobAccountURL,
			Container:  cfg.BlobContainer,
		}, cred, rt.logger)
	default:
		return nil, fmt.Errorf("unsupported publish target %q", cfg.Publish)
	}
}

func runExport(ctx context.Context, rt *runtime, deps exportDeps, opts exportOptions, w io.Writer) error {
	cfg, logger := rt.cfg, rt.logger

	if err := deps.checkAuth(ctx); err != nil {
		logger.Error("Azure authentication check failed", zap.Error(err))
		return err
	}

	subs, err := subscription.Enabled(ctx, deps.enumerator)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	selected, err := subscription.Select(subs, opts.all, opts.subscription)
	if err != nil {
		return err
	}
	logger.Info("Subscriptions selected",
		zap.Int("enabled", len(subs)),
		zap.Int("selected", len(selected)),
		zap.String("output_dir", cfg.OutputDir))

	exp := exporter.NewExporter(deps.inventory, logger)
	out, err := migration.ProcessSubscriptions(ctx, selected, exp, cfg.OutputDir, logger)
	if err != nil {
		return fmt.Errorf("failed to process subscriptions: %w", err)
	}

	generatedAt := deps.now().UTC()
	summary, artifacts, err := report.WriteArtifacts(cfg.OutputDir, out.Results, cfg.Database, generatedAt)
	if err != nil {
		return fmt.Errorf("failed to write export artifacts: %w", err)
	}
	files := append(append([]string{}, out.Files...), artifacts...)
	logger.Info("Export artifacts written", zap.Int("files", len(files)))

	var (
		locations  []string
		publishErr error
	)
	if cfg.Publish != "" {
		locations, publishErr = publishArtifacts(ctx, rt, deps, files, generatedAt)
		if publishErr != nil {
			// Artifacts are on disk; publishing is best effort.
			logger.Warn("Publishing incomplete", zap.Error(publishErr))
		}
	}

	source, hasSource := report.SelectSource(out.Results)
	printExportSummary(w, cfg, summary, files, source, hasSource, locations, publishErr)
	return nil
}

func publishArtifacts(ctx context.Context, rt *runtime, deps exportDeps, files []string, generatedAt time.Time) ([]string, error) {
	p, err := deps.newPublisher(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s publisher: %w", rt.cfg.Publish, err)
	}
	prefix := rt.cfg.PublishPrefix
	if prefix == "" {
		prefix = "ato-export/" + generatedAt.Format("20060102T150405Z")
	}
	return publish.PublishAll(ctx, p, prefix, files, rt.logger)
}

func printExportSummary(w io.Writer, cfg *config.Config, summary report.Summary, files []string,
	source report.Source, hasSource bool, locations []string, publishErr error) {
	fmt.Fprintf(w, "\n=== Export Summary ===\n")
	fmt.Fprintf(w, "Subscriptions: %d (successful: %d, failed: %d)\n", summary.TotalSubscriptions, summary.Successful, summary.Failed)
	fmt.Fprintf(w, "Total resources: %d\n", summary.TotalResources)
	fmt.Fprintf(w, "Total CosmosDB accounts: %d\n", summary.TotalCosmosAccounts)
	fmt.Fprintf(w, "Output directory: %s\n", cfg.OutputDir)

	switch {
	case hasSource && source.Account != nil:
		fmt.Fprintf(w, "Import source: %s (subscription %s)\n", source.Account.Name, source.Subscription.Name)
	case hasSource:
		fmt.Fprintf(w, "Import source: subscription %s (no readable account keys)\n", source.Subscription.Name)
	default:
		fmt.Fprintf(w, "Import source: none\n")
	}

	if summary.Failed > 0 {
		fmt.Fprintf(w, "\nFailed subscriptions:\n")
		for _, s := range summary.Subscriptions {
			if !s.Success {
				fmt.Fprintf(w, "  - %s (%s): %s\n", s.Name, s.ID, s.Error)
			}
		}
	}

	fmt.Fprintf(w, "\nFiles written:\n")
	for i, f := range files {
		fmt.Fprintf(w, "  %d. %s\n", i+1, f)
	}

	if cfg.Publish != "" {
		fmt.Fprintf(w, "\nPublished to %s: %d of %d files\n", cfg.Publish, len(locations), len(files))
		for _, l := range locations {
			fmt.Fprintf(w, "  %s\n", l)
		}
		if publishErr != nil {
			fmt.Fprintf(w, "Publish errors: %v\n", publishErr)
		}
	}

	if !cfg.Quiet && hasSource {
		env := filepath.Join(cfg.OutputDir, report.EnvFile)
		fmt.Fprintf(w, "\n=== Next Steps ===\n")
		fmt.Fprintf(w, "1. Review %s and fill in the target CosmosDB endpoint and key\n", env)
		fmt.Fprintf(w, "2. Load it:  set -a; source %s; set +a\n", env)
		fmt.Fprintf(w, "3. Preview:  %s import --dry-run\n", appName)
		fmt.Fprintf(w, "4. Import:   %s import\n", appName)
		fmt.Fprintf(w, "See %s for details.\n", filepath.Join(cfg.OutputDir, report.InstructionsFile))
	}
}
