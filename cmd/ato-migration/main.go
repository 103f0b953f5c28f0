// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/netSkope/ato-migration-tool/internal/azure"
	"github.com/netSkope/ato-migration-tool/internal/config"
	atolog "github.com/netSkope/ato-migration-tool/internal/log"
	"github.com/netSkope/ato-migration-tool/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "ato-migration"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	flags      config.Flags
	// newExportDeps replaces the Azure-backed export collaborators when set.
	newExportDeps func(rt *runtime) (exportDeps, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithOptions(&rootOptions{})
}

func newRootCmdWithOptions(opts *rootOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Export Azure inventory and load the ATO compliance dashboard database",
		Long: `ato-migration feeds the ATO compliance dashboard database.

  export  enumerate subscriptions, export their inventory and write the
          import configuration for the dashboard
  import  copy CosmosDB containers and Azure inventory into the dashboard
  seed    load the standard or multi-cloud seed dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config-file", config.DefaultConfigFile, "Config file path")
	pf.BoolVar(&opts.flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&opts.flags.LogStdout, "log-stdout", false, "Log to stdout instead of a file")
	pf.StringVar(&opts.flags.LogDir, "log-dir", "", "Log directory (default /tmp)")
	pf.StringVar(&opts.flags.AuthMode, "auth", "", "Azure auth mode: cli or default (default cli)")
	pf.StringVar(&opts.flags.Database, "database", "", "Dashboard database name (default ato-dashboard)")

	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	return cmd
}

// runtime is the per-command state built from configuration.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
	cred     azcore.TokenCredential
}

// setup loads configuration, starts the logger and resolves secret references.
func (o *rootOptions) setup(ctx context.Context, command string) (*runtime, error) {
	cfg, err := config.Load(o.configFile, o.flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLog, err := atolog.NewLogger(atolog.Options{
		Dir:    cfg.LogDir,
		Name:   appName,
		Debug:  cfg.Debug,
		Stdout: cfg.LogStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, closeLog: closeLog}
	logger.Info("Starting ato-migration",
		zap.String("command", command),
		zap.String("auth_mode", cfg.AuthMode),
		zap.String("database", cfg.Database))

	if cfg.HasSecretRefs() {
		cred, err := rt.credential()
		if err != nil {
			rt.close()
			return nil, err
		}
		// AWS keys that are themselves references cannot authenticate their own lookup.
		awsCreds := cfg.AWSCredentials()
		if util.IsSecretRef(awsCreds.AccessKeyID) || util.IsSecretRef(awsCreds.SecretAccessKey) {
			awsCreds = util.AWSCredentials{}
		}
		if err := cfg.ResolveSecrets(ctx, util.NewSecretResolver(cred, awsCreds)); err != nil {
			logger.Error("Failed to resolve secret references", zap.Error(err))
			rt.close()
			return nil, err
		}
		logger.Debug("Secret references resolved")
	}
	return rt, nil
}

// credential creates the Azure credential on first use.
func (rt *runtime) credential() (azcore.TokenCredential, error) {
	if rt.cred != nil {
		return rt.cred, nil
	}
	cred, err := azure.NewCredential(rt.cfg.AuthMode)
	if err != nil {
		return nil, err
	}
	rt.cred = cred
	return cred, nil
}

// storeCredential returns the token credential only when the key is empty,
// so key-based connections never touch Azure identity.
func (rt *runtime) storeCredential(key string) (azcore.TokenCredential, error) {
	if key != "" {
		return nil, nil
	}
	return rt.credential()
}

func (rt *runtime) close() {
	if rt.closeLog == nil {
		_ = rt.logger.Sync()
		return
	}
	if err := rt.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
}
