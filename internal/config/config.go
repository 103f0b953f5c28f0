// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/netSkope/ato-migration-tool/internal/azure"
	"github.com/netSkope/ato-migration-tool/internal/publish"
	"github.com/netSkope/ato-migration-tool/internal/seed"
	"github.com/netSkope/ato-migration-tool/internal/store"
	"github.com/netSkope/ato-migration-tool/internal/util"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "ato-migration.yaml"
	DefaultDatabase    = "ato-dashboard"
	DefaultOutputDir   = "azure-export"
	DefaultLogDir      = "/tmp"
	DefaultOverlaySeed = seed.DefaultOverlaySeed

	envPrefix = "ATO_MIGRATION_"
)

var (
	ErrMissingTarget       = errors.New("target cosmos endpoint is required (AZURE_TARGET_COSMOS_ENDPOINT or AZURE_COSMOS_ENDPOINT)")
	ErrMissingSource       = errors.New("source cosmos endpoint is required (AZURE_SOURCE_COSMOS_ENDPOINT)")
	ErrMissingSubscription = errors.New("source subscription is required (AZURE_SOURCE_SUBSCRIPTION_ID)")
	ErrMissingS3Bucket     = errors.New("s3-bucket is required when publishing to s3")
	ErrMissingAWSRegion    = errors.New("aws-region is required when publishing to s3")
	ErrMissingBlob         = errors.New("blob account URL and container are required when publishing to blob")
)

// Cosmos identifies one CosmosDB database. An empty Key means the Azure
// token credential is used instead of a master key.
type Cosmos struct {
	Endpoint string
	Key      string
	Database string
}

// Config holds all configuration for the migration tool.
type Config struct {
	AuthMode  string
	OutputDir string
	// Database is the dashboard database name written into the import config.
	Database    string
	OverlaySeed int64
	// CosmosInsecure disables TLS verification for the local emulator.
	CosmosInsecure bool
	Quiet          bool

	// Importer source
	SourceSubscriptionID string
	SourceResourceGroup  string
	Source               Cosmos

	Target Cosmos

	// Artifact publishing
	Publish            string
	PublishPrefix      string
	S3Bucket           string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BlobAccountURL     string
	BlobContainer      string

	// Logging
	LogDir    string
	Debug     bool
	LogStdout bool
}

// Flags carries CLI flag values. Zero values mean "not set on the command line".
type Flags struct {
	AuthMode    string
	OutputDir   string
	Database    string
	OverlaySeed *int64
	Publish     string
	LogDir      string
	Debug       bool
	LogStdout   bool
	Quiet       bool
}

// Load builds the configuration from the YAML file, environment variables
// and CLI flags. Priority: CLI flags > environment variables > YAML file > defaults.
// A missing config file is not an error.
func Load(configFile string, flags Flags) (*Config, error) {
	// 0 is a valid seed, so the default goes in before any layer applies.
	cfg := &Config{OverlaySeed: DefaultOverlaySeed}

	if configFile != "" {
		if err := loadFromYAML(cfg, configFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)
	applyDefaults(cfg)

	switch strings.ToLower(cfg.AuthMode) {
	case azure.AuthCLI, azure.AuthDefault:
		cfg.AuthMode = strings.ToLower(cfg.AuthMode)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q (expected %q or %q)", cfg.AuthMode, azure.AuthCLI, azure.AuthDefault)
	}

	switch cfg.Publish {
	case "", publish.TargetS3, publish.TargetBlob:
	default:
		return nil, fmt.Errorf("unsupported publish target %q (expected %q or %q)", cfg.Publish, publish.TargetS3, publish.TargetBlob)
	}

	return cfg, nil
}

func applyFlags(cfg *Config, flags Flags) {
	if flags.AuthMode != "" {
		cfg.AuthMode = flags.AuthMode
	}
	if flags.OutputDir != "" {
		cfg.OutputDir = flags.OutputDir
	}
	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if flags.OverlaySeed != nil {
		cfg.OverlaySeed = *flags.OverlaySeed
	}
	if flags.Publish != "" {
		cfg.Publish = flags.Publish
	}
	if flags.LogDir != "" {
		cfg.LogDir = flags.LogDir
	}
	if flags.Debug {
		cfg.Debug = true
	}
	if flags.LogStdout {
		cfg.LogStdout = true
	}
	if flags.Quiet {
		cfg.Quiet = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AuthMode == "" {
		cfg.AuthMode = azure.AuthCLI
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Source.Database == "" {
		cfg.Source.Database = cfg.Database
	}
	if cfg.Target.Database == "" {
		cfg.Target.Database = cfg.Database
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
}

type yamlCosmos struct {
	SubscriptionID string `yaml:"subscription_id"`
	ResourceGroup  string `yaml:"resource_group"`
	CosmosEndpoint string `yaml:"cosmos_endpoint"`
	CosmosKey      string `yaml:"cosmos_key"`
	CosmosDatabase string `yaml:"cosmos_database"`
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		Auth           string     `yaml:"auth"`
		OutputDir      string     `yaml:"output_dir"`
		Database       string     `yaml:"database"`
		OverlaySeed    *int64     `yaml:"overlay_seed"`
		CosmosInsecure bool       `yaml:"cosmos_insecure"`
		Source         yamlCosmos `yaml:"source"`
		Target         yamlCosmos `yaml:"target"`
		Publish        struct {
			Target             string `yaml:"target"`
			Prefix             string `yaml:"prefix"`
			S3Bucket           string `yaml:"s3_bucket"`
			AWSRegion          string `yaml:"aws_region"`
			AWSAccessKeyID     string `yaml:"aws_access_key_id"`
			AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
			BlobAccountURL     string `yaml:"blob_account_url"`
			BlobContainer      string `yaml:"blob_container"`
		} `yaml:"publish"`
		Log struct {
			Dir    string `yaml:"dir"`
			Debug  bool   `yaml:"debug"`
			Stdout bool   `yaml:"stdout"`
		} `yaml:"log"`
	}

	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	setString(&cfg.AuthMode, yamlCfg.Auth)
	setString(&cfg.OutputDir, yamlCfg.OutputDir)
	setString(&cfg.Database, yamlCfg.Database)
	if yamlCfg.OverlaySeed != nil {
		cfg.OverlaySeed = *yamlCfg.OverlaySeed
	}
	cfg.CosmosInsecure = yamlCfg.CosmosInsecure

	setString(&cfg.SourceSubscriptionID, yamlCfg.Source.SubscriptionID)
	setString(&cfg.SourceResourceGroup, yamlCfg.Source.ResourceGroup)
	setString(&cfg.Source.Endpoint, yamlCfg.Source.CosmosEndpoint)
	setString(&cfg.Source.Key, yamlCfg.Source.CosmosKey)
	setString(&cfg.Source.Database, yamlCfg.Source.CosmosDatabase)
	setString(&cfg.Target.Endpoint, yamlCfg.Target.CosmosEndpoint)
	setString(&cfg.Target.Key, yamlCfg.Target.CosmosKey)
	setString(&cfg.Target.Database, yamlCfg.Target.CosmosDatabase)

	setString(&cfg.Publish, yamlCfg.Publish.Target)
	setString(&cfg.PublishPrefix, yamlCfg.Publish.Prefix)
	setString(&cfg.S3Bucket, yamlCfg.Publish.S3Bucket)
	setString(&cfg.AWSRegion, yamlCfg.Publish.AWSRegion)
	setString(&cfg.AWSAccessKeyID, yamlCfg.Publish.AWSAccessKeyID)
	setString(&cfg.AWSSecretAccessKey, yamlCfg.Publish.AWSSecretAccessKey)
	setString(&cfg.BlobAccountURL, yamlCfg.Publish.BlobAccountURL)
	setString(&cfg.BlobContainer, yamlCfg.Publish.BlobContainer)

	setString(&cfg.LogDir, yamlCfg.Log.Dir)
	cfg.Debug = yamlCfg.Log.Debug
	cfg.LogStdout = yamlCfg.Log.Stdout

	return nil
}

// loadFromEnv loads configuration from environment variables. Cosmos
// connection settings use the names the export writes into azure-import.env.
func loadFromEnv(cfg *Config) error {
	setString(&cfg.AuthMode, os.Getenv(envPrefix+"AUTH"))
	setString(&cfg.OutputDir, os.Getenv(envPrefix+"OUTPUT_DIR"))
	setString(&cfg.Database, os.Getenv(envPrefix+"DATABASE"))
	if val := os.Getenv(envPrefix + "OVERLAY_SEED"); val != "" {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sOVERLAY_SEED %q: %w", envPrefix, val, err)
		}
		cfg.OverlaySeed = seed
	}
	setBool(&cfg.CosmosInsecure, os.Getenv(envPrefix+"COSMOS_INSECURE"))
	setBool(&cfg.Quiet, os.Getenv(envPrefix+"QUIET"))

	setString(&cfg.SourceSubscriptionID, os.Getenv("AZURE_SOURCE_SUBSCRIPTION_ID"))
	setString(&cfg.SourceResourceGroup, os.Getenv("AZURE_SOURCE_RESOURCE_GROUP"))
	setString(&cfg.Source.Endpoint, os.Getenv("AZURE_SOURCE_COSMOS_ENDPOINT"))
	setString(&cfg.Source.Key, os.Getenv("AZURE_SOURCE_COSMOS_KEY"))
	setString(&cfg.Source.Database, os.Getenv("AZURE_SOURCE_COSMOS_DATABASE"))

	setString(&cfg.Target.Endpoint, firstEnv("AZURE_TARGET_COSMOS_ENDPOINT", "AZURE_COSMOS_ENDPOINT"))
	setString(&cfg.Target.Key, firstEnv("AZURE_TARGET_COSMOS_KEY", "AZURE_COSMOS_KEY"))
	setString(&cfg.Target.Database, firstEnv("AZURE_TARGET_COSMOS_DATABASE", "AZURE_COSMOS_DATABASE"))

	setString(&cfg.Publish, os.Getenv(envPrefix+"PUBLISH"))
	setString(&cfg.PublishPrefix, os.Getenv(envPrefix+"PUBLISH_PREFIX"))
	setString(&cfg.S3Bucket, os.Getenv(envPrefix+"S3_BUCKET"))
	setString(&cfg.AWSRegion, os.Getenv(envPrefix+"AWS_REGION"))
	setString(&cfg.AWSAccessKeyID, os.Getenv(envPrefix+"AWS_ACCESS_KEY_ID"))
	setString(&cfg.AWSSecretAccessKey, os.Getenv(envPrefix+"AWS_SECRET_ACCESS_KEY"))
	setString(&cfg.BlobAccountURL, os.Getenv(envPrefix+"BLOB_ACCOUNT_URL"))
	setString(&cfg.BlobContainer, os.Getenv(envPrefix+"BLOB_CONTAINER"))

	setString(&cfg.LogDir, os.Getenv(envPrefix+"LOG_DIR"))
	setBool(&cfg.Debug, os.Getenv(envPrefix+"DEBUG"))
	setBool(&cfg.LogStdout, os.Getenv(envPrefix+"LOG_STDOUT"))
	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setBool(dst *bool, val string) {
	if val != "" {
		*dst = val == "true" || val == "1"
	}
}

// firstEnv returns the first non-empty variable among names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// Resolver turns secret references into values. *util.SecretResolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ResolveSecrets replaces every secret reference (keyvault://, awssm://)
// in credential fields with the referenced value.
func (c *Config) ResolveSecrets(ctx context.Context, r Resolver) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"source cosmos key", &c.Source.Key},
		{"target cosmos key", &c.Target.Key},
		{"aws access key id", &c.AWSAccessKeyID},
		{"aws secret access key", &c.AWSSecretAccessKey},
	}
	for _, f := range fields {
		if !util.IsSecretRef(*f.val) {
			continue
		}
		val, err := r.Resolve(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f.name, err)
		}
		*f.val = val
	}
	return nil
}

// HasSecretRefs reports whether any credential field still holds a reference.
func (c *Config) HasSecretRefs() bool {
	for _, v := range []string{c.Source.Key, c.Target.Key, c.AWSAccessKeyID, c.AWSSecretAccessKey} {
		if util.IsSecretRef(v) {
			return true
		}
	}
	return false
}

// ValidateExport checks the settings the export command needs.
func (c *Config) ValidateExport() error {
	switch c.Publish {
	case publish.TargetS3:
		if c.S3Bucket == "" {
			return ErrMissingS3Bucket
		}
		if c.AWSRegion == "" {
			return ErrMissingAWSRegion
		}
	case publish.TargetBlob:
		if c.BlobAccountURL == "" || c.BlobContainer == "" {
			return ErrMissingBlob
		}
	}
	return nil
}

// ImportScope selects which parts of an import run.
type ImportScope struct {
	SkipContainers bool
	// RequireContainers makes a missing source endpoint an error instead
	// of skipping container import.
	RequireContainers bool
	SkipInventory     bool
	// FromExport reads inventory from an export result file instead of Azure.
	FromExport string
}

// ValidateImport checks the settings the import command needs for scope.
// A dry run needs no target.
func (c *Config) ValidateImport(scope ImportScope, dryRun bool) error {
	if !dryRun && c.Target.Endpoint == "" {
		return ErrMissingTarget
	}
	if scope.RequireContainers && c.Source.Endpoint == "" {
		return ErrMissingSource
	}
	if !scope.SkipInventory && scope.FromExport == "" && c.SourceSubscriptionID == "" {
		return ErrMissingSubscription
	}
	return nil
}

// EffectiveImportScope returns scope with container import turned off when
// no source endpoint is configured, as in the inventory-only config the
// export writes when no account keys were readable. The bool reports
// whether containers were dropped.
func (c *Config) EffectiveImportScope(scope ImportScope) (ImportScope, bool) {
	if scope.SkipContainers || c.Source.Endpoint != "" {
		return scope, false
	}
	scope.SkipContainers = true
	return scope, true
}

// ValidateSeed checks the settings the seed command needs.
func (c *Config) ValidateSeed(dryRun bool) error {
	if !dryRun && c.Target.Endpoint == "" {
		return ErrMissingTarget
	}
	return nil
}

// SourceStore returns the store settings for the importer source.
func (c *Config) SourceStore() store.CosmosConfig {
	return c.cosmosConfig(c.Source)
}

// TargetStore returns the store settings for the dashboard database.
func (c *Config) TargetStore() store.CosmosConfig {
	return c.cosmosConfig(c.Target)
}

func (c *Config) cosmosConfig(db Cosmos) store.CosmosConfig {
	return store.CosmosConfig{
		Endpoint:           db.Endpoint,
		Key:                db.Key,
		Database:           db.Database,
		InsecureSkipVerify: c.CosmosInsecure,
	}
}

// AWSCredentials returns the explicitly configured AWS credentials, if any.
func (c *Config) AWSCredentials() util.AWSCredentials {
	return util.AWSCredentials{
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}
