// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/netSkope/ato-migration-tool/internal/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"AZURE_SOURCE_SUBSCRIPTION_ID", "AZURE_SOURCE_RESOURCE_GROUP",
		"AZURE_SOURCE_COSMOS_ENDPOINT", "AZURE_SOURCE_COSMOS_KEY", "AZURE_SOURCE_COSMOS_DATABASE",
		"AZURE_TARGET_COSMOS_ENDPOINT", "AZURE_TARGET_COSMOS_KEY", "AZURE_TARGET_COSMOS_DATABASE",
		"AZURE_COSMOS_ENDPOINT", "AZURE_COSMOS_KEY", "AZURE_COSMOS_DATABASE",
	} {
		t.Setenv(name, "")
	}
	for _, suffix := range []string{
		"AUTH", "OUTPUT_DIR", "DATABASE", "OVERLAY_SEED", "COSMOS_INSECURE", "QUIET",
		"PUBLISH", "PUBLISH_PREFIX", "S3_BUCKET", "AWS_REGION", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "BLOB_ACCOUNT_URL", "BLOB_CONTAINER",
		"LOG_DIR", "DEBUG", "LOG_STDOUT",
	} {
		t.Setenv(envPrefix+suffix, "")
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ato-migration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Flags{})
	require.NoError(t, err)

	assert.Equal(t, "cli", cfg.AuthMode)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultDatabase, cfg.Target.Database)
	assert.Equal(t, DefaultDatabase, cfg.Source.Database)
	assert.EqualValues(t, DefaultOverlaySeed, cfg.OverlaySeed)
	assert.Equal(t, DefaultLogDir, cfg.LogDir)
	assert.Empty(t, cfg.Publish)
}

func TestLoad_Priority(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
auth: default
output_dir: yaml-out
database: yaml-db
overlay_seed: 7
source:
  subscription_id: sub-yaml
  cosmos_endpoint: https://yaml-source.documents.azure.com:443/
target:
  cosmos_endpoint: https://yaml-target.documents.azure.com:443/
publish:
  target: s3
  s3_bucket: yaml-bucket
  aws_region: us-gov-west-1
log:
  debug: true
`)
	t.Setenv("ATO_MIGRATION_OUTPUT_DIR", "env-out")
	t.Setenv("AZURE_SOURCE_SUBSCRIPTION_ID", "sub-env")
	t.Setenv("ATO_MIGRATION_S3_BUCKET", "env-bucket")

	seed := int64(0)
	cfg, err := Load(path, Flags{OutputDir: "flag-out", OverlaySeed: &seed})
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.AuthMode)
	assert.Equal(t, "flag-out", cfg.OutputDir)
	assert.Equal(t, "yaml-db", cfg.Database)
	assert.Equal(t, int64(0), cfg.OverlaySeed)
	assert.Equal(t, "sub-env", cfg.SourceSubscriptionID)
	assert.Equal(t, "https://yaml-source.documents.azure.com:443/", cfg.Source.Endpoint)
	assert.Equal(t, "https://yaml-target.documents.azure.com:443/", cfg.Target.Endpoint)
	assert.Equal(t, "yaml-db", cfg.Target.Database)
	assert.Equal(t, "env-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-gov-west-1", cfg.AWSRegion)
	assert.True(t, cfg.Debug)
	require.NoError(t, cfg.ValidateExport())
}

func TestLoad_TargetFallback(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantEndpoint string
		wantKey      string
		wantDatabase string
	}{
		{
			name: "target variables",
			env: map[string]string{
				"AZURE_TARGET_COSMOS_ENDPOINT": "https://target:443/",
				"AZURE_TARGET_COSMOS_KEY":      "target-key",
				"AZURE_COSMOS_ENDPOINT":        "https://plain:443/",
			},
			wantEndpoint: "https://target:443/",
			wantKey:      "target-key",
			wantDatabase: DefaultDatabase,
		},
		{
			name: "plain cosmos variables",
			env: map[string]string{
				"AZURE_COSMOS_ENDPOINT": "https://plain:443/",
				"AZURE_COSMOS_KEY":      "plain-key",
				"AZURE_COSMOS_DATABASE": "dashboard",
			},
			wantEndpoint: "https://plain:443/",
			wantKey:      "plain-key",
			wantDatabase: "dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("", Flags{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantEndpoint, cfg.Target.Endpoint)
			assert.Equal(t, tt.wantKey, cfg.Target.Key)
			assert.Equal(t, tt.wantDatabase, cfg.Target.Database)

			sc := cfg.TargetStore()
			assert.Equal(t, tt.wantEndpoint, sc.Endpoint)
			assert.Equal(t, tt.wantDatabase, sc.Database)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load("", Flags{AuthMode: "msal"})
	assert.ErrorContains(t, err, "unsupported auth mode")

	_, err = Load("", Flags{Publish: "ftp"})
	assert.ErrorContains(t, err, "unsupported publish target")

	t.Setenv("ATO_MIGRATION_OVERLAY_SEED", "forty-two")
	_, err = Load("", Flags{})
	assert.ErrorContains(t, err, "OVERLAY_SEED")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeYAML(t, "auth: [cli"), Flags{})
	assert.ErrorContains(t, err, "failed to load config file")
}

func TestValidate(t *testing.T) {
	full := Config{
		SourceSubscriptionID: "sub-1",
		Source:               Cosmos{Endpoint: "https://source:443/"},
		Target:               Cosmos{Endpoint: "https://target:443/"},
	}

	assert.NoError(t, full.ValidateImport(ImportScope{}, false))
	assert.NoError(t, full.ValidateSeed(false))

	noTarget := full
	noTarget.Target = Cosmos{}
	assert.ErrorIs(t, noTarget.ValidateImport(ImportScope{}, false), ErrMissingTarget)
	assert.NoError(t, noTarget.ValidateImport(ImportScope{}, true))
	assert.ErrorIs(t, noTarget.ValidateSeed(false), ErrMissingTarget)
	assert.NoError(t, noTarget.ValidateSeed(true))

	noSource := full
	noSource.Source = Cosmos{}
	assert.NoError(t, noSource.ValidateImport(ImportScope{}, false))
	assert.ErrorIs(t, noSource.ValidateImport(ImportScope{RequireContainers: true}, false), ErrMissingSource)
	assert.NoError(t, noSource.ValidateImport(ImportScope{SkipContainers: true}, false))

	noSub := full
	noSub.SourceSubscriptionID = ""
	assert.ErrorIs(t, noSub.ValidateImport(ImportScope{}, false), ErrMissingSubscription)
	assert.NoError(t, noSub.ValidateImport(ImportScope{FromExport: "subscription-1.json"}, false))
	assert.NoError(t, noSub.ValidateImport(ImportScope{SkipInventory: true}, false))

	assert.ErrorIs(t, (&Config{Publish: publish.TargetS3, AWSRegion: "us-east-1"}).ValidateExport(), ErrMissingS3Bucket)
	assert.ErrorIs(t, (&Config{Publish: publish.TargetS3, S3Bucket: "b"}).ValidateExport(), ErrMissingAWSRegion)
	assert.ErrorIs(t, (&Config{Publish: publish.TargetBlob, BlobContainer: "c"}).ValidateExport(), ErrMissingBlob)
}

func TestEffectiveImportScope(t *testing.T) {
	withSource := &Config{Source: Cosmos{Endpoint: "https://source:443/"}}
	scope, dropped := withSource.EffectiveImportScope(ImportScope{})
	assert.False(t, dropped)
	assert.False(t, scope.SkipContainers)

	inventoryOnly := &Config{SourceSubscriptionID: "sub-1"}
	scope, dropped = inventoryOnly.EffectiveImportScope(ImportScope{FromExport: "subscription-sub-1.json"})
	assert.True(t, dropped)
	assert.Equal(t, ImportScope{SkipContainers: true, FromExport: "subscription-sub-1.json"}, scope)

	_, dropped = inventoryOnly.EffectiveImportScope(ImportScope{SkipContainers: true})
	assert.False(t, dropped)
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{
		Source:             Cosmos{Key: "keyvault://ato-kv/source-key"},
		Target:             Cosmos{Key: "literal-key"},
		AWSSecretAccessKey: "awssm://ato/aws?region=us-east-1&field=secret",
	}
	assert.True(t, cfg.HasSecretRefs())

	r := fakeResolver{
		"keyvault://ato-kv/source-key":                  "resolved-source",
		"awssm://ato/aws?region=us-east-1&field=secret": "resolved-aws",
	}
	require.NoError(t, cfg.ResolveSecrets(context.Background(), r))

	assert.Equal(t, "resolved-source", cfg.Source.Key)
	assert.Equal(t, "literal-key", cfg.Target.Key)
	assert.Equal(t, "resolved-aws", cfg.AWSSecretAccessKey)
	assert.False(t, cfg.HasSecretRefs())

	bad := &Config{Target: Cosmos{Key: "keyvault://ato-kv/missing"}}
	assert.ErrorContains(t, bad.ResolveSecrets(context.Background(), r), "target cosmos key")
}
