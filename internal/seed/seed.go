// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package seed

import (
	"context"
	"embed"
	"fmt"
	"math/rand"

	"github.com/netSkope/ato-migration-tool/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	VariantStandard   = "standard"
	VariantMultiCloud = "multi-cloud"

	// DefaultOverlaySeed keeps the demo overlay identical across runs.
	DefaultOverlaySeed int64 = 42

	tenantPartition = "/tenantId"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Container is a target container and the documents seeded into it.
type Container struct {
	Name         string           `yaml:"name"`
	PartitionKey string           `yaml:"partitionKey"`
	Documents    []store.Document `yaml:"documents"`
}

// Stats counts what a seed run wrote.
type Stats struct {
	Containers        int
	CreatedContainers int
	Upserted          int
	Failed            int
}

// Migrator upserts a fixed seed dataset into a document store.
type Migrator struct {
	store       store.Store
	logger      *zap.Logger
	overlaySeed int64
}

func NewMigrator(s store.Store, overlaySeed int64, logger *zap.Logger) *Migrator {
	return &Migrator{store: s, logger: logger, overlaySeed: overlaySeed}
}

// Run ensures the variant's containers, then upserts every seed document.
// A document failure is logged and skipped; running twice is a no-op.
func (m *Migrator) Run(ctx context.Context, variant string) (Stats, error) {
	var stats Stats

	containers, err := Plan(variant, m.overlaySeed)
	if err != nil {
		return stats, err
	}

	if err := m.store.EnsureDatabase(ctx); err != nil {
		return stats, fmt.Errorf("failed to ensure database: %w", err)
	}

	for _, c := range containers {
		created, err := m.store.EnsureContainer(ctx, c.Name, c.PartitionKey)
		if err != nil {
			return stats, fmt.Errorf("failed to ensure container %s: %w", c.Name, err)
		}
		stats.Containers++
		if created {
			stats.CreatedContainers++
		}
	}

	for _, c := range containers {
		log := m.logger.With(zap.String("container", c.Name))
		for _, doc := range c.Documents {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := m.store.Upsert(ctx, c.Name, doc); err != nil {
				log.Warn("Failed to upsert seed document", zap.String("item_id", doc.ID()), zap.Error(err))
				stats.Failed++
				continue
			}
			stats.Upserted++
		}
		log.Info("Container seeded", zap.Int("documents", len(c.Documents)))
	}

	m.logger.Info("Seed migration complete",
		zap.String("variant", variant),
		zap.Int("containers", stats.Containers),
		zap.Int("upserted", stats.Upserted),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// Plan returns the containers and documents of a variant without writing.
func Plan(variant string, overlaySeed int64) ([]Container, error) {
	switch variant {
	case VariantStandard, "":
		return standardPlan()
	case VariantMultiCloud:
		return multiCloudPlan(overlaySeed)
	default:
		return nil, fmt.Errorf("unknown seed variant %q (expected %q or %q)", variant, VariantStandard, VariantMultiCloud)
	}
}

func standardPlan() ([]Container, error) {
	data, err := dataFS.ReadFile("data/standard.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read standard seed data: %w", err)
	}
	var dataset struct {
		Containers []Container `yaml:"containers"`
	}
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse standard seed data: %w", err)
	}
	return dataset.Containers, nil
}

type multiCloudData struct {
	Tenants           []store.Document `yaml:"tenants"`
	Environments      []store.Document `yaml:"environments"`
	Controls          []store.Document `yaml:"controls"`
	Activities        []store.Document `yaml:"activities"`
	PoamItems         []store.Document `yaml:"poamItems"`
	ExecutionEnablers []store.Document `yaml:"executionEnablers"`
	Metrics           []store.Document `yaml:"metrics"`
}

func multiCloudPlan(overlaySeed int64) ([]Container, error) {
	data, err := dataFS.ReadFile("data/multicloud.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read multi-cloud seed data: %w", err)
	}
	var d multiCloudData
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse multi-cloud seed data: %w", err)
	}

	controls, activities := expandOverlay(d, rand.New(rand.NewSource(overlaySeed))) //nolint:gosec

	return []Container{
		{Name: "tenants", PartitionKey: tenantPartition, Documents: d.Tenants},
		{Name: "environments", PartitionKey: tenantPartition, Documents: d.Environments},
		{Name: "nist-controls-enhanced", PartitionKey: tenantPartition, Documents: controls},
		{Name: "zta-activities-enhanced", PartitionKey: tenantPartition, Documents: activities},
		{Name: "poam-items-enhanced", PartitionKey: tenantPartition, Documents: d.PoamItems},
		{Name: "execution-enablers", PartitionKey: tenantPartition, Documents: d.ExecutionEnablers},
		{Name: "metrics", PartitionKey: tenantPartition, Documents: d.Metrics},
	}, nil
}
