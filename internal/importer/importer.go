// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/store"
	"go.uber.org/zap"
)

const (
	ResourcesContainer   = "azure-resources"
	ResourcesPartition   = "/resourceType"
	AssessmentsContainer = "security-assessments"
	AssessmentsPartition = "/severity"

	unknownSeverity = "Unknown"
)

// Stats counts what an import wrote.
type Stats struct {
	Containers        int
	CreatedContainers int
	Copied            int
	Failed            int
	SkippedContainers int
}

func (s *Stats) add(o Stats) {
	s.Containers += o.Containers
	s.CreatedContainers += o.CreatedContainers
	s.Copied += o.Copied
	s.Failed += o.Failed
	s.SkippedContainers += o.SkippedContainers
}

// Importer copies documents from a source store into a target store.
// Items are upserted one at a time; an item failure is logged and skipped.
type Importer struct {
	source store.Store
	target store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewImporter creates an importer. source may be nil when only inventory
// is imported.
func NewImporter(source, target store.Store, logger *zap.Logger) *Importer {
	return &Importer{
		source: source,
		target: target,
		logger: logger,
		now:    time.Now,
	}
}

// ImportContainers copies every source container into the target database,
// creating missing containers with the source partition key.
func (i *Importer) ImportContainers(ctx context.Context) (Stats, error) {
	var stats Stats
	if i.source == nil {
		return stats, fmt.Errorf("no source database configured")
	}

	if err := i.target.EnsureDatabase(ctx); err != nil {
		return stats, fmt.Errorf("failed to ensure target database: %w", err)
	}

	containers, err := i.source.ListContainers(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list source containers: %w", err)
	}
	i.logger.Info("Importing containers", zap.Int("containers", len(containers)))

	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		cs, err := i.importContainer(ctx, c)
		stats.add(cs)
		if err != nil {
			return stats, err
		}
	}

	i.logger.Info("Container import complete",
		zap.Int("containers", stats.Containers),
		zap.Int("copied", stats.Copied),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// importContainer only returns an error when ctx is done.
func (i *Importer) importContainer(ctx context.Context, c store.ContainerInfo) (Stats, error) {
	log := i.logger.With(zap.String("container", c.Name), zap.String("partition_key", c.PartitionKeyPath))
	stats := Stats{Containers: 1}

	created, err := i.target.EnsureContainer(ctx, c.Name, c.PartitionKeyPath)
	if err != nil {
		log.Error("Failed to ensure target container", zap.Error(err))
		stats.SkippedContainers++
		return stats, ctx.Err()
	}
	if created {
		stats.CreatedContainers++
	}

	docs, err := i.source.ReadAll(ctx, c.Name)
	if err != nil {
		log.Error("Failed to read source container", zap.Error(err))
		stats.SkippedContainers++
		return stats, ctx.Err()
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if i.upsert(ctx, log, c.Name, store.StripSystemFields(doc)) {
			stats.Copied++
		} else {
			stats.Failed++
		}
	}
	log.Info("Container imported", zap.Int("items", len(docs)), zap.Int("copied", stats.Copied), zap.Int("failed", stats.Failed))
	return stats, nil
}

// ImportInventory writes resources and security assessments of a
// subscription into their dashboard containers.
func (i *Importer) ImportInventory(ctx context.Context, subscriptionID string, resources []exporter.Resource, assessments []exporter.SecurityAssessment) (Stats, error) {
	var stats Stats
	if err := i.target.EnsureDatabase(ctx); err != nil {
		return stats, fmt.Errorf("failed to ensure target database: %w", err)
	}

	for _, c := range []store.ContainerInfo{
		{Name: ResourcesContainer, PartitionKeyPath: ResourcesPartition},
		{Name: AssessmentsContainer, PartitionKeyPath: AssessmentsPartition},
	} {
		created, err := i.target.EnsureContainer(ctx, c.Name, c.PartitionKeyPath)
		if err != nil {
			return stats, fmt.Errorf("failed to ensure container %s: %w", c.Name, err)
		}
		stats.Containers++
		if created {
			stats.CreatedContainers++
		}
	}

	importedAt := i.now().UTC().Format(time.RFC3339)

	log := i.logger.With(zap.String("container", ResourcesContainer), zap.String("subscription_id", subscriptionID))
	for _, r := range resources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if i.upsert(ctx, log, ResourcesContainer, ResourceDocument(subscriptionID, r, importedAt)) {
			stats.Copied++
		} else {
			stats.Failed++
		}
	}

	log = i.logger.With(zap.String("container", AssessmentsContainer), zap.String("subscription_id", subscriptionID))
	for _, a := range assessments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if i.upsert(ctx, log, AssessmentsContainer, AssessmentDocument(subscriptionID, a, importedAt)) {
			stats.Copied++
		} else {
			stats.Failed++
		}
	}

	i.logger.Info("Inventory import complete",
		zap.String("subscription_id", subscriptionID),
		zap.Int("resources", len(resources)),
		zap.Int("security_assessments", len(assessments)),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func (i *Importer) upsert(ctx context.Context, log *zap.Logger, container string, doc store.Document) bool {
	if err := i.target.Upsert(ctx, container, doc); err != nil {
		log.Warn("Failed to upsert item", zap.String("item_id", doc.ID()), zap.Error(err))
		return false
	}
	return true
}

// ResourceDocument maps an exported resource to its azure-resources document.
func ResourceDocument(subscriptionID string, r exporter.Resource, importedAt string) store.Document {
	doc := store.Document{
		"id":             DocumentID(r.ID),
		"resourceId":     r.ID,
		"name":           r.Name,
		"type":           r.Type,
		"resourceType":   ResourceTypeSegment(r.Type),
		"location":       r.Location,
		"resourceGroup":  r.ResourceGroup,
		"subscriptionId": subscriptionID,
		"importedAt":     importedAt,
	}
	if r.Kind != "" {
		doc["kind"] = r.Kind
	}
	if len(r.Tags) > 0 {
		doc["tags"] = r.Tags
	}
	return doc
}

// AssessmentDocument maps an assessment to its security-assessments document.
func AssessmentDocument(subscriptionID string, a exporter.SecurityAssessment, importedAt string) store.Document {
	severity := a.Severity
	if severity == "" {
		severity = unknownSeverity
	}
	id := a.ID
	if id == "" {
		id = a.Name
	}
	return store.Document{
		"id":             DocumentID(id),
		"assessmentId":   a.ID,
		"name":           a.Name,
		"displayName":    a.DisplayName,
		"status":         a.Status,
		"severity":       severity,
		"resourceId":     a.ResourceID,
		"description":    a.Description,
		"subscriptionId": subscriptionID,
		"importedAt":     importedAt,
	}
}

// ResourceTypeSegment returns the second segment of an ARM type,
// e.g. Microsoft.Compute/virtualMachines -> virtualMachines.
func ResourceTypeSegment(armType string) string {
	parts := strings.Split(armType, "/")
	if len(parts) < 2 || parts[1] == "" {
		if armType == "" {
			return "unknown"
		}
		return armType
	}
	return parts[1]
}

var idReplacer = strings.NewReplacer("/", "_", "\\", "_", "?", "_", "#", "_")

// DocumentID turns an ARM id into a valid CosmosDB id, which may not
// contain '/', '\', '?' or '#'.
func DocumentID(armID string) string {
	return strings.TrimLeft(idReplacer.Replace(armID), "_")
}

// FilterAssessments keeps the assessments of resources in resourceGroup.
// An empty resourceGroup keeps everything.
func FilterAssessments(assessments []exporter.SecurityAssessment, resourceGroup string) []exporter.SecurityAssessment {
	if resourceGroup == "" {
		return assessments
	}
	needle := "/resourcegroups/" + strings.ToLower(resourceGroup) + "/"
	var out []exporter.SecurityAssessment
	for _, a := range assessments {
		if strings.Contains(strings.ToLower(a.ResourceID)+"/", needle) {
			out = append(out, a)
		}
	}
	return out
}
