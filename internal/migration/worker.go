// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package migration

import (
	"context"
	"fmt"

	"github.com/netSkope/ato-migration-tool/internal/exporter"
	"github.com/netSkope/ato-migration-tool/internal/subscription"
	"go.uber.org/zap"
)

// SubscriptionExporter exports one subscription. *exporter.Exporter implements it.
type SubscriptionExporter interface {
	ExportSubscription(ctx context.Context, sub subscription.Subscription) exporter.ExportResult
}

// Output is what a run produced, in subscription order.
type Output struct {
	Results []exporter.ExportResult
	Files   []string
}

// ProcessSubscriptions exports subscriptions one at a time and writes each
// result into outputDir. A failed subscription is recorded on its result and
// the run continues; only cancellation or a write failure stops it.
func ProcessSubscriptions(ctx context.Context, subs []subscription.Subscription, exp SubscriptionExporter, outputDir string, logger *zap.Logger) (Output, error) {
	var out Output

	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("export interrupted after %d/%d subscriptions: %w", i, len(subs), err)
		}

		logger.Info("Processing subscription",
			zap.Int("index", i+1),
			zap.Int("total", len(subs)),
			zap.String("subscription_id", sub.ID))

		result, path, err := ProcessSubscription(ctx, sub, exp, outputDir, logger)
		if err != nil {
			return out, err
		}
		out.Results = append(out.Results, result)
		out.Files = append(out.Files, path)
	}

	failed := 0
	for _, r := range out.Results {
		if !r.Success {
			failed++
		}
	}
	logger.Info("All subscriptions processed",
		zap.Int("total_subscriptions", len(subs)),
		zap.Int("failed", failed))

	return out, nil
}

// ProcessSubscription exports a single subscription and writes its result file.
func ProcessSubscription(ctx context.Context, sub subscription.Subscription, exp SubscriptionExporter, outputDir string, logger *zap.Logger) (exporter.ExportResult, string, error) {
	result := exp.ExportSubscription(ctx, sub)

	path, err := exporter.WriteResult(outputDir, result)
	if err != nil {
		return result, "", fmt.Errorf("failed to write result for subscription %s: %w", sub.ID, err)
	}

	if !result.Success {
		logger.Warn("Subscription export failed",
			zap.String("subscription_id", sub.ID),
			zap.String("error", result.Error),
			zap.String("file", path))
	} else {
		logger.Info("Subscription completed",
			zap.String("subscription_id", sub.ID),
			zap.String("file", path))
	}
	return result, path, nil
}
