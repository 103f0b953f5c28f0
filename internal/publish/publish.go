// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	TargetNone = ""
	TargetS3   = "s3"
	TargetBlob = "blob"
)

// Publisher copies a local artifact to remote storage and returns its location.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// ObjectKey joins prefix and the file's base name with forward slashes.
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// PublishAll publishes every file sequentially. A failed file is logged and
// the rest are still attempted; the failures are returned joined.
func PublishAll(ctx context.Context, p Publisher, prefix string, files []string, logger *zap.Logger) ([]string, error) {
	var locations []string
	var errs []error

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		key := ObjectKey(prefix, f)
		location, err := p.Publish(ctx, f, key)
		if err != nil {
			logger.Error("Failed to publish artifact",
				zap.String("file", f),
				zap.String("key", key),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to publish %s: %w", filepath.Base(f), err))
			continue
		}
		locations = append(locations, location)
	}

	logger.Info("Artifacts published",
		zap.Int("published", len(locations)),
		zap.Int("failed", len(files)-len(locations)))
	return locations, errors.Join(errs...)
}
