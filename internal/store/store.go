// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingID           = errors.New("document has no id")
	ErrMissingPartitionKey = errors.New("document is missing the container partition key")
)

// Document is a schemaless JSON document keyed by its "id" field.
type Document map[string]any

// ID returns the document id, or "" when absent.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// ContainerInfo describes a container and its partition key path.
type ContainerInfo struct {
	Name             string
	PartitionKeyPath string
}

// Store is the document database the importer and seed migrator write to.
// Upsert is the only mutation: last writer wins.
type Store interface {
	// EnsureDatabase creates the configured database when missing.
	EnsureDatabase(ctx context.Context) error
	// EnsureContainer creates the container with partitionKeyPath when missing
	// and reports whether it was created.
	EnsureContainer(ctx context.Context, name, partitionKeyPath string) (bool, error)
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
	ReadAll(ctx context.Context, container string) ([]Document, error)
	Upsert(ctx context.Context, container string, doc Document) error
}

// PartitionKeyValue resolves path (e.g. "/tenantId" or "/meta/owner") in doc.
// Only string, number and bool values are valid partition keys.
func PartitionKeyValue(doc Document, path string) (any, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("invalid partition key path %q", path)
	}

	var current any = map[string]any(doc)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			if d, isDoc := current.(Document); isDoc {
				m = d
			} else {
				return nil, fmt.Errorf("%w: %s", ErrMissingPartitionKey, path)
			}
		}
		current, ok = m[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPartitionKey, path)
		}
	}

	switch v := current.(type) {
	case string, bool, float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrMissingPartitionKey, path, current)
	}
}

// systemFields are maintained by CosmosDB and must not be copied between accounts.
var systemFields = []string{"_rid", "_self", "_etag", "_attachments", "_ts"}

// StripSystemFields returns a copy of doc without CosmosDB system properties.
func StripSystemFields(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, f := range systemFields {
		delete(out, f)
	}
	return out
}
