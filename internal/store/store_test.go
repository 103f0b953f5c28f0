// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionKeyValue(t *testing.T) {
	doc := Document{
		"id":                "c-1",
		"controlIdentifier": "AC-2",
		"tenantId":          "t-1",
		"score":             3,
		"active":            true,
		"meta":              map[string]any{"owner": "secops"},
		"tags":              []any{"a"},
		"nothing":           nil,
	}

	tests := []struct {
		name    string
		path    string
		want    any
		wantErr error
	}{
		{"string", "/controlIdentifier", "AC-2", nil},
		{"int normalized", "/score", float64(3), nil},
		{"bool", "/active", true, nil},
		{"nested", "/meta/owner", "secops", nil},
		{"missing", "/severity", nil, ErrMissingPartitionKey},
		{"null", "/nothing", nil, ErrMissingPartitionKey},
		{"array", "/tags", nil, ErrMissingPartitionKey},
		{"through scalar", "/tenantId/x", nil, ErrMissingPartitionKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PartitionKeyValue(doc, tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PartitionKeyValue(doc, "/")
	assert.Error(t, err)
}

func TestStripSystemFields(t *testing.T) {
	doc := Document{
		"id": "x", "_rid": "r", "_self": "s", "_etag": "e", "_attachments": "a", "_ts": 1.0,
		"_custom": "kept",
	}

	stripped := StripSystemFields(doc)

	assert.Equal(t, Document{"id": "x", "_custom": "kept"}, stripped)
	assert.Contains(t, doc, "_rid", "input must not be mutated")
}

func TestMemoryStore_UpsertIsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureDatabase(ctx))

	created, err := s.EnsureContainer(ctx, "nist-controls", "/controlIdentifier")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureContainer(ctx, "nist-controls", "/other")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.Upsert(ctx, "nist-controls", Document{"id": "1", "controlIdentifier": "AC-2", "status": "planned"}))
	require.NoError(t, s.Upsert(ctx, "nist-controls", Document{"id": "1", "controlIdentifier": "AC-2", "status": "implemented"}))
	// same id in another logical partition is a different document
	require.NoError(t, s.Upsert(ctx, "nist-controls", Document{"id": "1", "controlIdentifier": "AC-3"}))

	docs, err := s.ReadAll(ctx, "nist-controls")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "implemented", docs[0]["status"])
	assert.Equal(t, 2, s.Count("nist-controls"))

	infos, err := s.ListContainers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ContainerInfo{{Name: "nist-controls", PartitionKeyPath: "/controlIdentifier"}}, infos)
}

func TestMemoryStore_Rejections(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.EnsureContainer(ctx, "tenants", "/tenantId")
	require.NoError(t, err)

	err = s.Upsert(ctx, "missing", Document{"id": "1"})
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.ErrorIs(t, s.Upsert(ctx, "tenants", Document{"tenantId": "t"}), ErrMissingID)
	assert.ErrorIs(t, s.Upsert(ctx, "tenants", Document{"id": "1"}), ErrMissingPartitionKey)
	assert.Equal(t, 0, s.Count("tenants"))

	_, err = s.ReadAll(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_NormalizesNumbers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.EnsureContainer(ctx, "metrics", "/tenantId")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, "metrics", Document{"id": "m", "tenantId": "t", "value": 7}))

	docs, err := s.ReadAll(ctx, "metrics")
	require.NoError(t, err)
	assert.Equal(t, float64(7), docs[0]["value"])
}
