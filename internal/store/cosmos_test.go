// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/netSkope/ato-migration-tool/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

const emulatorImage = "mcr.microsoft.com/cosmosdb/linux/azure-cosmos-emulator:vnext-preview"

// setupEmulator starts the CosmosDB emulator and returns its https endpoint.
func setupEmulator(t *testing.T) string {
	testutil.RequireDocker(t, "ATO_MIGRATION_EMULATOR_TESTS")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        emulatorImage,
			ExposedPorts: []string{"8081/tcp"},
			Env:          map[string]string{"PROTOCOL": "https"},
			WaitingFor: wait.ForListeningPort("8081/tcp").
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	testutil.SkipIfDockerMissing(t, err)
	require.NoError(t, err, "failed to start CosmosDB emulator")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8081/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("https://%s:%s", host, port.Port())
}

func TestCosmosStore_Emulator(t *testing.T) {
	endpoint := setupEmulator(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := NewCosmosStore(CosmosConfig{
		Endpoint:           endpoint,
		Key:                EmulatorKey,
		Database:           "ato-test",
		InsecureSkipVerify: true,
	}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.EnsureDatabase(ctx))
	require.NoError(t, s.EnsureDatabase(ctx), "second create must tolerate conflict")

	created, err := s.EnsureContainer(ctx, "poam-items", "/controlIdentifier")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.EnsureContainer(ctx, "poam-items", "/controlIdentifier")
	require.NoError(t, err)
	assert.False(t, created)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Upsert(ctx, "poam-items", Document{
			"id": "poam-1", "controlIdentifier": "AC-2", "revision": float64(i),
		}))
	}
	assert.ErrorIs(t, s.Upsert(ctx, "poam-items", Document{"id": "poam-2"}), ErrMissingPartitionKey)

	docs, err := s.ReadAll(ctx, "poam-items")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(1), docs[0]["revision"])
	assert.Contains(t, docs[0], "_etag")

	infos, err := s.ListContainers(ctx)
	require.NoError(t, err)
	assert.Contains(t, infos, ContainerInfo{Name: "poam-items", PartitionKeyPath: "/controlIdentifier"})
}

func TestNewCosmosStore_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewCosmosStore(CosmosConfig{Database: "db", Key: "k"}, nil, logger)
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewCosmosStore(CosmosConfig{Endpoint: "https://localhost:8081"}, nil, logger)
	assert.ErrorContains(t, err, "database")

	_, err = NewCosmosStore(CosmosConfig{Endpoint: "https://localhost:8081", Database: "db"}, nil, logger)
	assert.ErrorContains(t, err, "key or token credential")

	s, err := NewCosmosStore(CosmosConfig{Endpoint: "https://localhost:8081", Database: "db", Key: EmulatorKey}, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
