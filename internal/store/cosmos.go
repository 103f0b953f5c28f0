// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"go.uber.org/zap"
)

// EmulatorKey is the well-known master key of the CosmosDB emulator.
const EmulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

// CosmosConfig identifies a CosmosDB account and database.
type CosmosConfig struct {
	Endpoint string
	Key      string
	Database string
	// InsecureSkipVerify is only meant for the local emulator.
	InsecureSkipVerify bool
}

// CosmosStore implements Store over a CosmosDB SQL API database.
type CosmosStore struct {
	client   *azcosmos.Client
	database string
	logger   *zap.Logger

	partitionKeys map[string]string
}

var _ Store = (*CosmosStore)(nil)

// NewCosmosStore connects with the account key when set, otherwise with cred.
func NewCosmosStore(cfg CosmosConfig, cred azcore.TokenCredential, logger *zap.Logger) (*CosmosStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("cosmos endpoint is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("cosmos database is required")
	}

	opts := &azcosmos.ClientOptions{}
	if cfg.InsecureSkipVerify {
		opts.ClientOptions = azcore.ClientOptions{
			Transport: &http.Client{
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
				},
			},
		}
	}

	var client *azcosmos.Client
	switch {
	case cfg.Key != "":
		keyCredential, err := azcosmos.NewKeyCredential(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to create key credential: %w", err)
		}
		client, err = azcosmos.NewClientWithKey(cfg.Endpoint, keyCredential, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create cosmos client: %w", err)
		}
	case cred != nil:
		var err error
		client, err = azcosmos.NewClient(cfg.Endpoint, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create cosmos client: %w", err)
		}
	default:
		return nil, errors.New("cosmos key or token credential is required")
	}

	return &CosmosStore{
		client:        client,
		database:      cfg.Database,
		logger:        logger,
		partitionKeys: make(map[string]string),
	}, nil
}

func (s *CosmosStore) EnsureDatabase(ctx context.Context) error {
	_, err := s.client.CreateDatabase(ctx, azcosmos.DatabaseProperties{ID: s.database}, nil)
	if err != nil {
		if statusCode(err) == http.StatusConflict {
			s.logger.Debug("Database already exists", zap.String("database", s.database))
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", s.database, err)
	}
	s.logger.Info("Database created", zap.String("database", s.database))
	return nil
}

func (s *CosmosStore) EnsureContainer(ctx context.Context, name, partitionKeyPath string) (bool, error) {
	db, err := s.client.NewDatabase(s.database)
	if err != nil {
		return false, fmt.Errorf("failed to create database client: %w", err)
	}

	properties := azcosmos.ContainerProperties{
		ID: name,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{partitionKeyPath},
		},
	}
	if _, err := db.CreateContainer(ctx, properties, nil); err != nil {
		if statusCode(err) != http.StatusConflict {
			return false, fmt.Errorf("failed to create container %s: %w", name, err)
		}
		// existing containers keep their own partition key
		path, err := s.readPartitionKeyPath(ctx, name)
		if err != nil {
			return false, err
		}
		if path != partitionKeyPath {
			s.logger.Warn("Existing container has a different partition key",
				zap.String("container", name),
				zap.String("partition_key", path),
				zap.String("expected_partition_key", partitionKeyPath))
		}
		return false, nil
	}

	s.partitionKeys[name] = partitionKeyPath
	s.logger.Info("Container created", zap.String("container", name), zap.String("partition_key", partitionKeyPath))
	return true, nil
}

func (s *CosmosStore) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	db, err := s.client.NewDatabase(s.database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	var infos []ContainerInfo
	pager := db.NewQueryContainersPager("SELECT * FROM c", nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list containers in %s: %w", s.database, err)
		}
		for _, c := range page.Containers {
			info := ContainerInfo{Name: c.ID}
			if len(c.PartitionKeyDefinition.Paths) > 0 {
				info.PartitionKeyPath = c.PartitionKeyDefinition.Paths[0]
			}
			s.partitionKeys[c.ID] = info.PartitionKeyPath
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (s *CosmosStore) ReadAll(ctx context.Context, container string) ([]Document, error) {
	c, err := s.client.NewContainer(s.database, container)
	if err != nil {
		return nil, fmt.Errorf("failed to create container client: %w", err)
	}

	queryOptions := &azcosmos.QueryOptions{
		QueryParameters: []azcosmos.QueryParameter{},
	}
	pager := c.NewQueryItemsPager("SELECT * FROM c", azcosmos.PartitionKey{}, queryOptions)

	var docs []Document
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if statusCode(err) == http.StatusNotFound {
				return nil, fmt.Errorf("container %s: %w", container, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to query container %s: %w", container, err)
		}
		for _, item := range page.Items {
			var doc Document
			if err := json.Unmarshal(item, &doc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item from %s: %w", container, err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *CosmosStore) Upsert(ctx context.Context, container string, doc Document) error {
	if doc.ID() == "" {
		return ErrMissingID
	}

	path, ok := s.partitionKeys[container]
	if !ok {
		var err error
		if path, err = s.readPartitionKeyPath(ctx, container); err != nil {
			return err
		}
	}
	value, err := PartitionKeyValue(doc, path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.ID(), err)
	}

	c, err := s.client.NewContainer(s.database, container)
	if err != nil {
		return fmt.Errorf("failed to create container client: %w", err)
	}
	if _, err := c.UpsertItem(ctx, partitionKey(value), data, nil); err != nil {
		return fmt.Errorf("failed to upsert %s into %s: %w", doc.ID(), container, err)
	}
	return nil
}

func (s *CosmosStore) readPartitionKeyPath(ctx context.Context, container string) (string, error) {
	c, err := s.client.NewContainer(s.database, container)
	if err != nil {
		return "", fmt.Errorf("failed to create container client: %w", err)
	}
	resp, err := c.Read(ctx, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("container %s: %w", container, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read container %s: %w", container, err)
	}
	if resp.ContainerProperties == nil || len(resp.ContainerProperties.PartitionKeyDefinition.Paths) == 0 {
		return "", fmt.Errorf("container %s has no partition key definition", container)
	}
	path := resp.ContainerProperties.PartitionKeyDefinition.Paths[0]
	s.partitionKeys[container] = path
	return path, nil
}

func partitionKey(value any) azcosmos.PartitionKey {
	switch v := value.(type) {
	case bool:
		return azcosmos.NewPartitionKeyBool(v)
	case float64:
		return azcosmos.NewPartitionKeyNumber(v)
	default:
		return azcosmos.NewPartitionKeyString(fmt.Sprint(v))
	}
}

func statusCode(err error) int {
	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.StatusCode
	}
	return 0
}
