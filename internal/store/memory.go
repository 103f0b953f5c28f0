// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

type memoryContainer struct {
	partitionKeyPath string
	order            []string
	docs             map[string]Document
}

// MemoryStore is an in-process Store used for dry runs. It enforces the
// same id and partition key rules as CosmosDB and normalizes documents
// through JSON like the service does.
type MemoryStore struct {
	databaseReady bool
	containers    map[string]*memoryContainer
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{containers: make(map[string]*memoryContainer)}
}

func (m *MemoryStore) EnsureDatabase(context.Context) error {
	m.databaseReady = true
	return nil
}

func (m *MemoryStore) EnsureContainer(_ context.Context, name, partitionKeyPath string) (bool, error) {
	if _, ok := m.containers[name]; ok {
		return false, nil
	}
	m.containers[name] = &memoryContainer{
		partitionKeyPath: partitionKeyPath,
		docs:             make(map[string]Document),
	}
	return true, nil
}

func (m *MemoryStore) ListContainers(context.Context) ([]ContainerInfo, error) {
	infos := make([]ContainerInfo, 0, len(m.containers))
	for name, c := range m.containers {
		infos = append(infos, ContainerInfo{Name: name, PartitionKeyPath: c.partitionKeyPath})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *MemoryStore) ReadAll(_ context.Context, container string) ([]Document, error) {
	c, ok := m.containers[container]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", container, ErrNotFound)
	}
	docs := make([]Document, 0, len(c.order))
	for _, key := range c.order {
		docs = append(docs, c.docs[key])
	}
	return docs, nil
}

func (m *MemoryStore) Upsert(_ context.Context, container string, doc Document) error {
	c, ok := m.containers[container]
	if !ok {
		return fmt.Errorf("container %s: %w", container, ErrNotFound)
	}
	if doc.ID() == "" {
		return ErrMissingID
	}
	pk, err := PartitionKeyValue(doc, c.partitionKeyPath)
	if err != nil {
		return err
	}

	normalized, err := normalize(doc)
	if err != nil {
		return err
	}

	// ids are unique per logical partition
	key := fmt.Sprintf("%v|%s", pk, doc.ID())
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = normalized
	return nil
}

// Count returns the number of documents in container.
func (m *MemoryStore) Count(container string) int {
	if c, ok := m.containers[container]; ok {
		return len(c.docs)
	}
	return 0
}

func normalize(doc Document) (Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document %s: %w", doc.ID(), err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", doc.ID(), err)
	}
	return out, nil
}
