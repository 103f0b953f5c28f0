// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobConfig locates the storage container artifacts are published to.
type BlobConfig struct {
	AccountURL string
	Container  string
}

// BlobPublisher uploads artifacts to Azure Blob Storage.
type BlobPublisher struct {
	client     blobUploader
	accountURL string
	container  string
	logger     *zap.Logger
}

func NewBlobPublisher(cfg BlobConfig, cred azcore.TokenCredential, logger *zap.Logger) (*BlobPublisher, error) {
	if cfg.AccountURL == "" || cfg.Container == "" {
		return nil, fmt.Errorf("blob account URL and container are required")
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &BlobPublisher{
		client:     client,
		accountURL: strings.TrimSuffix(cfg.AccountURL, "/"),
		container:  cfg.Container,
		logger:     logger,
	}, nil
}

func (p *BlobPublisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	p.logger.Info("Uploading file to blob storage",
		zap.String("file", localPath),
		zap.String("container", p.container),
		zap.String("blob", key))

	if _, err := p.client.UploadBuffer(ctx, p.container, key, data, nil); err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	location := fmt.Sprintf("%s/%s/%s", p.accountURL, p.container, key)
	p.logger.Info("File uploaded successfully", zap.String("location", location))
	return location, nil
}
