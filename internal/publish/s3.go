// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/netSkope/ato-migration-tool/internal/util"
	"go.uber.org/zap"
)

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config locates the bucket artifacts are published to.
type S3Config struct {
	Bucket      string
	Region      string
	Credentials util.AWSCredentials
}

// S3Publisher uploads artifacts to S3 with automatic multipart for large files.
type S3Publisher struct {
	uploader s3Uploader
	bucket   string
	logger   *zap.Logger
}

// NewS3Publisher creates a new S3 publisher. AWS_ENDPOINT_URL switches to a
// custom endpoint with path-style addressing (LocalStack).
func NewS3Publisher(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := util.LoadAWSConfig(ctx, cfg.Region, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // Required for LocalStack
		}
	})
	if endpoint != "" {
		logger.Info("Using custom S3 endpoint", zap.String("endpoint", endpoint))
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB per part
		u.Concurrency = 1
	})

	return &S3Publisher{uploader: uploader, bucket: cfg.Bucket, logger: logger}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	p.logger.Info("Uploading file to S3",
		zap.String("file", localPath),
		zap.String("s3_key", key))

	if _, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	p.logger.Info("File uploaded successfully", zap.String("location", location))
	return location, nil
}
