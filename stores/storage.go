package stores

import (
	"context"
	"fmt"

	"codeshare-server/config"
	"codeshare-server/core"
	"codeshare-server/stores/aws"
	"codeshare-server/stores/filesystem"
	"codeshare-server/stores/memory"
	"codeshare-server/stores/postgres"
	"codeshare-server/stores/redis"
	"codeshare-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the document store selected by cfg.StorageType.
// Unknown types fall back to the in-memory store.
func GetStore(ctx context.Context, cfg config.Config) (core.DocumentStore, error) {
	var (
		store core.DocumentStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewDocumentStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewDocumentStore(cfg.DataSourceName)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.NewDocumentStore(cfg.DatabaseURL)
	case "redis":
		storageField["redisAddr"] = cfg.RedisAddr
		storageField["redisKey"] = cfg.RedisKey
		store, err = redis.NewDocumentStore(cfg.RedisAddr, cfg.RedisKey)
	case "s3":
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store, err = aws.NewDocumentStore(ctx, cfg.S3BucketName)
	default:
		store = memory.NewDocumentStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageType, err)
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
