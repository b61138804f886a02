// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/dalemusser/shepherd/internal/app/system/cache"
	"github.com/dalemusser/shepherd/internal/app/system/indexes"
	"github.com/dalemusser/shepherd/internal/app/system/uploads"
	"github.com/dalemusser/shepherd/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens MongoDB, the listing cache and the object store.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("ping MongoDB: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	c, err := cache.Open(ctx, cache.Config{
		Backend:  appCfg.CacheBackend,
		RedisURL: appCfg.RedisURL,
		TTL:      appCfg.CacheTTL,
		Size:     appCfg.CacheSize,
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("open cache: %w", err)
	}

	objects, err := uploads.Open(ctx, uploads.Config{
		Type:        appCfg.StorageType,
		LocalPath:   appCfg.StorageLocalPath,
		LocalURL:    appCfg.StorageLocalURL,
		S3Region:    appCfg.StorageS3Region,
		S3Bucket:    appCfg.StorageS3Bucket,
		S3Prefix:    appCfg.StorageS3Prefix,
		S3Endpoint:  appCfg.StorageS3Endpoint,
		S3AccessKey: appCfg.StorageS3AccessKey,
		S3SecretKey: appCfg.StorageS3SecretKey,
	})
	if err != nil {
		closeCache(c, logger)
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("open object store: %w", err)
	}
	logger.Info("back-ends ready",
		zap.String("cache", appCfg.CacheBackend),
		zap.String("storage", appCfg.StorageType))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Cache:         c,
		Objects:       objects,
	}, nil
}

// EnsureSchema creates the collections with their validators and every
// index the stores rely on. It is idempotent.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure collections failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}

func closeCache(c cache.Cache, logger *zap.Logger) {
	if cl, ok := c.(io.Closer); ok {
		if err := cl.Close(); err != nil {
			logger.Warn("cache close failed", zap.Error(err))
		}
	}
}
