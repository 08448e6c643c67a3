package resource

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
)

// MinioResource MinIO资源
type MinioResource struct {
	client     *minio.Client
	bucketName string
}

// OpenMinio 创建客户端并确保桶存在
func OpenMinio(ctx context.Context, minioCfg config.MinioConfig) (*MinioResource, error) {
	if minioCfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if minioCfg.BucketName == "" {
		return nil, fmt.Errorf("minio bucket_name is required")
	}

	client, err := minio.New(minioCfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioCfg.AccessKeyID, minioCfg.SecretAccessKey, ""),
		Secure: minioCfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	r := &MinioResource{client: client, bucketName: minioCfg.BucketName}
	if err := r.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint":    minioCfg.Endpoint,
		"bucket_name": r.bucketName,
	})
	return r, nil
}

// ensureBucket 确保桶存在
func (r *MinioResource) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check minio bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create minio bucket: %w", err)
	}
	return nil
}

func (r *MinioResource) Name() string { return "minio" }

// GetClient 获取MinIO客户端
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// GetBucketName 获取桶名称
func (r *MinioResource) GetBucketName() string {
	return r.bucketName
}

// Close minio-go客户端无需关闭连接
func (r *MinioResource) Close() error {
	return nil
}
