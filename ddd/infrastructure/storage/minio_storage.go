package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/internal/resource"
	"deepfake-service/pkg/logger"
)

// MinioStorage MinIO存储实现，存储位置即对象key
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(minioResource *resource.MinioResource) *MinioStorage {
	return &MinioStorage{
		client:     minioResource.GetClient(),
		bucketName: minioResource.GetBucketName(),
	}
}

// Save 上传视频，size 未知时传 -1
func (s *MinioStorage) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	info, err := s.client.PutObject(ctx, s.bucketName, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("Failed to upload video to MinIO", map[string]interface{}{
			"object_key": name,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("upload video to minio failed: %w", err)
	}

	logger.Info("Video uploaded to MinIO", map[string]interface{}{
		"object_key": name,
		"size":       info.Size,
	})
	return name, nil
}

func (s *MinioStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", objectKey, err)
}

// Delete 删除对象，不存在时 MinIO 本身不会报错
func (s *MinioStorage) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectKey, err)
	}
	return nil
}

// Open 读取对象
func (s *MinioStorage) Open(ctx context.Context, objectKey string) (io.ReadCloser, int64, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, gateway.ErrArtifactNotFound
		}
		return nil, 0, fmt.Errorf("stat object %s: %w", objectKey, err)
	}
	object, err := s.client.GetObject(ctx, s.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get object from minio failed: %w", err)
	}
	return object, stat.Size, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
