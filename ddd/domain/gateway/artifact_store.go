package gateway

import (
	"context"
	"errors"
	"io"
)

// ErrArtifactNotFound 存储中没有对应文件
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore 上传视频的存储
type ArtifactStore interface {
	// Save 保存文件并返回存储位置
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete 文件不存在时不报错
	Delete(ctx context.Context, path string) error
	// Open 返回内容和大小，不存在时返回 ErrArtifactNotFound
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

// LocalFileResolver 由能直接给出本地文件路径的存储实现，抽帧时无需先下载
type LocalFileResolver interface {
	LocalPath(path string) (string, bool)
}
