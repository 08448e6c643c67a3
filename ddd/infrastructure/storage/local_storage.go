package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/pkg/logger"
)

// LocalStorage 本地目录存储
type LocalStorage struct {
	dir string
}

// NewLocalStorage 创建本地存储，目录不存在时自动创建
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Dir 存储根目录
func (s *LocalStorage) Dir() string { return s.dir }

// Save 写入文件，失败时删除写了一半的文件
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(f, readerWithContext(ctx, r))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}

	logger.Debug("Artifact saved", map[string]interface{}{
		"path": path,
		"size": written,
	})
	return path, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete 删除文件，不存在时忽略
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Open 打开文件
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, gateway.ErrArtifactNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, gateway.ErrArtifactNotFound
	}
	return f, info.Size(), nil
}

// LocalPath 本地存储的路径可以直接交给解码器
func (s *LocalStorage) LocalPath(path string) (string, bool) {
	return path, path != ""
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
