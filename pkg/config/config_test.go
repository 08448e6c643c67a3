package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(100*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 100, cfg.Analysis.MaxFrames)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, time.Hour, cfg.Cleanup.MaxAge)
	assert.Equal(t, 2, cfg.Worker.MaxConcurrentTasks)
	assert.Zero(t, cfg.Worker.QueueCapacity, "pending jobs are unbounded by default")
}

func TestLoadNormalizesExtensionsAndKeys(t *testing.T) {
	path := writeConfig(t, `
upload:
  allowed_extensions: [".MP4", " mov "]
minio:
  access_key: ak
  secret_key: sk
storage:
  backend: MinIO
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mp4", "mov"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "ak", cfg.Minio.AccessKeyID)
	assert.Equal(t, "sk", cfg.Minio.SecretAccessKey)
	assert.Equal(t, "minio", cfg.Storage.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "analysis:\n  max_frames: 50\n")
	t.Setenv("DEEPFAKE_ANALYSIS_MAX_FRAMES", "20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Analysis.MaxFrames)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 224, cfg.Analysis.FrameWidth)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.GetHTTPAddr())
}
