package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/pkg/config"
)

func TestJSONFieldsAreEmitted(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "debug"

	l := NewLogger(cfg)
	var buf bytes.Buffer
	l.SetOutput(&buf)
	SetGlobalLogger(l)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	Info("job queued", map[string]interface{}{"job_id": "abc"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "job queued", line["msg"])
	assert.Equal(t, "abc", line["job_id"])
	assert.Equal(t, "info", line["level"])
}

func TestLevelFiltersDebug(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"

	l := NewLogger(cfg)
	var buf bytes.Buffer
	l.SetOutput(&buf)
	SetGlobalLogger(l)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	assert.Empty(t, buf.String())

	Warnf("shown %d", 3)
	assert.Contains(t, buf.String(), "shown 3")
}

func TestFileOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Output = "file"
	cfg.Log.Filename = filepath.Join(t.TempDir(), "nested", "app.log")

	l := NewLogger(cfg)
	l.Raw().Info("to file")
	l.Close()

	data, err := os.ReadFile(cfg.Log.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
