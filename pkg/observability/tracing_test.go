package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/pkg/config"
)

func TestInitTracerDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartProfilingWithoutServer(t *testing.T) {
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")
	assert.Nil(t, StartProfiling("deepfake-service-test"))
}
