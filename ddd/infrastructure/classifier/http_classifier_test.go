package classifier

import (
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/vo"
	"deepfake-service/pkg/config"
)

func newClassifier(url string) *HTTPClassifier {
	return NewHTTPClassifier(config.ClassifierConfig{
		Endpoint:    url + "/",
		PredictPath: "/v1/predict",
		HealthPath:  "/health",
		Timeout:     time.Second,
	})
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestClassifyParsesProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/predict", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		_, err := jpeg.Decode(r.Body)
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"probability": 0.8}`))
	}))
	defer srv.Close()

	p := newClassifier(srv.URL).Classify(context.Background(), frame())
	assert.Equal(t, vo.LabelReal, p.Label)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
}

func TestClassifyFailuresBecomeErrorPrediction(t *testing.T) {
	bodies := map[string]struct {
		status int
		body   string
	}{
		"server error":   {http.StatusInternalServerError, `boom`},
		"bad json":       {http.StatusOK, `{`},
		"missing field":  {http.StatusOK, `{}`},
		"out of range":   {http.StatusOK, `{"probability": 1.5}`},
		"negative value": {http.StatusOK, `{"probability": -0.1}`},
	}
	for name, tc := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			assert.Equal(t, vo.ErrorPrediction(), newClassifier(srv.URL).Classify(context.Background(), frame()))
		})
	}

	assert.Equal(t, vo.ErrorPrediction(), newClassifier("http://127.0.0.1:1").Classify(context.Background(), frame()))
	assert.Equal(t, vo.ErrorPrediction(), newClassifier("http://127.0.0.1:1").Classify(context.Background(), nil))
}

func TestReadyRetriesUntilHealthyThenCaches(t *testing.T) {
	var healthy atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClassifier(srv.URL)
	err := c.Ready(context.Background())
	require.ErrorIs(t, err, gateway.ErrModelUnavailable)

	healthy.Store(true)
	require.NoError(t, c.Ready(context.Background()))
	require.NoError(t, c.Ready(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestReadyUnreachable(t *testing.T) {
	err := newClassifier("http://127.0.0.1:1").Ready(context.Background())
	assert.ErrorIs(t, err, gateway.ErrModelUnavailable)
}
