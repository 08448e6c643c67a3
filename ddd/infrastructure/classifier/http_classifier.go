package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"

	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/vo"
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
)

// HTTPClassifier 把帧编码为 JPEG 发送给模型服务，模型服务返回该帧为真实的概率
type HTTPClassifier struct {
	client     *http.Client
	predictURL string
	healthURL  string
	quality    int
	ready      atomic.Bool
}

type predictResponse struct {
	Probability *float64 `json:"probability"`
}

func NewHTTPClassifier(cfg config.ClassifierConfig) *HTTPClassifier {
	base := strings.TrimRight(cfg.Endpoint, "/")
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &HTTPClassifier{
		client:     &http.Client{Timeout: cfg.Timeout},
		predictURL: base + cfg.PredictPath,
		healthURL:  base + cfg.HealthPath,
		quality:    quality,
	}
}

// Ready 首次成功后不再检查；失败时下一个任务重试
func (c *HTTPClassifier) Ready(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrModelUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: model server health returned %d", gateway.ErrModelUnavailable, resp.StatusCode)
	}
	c.ready.Store(true)
	logger.Infof("Model server ready url=%s", c.healthURL)
	return nil
}

// Classify 任何失败都返回 vo.ErrorPrediction()
func (c *HTTPClassifier) Classify(ctx context.Context, frame image.Image) vo.Prediction {
	p, err := c.predict(ctx, frame)
	if err != nil {
		logger.Warnf("frame classification failed error=%v", err)
		return vo.ErrorPrediction()
	}
	return vo.NewPrediction(p)
}

func (c *HTTPClassifier) predict(ctx context.Context, frame image.Image) (float64, error) {
	if frame == nil {
		return 0, fmt.Errorf("nil frame")
	}
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame, &jpeg.Options{Quality: c.quality}); err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, &body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("model server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	if out.Probability == nil {
		return 0, fmt.Errorf("prediction missing probability")
	}
	p := *out.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("probability out of range: %v", p)
	}
	return p, nil
}
