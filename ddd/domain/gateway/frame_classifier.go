package gateway

import (
	"context"
	"errors"
	"image"

	"deepfake-service/ddd/domain/vo"
)

// ErrModelUnavailable 模型未就绪，任务无法进入推理阶段
var ErrModelUnavailable = errors.New("model initialization failed")

// FrameClassifier 单帧真伪分类
type FrameClassifier interface {
	// Ready 确认模型可用；失败后下一个任务会再次尝试
	Ready(ctx context.Context) error

	// Classify 不返回错误，任何失败都以 vo.ErrorPrediction() 表示
	Classify(ctx context.Context, frame image.Image) vo.Prediction
}
