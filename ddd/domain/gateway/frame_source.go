package gateway

import (
	"context"
	"errors"
	"image"

	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/vo"
)

// ErrUnreadableVideo 视频无法打开或解析
var ErrUnreadableVideo = errors.New("could not process video")

// SampledFrame 抽取到的一帧及其在原视频中的位置
type SampledFrame struct {
	Frame            image.Image
	Index            int
	TimestampSeconds float64
}

// FrameSource 视频解码与抽帧
type FrameSource interface {
	// GetVideoInfo 读取视频元信息，无法打开时返回 ErrUnreadableVideo
	GetVideoInfo(ctx context.Context, path string) (vo.VideoMetadata, error)

	// SampleFrames 按 vo.SampleIndices 均匀抽帧，解码失败的帧直接跳过。
	// progress 接收抽帧阶段自身 0-100 的进度，可以为nil。
	SampleFrames(ctx context.Context, path string, meta vo.VideoMetadata, maxFrames int, progress port.ProgressCallback) ([]SampledFrame, error)
}
