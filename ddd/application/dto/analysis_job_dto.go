package dto

import (
	"math"
	"time"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/vo"
)

// SubmitVideoDto 上传成功的响应
type SubmitVideoDto struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatusDto 任务状态
type JobStatusDto struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	CreatedAt string  `json:"created_at"`
	Filename  string  `json:"filename"`
	Error     *string `json:"error"`
}

// JobSummaryDto 任务列表中的一项
type JobSummaryDto struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt string `json:"created_at"`
	Filename  string `json:"filename"`
}

// JobListDto 任务列表
type JobListDto struct {
	Jobs []JobSummaryDto `json:"jobs"`
}

// JobResultDto 已完成任务的结果
type JobResultDto struct {
	JobID   string           `json:"job_id"`
	Status  string           `json:"status"`
	Results *AnalysisResults `json:"results"`
}

// AnalysisResults 检测结论
type AnalysisResults struct {
	OverallPrediction   string           `json:"overall_prediction"`
	FakePercentage      float64          `json:"fake_percentage"`
	TotalFramesAnalyzed int              `json:"total_frames_analyzed"`
	FakeFramesCount     int              `json:"fake_frames_count"`
	RealFramesCount     int              `json:"real_frames_count"`
	ErrorFramesCount    int              `json:"error_frames_count"`
	VideoInfo           VideoInfoDto     `json:"video_info"`
	FrameResults        []FrameResultDto `json:"frame_results"`
	ProcessingTime      float64          `json:"processing_time"`
	VideoURL            string           `json:"video_url"`
}

// VideoInfoDto 视频元信息
type VideoInfoDto struct {
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
	SizeMB     float64 `json:"size_mb"`
	Resolution string  `json:"resolution"`
}

// FrameResultDto 单帧判定
type FrameResultDto struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Prediction  string  `json:"prediction"`
	Confidence  float64 `json:"confidence"`
	Probability float64 `json:"probability"`
}

// CleanupDto 清理结果
type CleanupDto struct {
	Message string `json:"message"`
	Evicted int    `json:"evicted"`
}

// HealthDto 健康检查
type HealthDto struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// FormatTime 统一的时间格式
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewJobStatusDto 从快照创建状态DTO，没有错误时 error 为 null
func NewJobStatusDto(snap entity.JobSnapshot) *JobStatusDto {
	d := &JobStatusDto{
		JobID:     snap.JobID,
		Status:    snap.Status.String(),
		Progress:  snap.Progress,
		CreatedAt: FormatTime(snap.CreatedAt),
		Filename:  snap.SourceFilename,
	}
	if snap.ErrorMessage != "" {
		msg := snap.ErrorMessage
		d.Error = &msg
	}
	return d
}

func NewJobSummaryDto(snap entity.JobSnapshot) JobSummaryDto {
	return JobSummaryDto{
		JobID:     snap.JobID,
		Status:    snap.Status.String(),
		Progress:  snap.Progress,
		CreatedAt: FormatTime(snap.CreatedAt),
		Filename:  snap.SourceFilename,
	}
}

// NewJobResultDto 从快照创建结果DTO，调用方保证任务已完成
func NewJobResultDto(snap entity.JobSnapshot) *JobResultDto {
	return &JobResultDto{
		JobID:   snap.JobID,
		Status:  snap.Status.String(),
		Results: NewAnalysisResults(snap.Result),
	}
}

func NewAnalysisResults(r *vo.AggregateResult) *AnalysisResults {
	if r == nil {
		return nil
	}
	frames := make([]FrameResultDto, 0, len(r.FrameVerdicts))
	for _, v := range r.FrameVerdicts {
		frames = append(frames, FrameResultDto{
			FrameNumber: v.Index,
			Timestamp:   v.TimestampSeconds,
			Prediction:  v.Label.String(),
			Confidence:  v.Confidence,
			Probability: v.Probability,
		})
	}
	meta := r.VideoMetadata
	return &AnalysisResults{
		OverallPrediction:   r.OverallLabel.String(),
		FakePercentage:      round2(r.FakePercentage),
		TotalFramesAnalyzed: r.TotalFramesAnalyzed,
		FakeFramesCount:     r.FakeFramesCount,
		RealFramesCount:     r.RealFramesCount,
		ErrorFramesCount:    r.ErrorFramesCount,
		VideoInfo: VideoInfoDto{
			FPS:        meta.FPS,
			FrameCount: meta.FrameCount,
			Width:      meta.Width,
			Height:     meta.Height,
			Duration:   meta.DurationSeconds,
			SizeMB:     round2(meta.SizeMB()),
			Resolution: meta.Resolution(),
		},
		FrameResults:   frames,
		ProcessingTime: round2(r.ProcessingTimeSeconds),
		VideoURL:       r.VideoURL,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
