package vo

import "fmt"

// VideoMetadata 视频基础信息
type VideoMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	FPS             float64 `json:"fps"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameCount      int     `json:"frame_count"`
	SizeBytes       int64   `json:"size_bytes"`
	// StartTimeSeconds 首帧的显示时间偏移，用于把 pts 换算成帧号
	StartTimeSeconds float64 `json:"start_time_seconds"`
}

// Resolution 返回 "宽x高" 形式的分辨率
func (m VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// SizeMB 以MB为单位的文件大小
func (m VideoMetadata) SizeMB() float64 {
	return float64(m.SizeBytes) / (1024 * 1024)
}

// TimestampOf 帧序号对应的时间点，帧率未知时为0
func (m VideoMetadata) TimestampOf(index int) float64 {
	if m.FPS <= 0 {
		return 0
	}
	return float64(index) / m.FPS
}
