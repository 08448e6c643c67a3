package vo

import "time"

// FakeMajorityThreshold 伪造帧占比严格大于该值时整体判定为伪造
const FakeMajorityThreshold = 50.0

// AggregateResult 整段视频的检测结论
type AggregateResult struct {
	OverallLabel          Label          `json:"overall_label"`
	FakePercentage        float64        `json:"fake_percentage"`
	TotalFramesAnalyzed   int            `json:"total_frames_analyzed"`
	FakeFramesCount       int            `json:"fake_frames_count"`
	RealFramesCount       int            `json:"real_frames_count"`
	ErrorFramesCount      int            `json:"error_frames_count"`
	VideoMetadata         VideoMetadata  `json:"video_metadata"`
	FrameVerdicts         []FrameVerdict `json:"frame_verdicts"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	VideoURL              string         `json:"video_url"`
}

// Aggregate 汇总逐帧判定。
// 推理失败的帧计入总数但不计入伪造数，real = total - fake。
func Aggregate(verdicts []FrameVerdict, meta VideoMetadata, elapsed time.Duration) AggregateResult {
	total := len(verdicts)
	fake, failed := 0, 0
	for _, v := range verdicts {
		switch v.Label {
		case LabelFake:
			fake++
		case LabelError:
			failed++
		}
	}

	pct := 0.0
	if total > 0 {
		pct = float64(fake) / float64(total) * 100
	}
	overall := LabelReal
	if pct > FakeMajorityThreshold {
		overall = LabelFake
	}

	frames := make([]FrameVerdict, total)
	copy(frames, verdicts)

	return AggregateResult{
		OverallLabel:          overall,
		FakePercentage:        pct,
		TotalFramesAnalyzed:   total,
		FakeFramesCount:       fake,
		RealFramesCount:       total - fake,
		ErrorFramesCount:      failed,
		VideoMetadata:         meta,
		FrameVerdicts:         frames,
		ProcessingTimeSeconds: elapsed.Seconds(),
	}
}
