package vo

// FrameVerdict 单个抽样帧的判定结果
type FrameVerdict struct {
	Index            int     `json:"index"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Label            Label   `json:"label"`
	Probability      float64 `json:"probability"`
	Confidence       float64 `json:"confidence"`
}

// NewFrameVerdict 把帧位置和分类结果合成一条判定
func NewFrameVerdict(index int, timestamp float64, p Prediction) FrameVerdict {
	return FrameVerdict{
		Index:            index,
		TimestampSeconds: timestamp,
		Label:            p.Label,
		Probability:      p.Probability,
		Confidence:       p.Confidence,
	}
}
