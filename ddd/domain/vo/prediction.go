package vo

// Label 单帧或整段视频的判定标签
type Label string

const (
	LabelReal  Label = "Real"
	LabelFake  Label = "Fake"
	LabelError Label = "Error"
)

func (l Label) String() string {
	return string(l)
}

// RealThreshold 概率严格大于该值时判定为真实
const RealThreshold = 0.5

// Prediction 分类器对一帧的输出，Probability 为"真实"的概率
type Prediction struct {
	Probability float64 `json:"probability"`
	Label       Label   `json:"label"`
	Confidence  float64 `json:"confidence"`
}

// NewPrediction 根据真实概率推导标签和置信度
func NewPrediction(probability float64) Prediction {
	if probability > RealThreshold {
		return Prediction{Probability: probability, Label: LabelReal, Confidence: probability}
	}
	return Prediction{Probability: probability, Label: LabelFake, Confidence: 1 - probability}
}

// ErrorPrediction 推理失败时使用的占位结果
func ErrorPrediction() Prediction {
	return Prediction{Probability: 0.5, Label: LabelError, Confidence: 0}
}

// IsError 是否为推理失败的占位结果
func (p Prediction) IsError() bool {
	return p.Label == LabelError
}
