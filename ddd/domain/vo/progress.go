package vo

// 进度区间：0-10 提交，10-60 抽帧，60-95 推理，100 完成
const (
	ProgressQueued          = 0
	ProgressStarted         = 10
	ProgressExtractionStart = 30
	ProgressExtracted       = 60
	ProgressInferenceSpan   = 35
	ProgressCompleted       = 100
)

// ExtractionProgress 把抽帧阶段自身 0-100 的进度映射为 min(30 + p*0.3, 60)
func ExtractionProgress(p int) int {
	if p < 0 {
		p = 0
	}
	v := float64(ProgressExtractionStart) + float64(p)*0.3
	if v > ProgressExtracted {
		v = ProgressExtracted
	}
	return int(v)
}

// InferenceProgress 第 i 帧（从0开始）推理前的任务进度 60 + int(i/total*35)
func InferenceProgress(i, total int) int {
	if total <= 0 {
		return ProgressExtracted
	}
	return ProgressExtracted + int(float64(i)/float64(total)*ProgressInferenceSpan)
}
