package vo

// DefaultMaxFrames 未配置时每个视频最多抽取的帧数
const DefaultMaxFrames = 100

// EffectiveMaxFrames 实际抽帧上限 min(configured, frameCount)
func EffectiveMaxFrames(configured, frameCount int) int {
	if configured <= 0 {
		configured = DefaultMaxFrames
	}
	if frameCount < configured {
		return frameCount
	}
	return configured
}

// SampleIndices 按固定步长均匀抽帧。
// stride = max(1, total/maxFrames)，返回 0, stride, 2*stride, ... 直到达到 maxFrames 或越过 total。
func SampleIndices(total, maxFrames int) []int {
	if total <= 0 || maxFrames <= 0 {
		return nil
	}
	stride := SampleStride(total, maxFrames)
	size := maxFrames
	if total < size {
		size = total
	}
	indices := make([]int, 0, size)
	for idx := 0; idx < total && len(indices) < maxFrames; idx += stride {
		indices = append(indices, idx)
	}
	return indices
}

// SampleStride 与 SampleIndices 使用相同的步长
func SampleStride(total, maxFrames int) int {
	if total <= 0 || maxFrames <= 0 {
		return 1
	}
	if s := total / maxFrames; s > 1 {
		return s
	}
	return 1
}
