package vo

// JobStatus 检测任务状态
type JobStatus string

const (
	// JobStatusQueued 已入队等待处理
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing 处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 已完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusError 失败
	JobStatusError JobStatus = "error"
)

// IsValid 检查状态是否有效
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusError:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s JobStatus) String() string {
	return string(s)
}

// IsFinalStatus 检查是否为最终状态
func (s JobStatus) IsFinalStatus() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return target == JobStatusProcessing
	case JobStatusProcessing:
		return target == JobStatusCompleted || target == JobStatusError
	case JobStatusCompleted, JobStatusError:
		return false // 最终状态不能转换
	default:
		return false
	}
}
