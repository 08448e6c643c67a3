package entity

import (
	"sync"
	"time"

	"deepfake-service/ddd/domain/vo"
)

// AnalysisJobEntity 视频检测任务实体。
// 后台 worker 写、HTTP 读并发进行，所有字段都由 mu 保护，外部只能拿到快照。
type AnalysisJobEntity struct {
	mu             sync.RWMutex
	jobID          string              // 任务ID
	sourceFilename string              // 原始文件名，仅用于展示
	storedPath     string              // 视频在存储中的位置
	status         vo.JobStatus        // 任务状态
	progress       int                 // 进度百分比 (0-100)
	errorMessage   string              // 错误信息，仅 error 状态有值
	result         *vo.AggregateResult // 检测结果，仅 completed 状态有值
	createdAt      time.Time           // 创建时间，用于过期清理
	updatedAt      time.Time           // 更新时间
	startedAt      *time.Time          // 开始处理时间
	completedAt    *time.Time          // 结束时间（完成或失败）
}

// JobSnapshot 任务的只读快照
type JobSnapshot struct {
	JobID          string
	SourceFilename string
	StoredPath     string
	Status         vo.JobStatus
	Progress       int
	ErrorMessage   string
	Result         *vo.AggregateResult
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewAnalysisJobEntity 创建排队中的任务
func NewAnalysisJobEntity(jobID, sourceFilename, storedPath string, createdAt time.Time) *AnalysisJobEntity {
	return &AnalysisJobEntity{
		jobID:          jobID,
		sourceFilename: sourceFilename,
		storedPath:     storedPath,
		status:         vo.JobStatusQueued,
		progress:       vo.ProgressQueued,
		createdAt:      createdAt,
		updatedAt:      createdAt,
	}
}

// Getters
func (j *AnalysisJobEntity) JobID() string          { return j.jobID }
func (j *AnalysisJobEntity) SourceFilename() string { return j.sourceFilename }
func (j *AnalysisJobEntity) CreatedAt() time.Time   { return j.createdAt }

func (j *AnalysisJobEntity) StoredPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.storedPath
}

func (j *AnalysisJobEntity) Status() vo.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *AnalysisJobEntity) Progress() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

func (j *AnalysisJobEntity) ErrorMessage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errorMessage
}

// Result 完成前返回nil
func (j *AnalysisJobEntity) Result() *vo.AggregateResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Snapshot 在同一把锁下读取全部字段
func (j *AnalysisJobEntity) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobSnapshot{
		JobID:          j.jobID,
		SourceFilename: j.sourceFilename,
		StoredPath:     j.storedPath,
		Status:         j.status,
		Progress:       j.progress,
		ErrorMessage:   j.errorMessage,
		Result:         j.result,
		CreatedAt:      j.createdAt,
		UpdatedAt:      j.updatedAt,
		StartedAt:      j.startedAt,
		CompletedAt:    j.completedAt,
	}
}

// AttachStoredPath 记录视频存储位置
func (j *AnalysisJobEntity) AttachStoredPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.storedPath = path
	j.updatedAt = time.Now()
}

// StartProcessing 开始处理，进度置为10
func (j *AnalysisJobEntity) StartProcessing() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.CanTransitionTo(vo.JobStatusProcessing) {
		return NewDomainError("cannot start processing job in current status: " + j.status.String())
	}

	now := time.Now()
	j.status = vo.JobStatusProcessing
	j.progress = vo.ProgressStarted
	j.startedAt = &now
	j.updatedAt = now
	return nil
}

// UpdateProgress 推进进度，只接受处理中状态下更大的值，返回是否发生变化
func (j *AnalysisJobEntity) UpdateProgress(progress int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != vo.JobStatusProcessing {
		return false
	}
	if progress > vo.ProgressCompleted-1 {
		progress = vo.ProgressCompleted - 1
	}
	if progress <= j.progress {
		return false
	}
	j.progress = progress
	j.updatedAt = time.Now()
	return true
}

// Complete 完成任务，结果与状态一起发布
func (j *AnalysisJobEntity) Complete(result vo.AggregateResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.CanTransitionTo(vo.JobStatusCompleted) {
		return NewDomainError("cannot complete job in current status: " + j.status.String())
	}

	now := time.Now()
	j.result = &result
	j.status = vo.JobStatusCompleted
	j.progress = vo.ProgressCompleted
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// Fail 任务失败，进度保持不变
func (j *AnalysisJobEntity) Fail(errorMessage string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.CanTransitionTo(vo.JobStatusError) {
		return NewDomainError("cannot fail job in current status: " + j.status.String())
	}

	now := time.Now()
	j.status = vo.JobStatusError
	j.errorMessage = errorMessage
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

// IsFinal 是否已到达最终状态
func (j *AnalysisJobEntity) IsFinal() bool {
	return j.Status().IsFinalStatus()
}

// IsOlderThan 创建时间距 now 是否超过 maxAge
func (j *AnalysisJobEntity) IsOlderThan(now time.Time, maxAge time.Duration) bool {
	return now.Sub(j.createdAt) > maxAge
}
