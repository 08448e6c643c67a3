package repo

import (
	"context"

	"deepfake-service/ddd/domain/entity"
)

// AnalysisJobRepository 检测任务仓储接口
type AnalysisJobRepository interface {
	// CreateAnalysisJob 保存新任务，ID重复时报错
	CreateAnalysisJob(ctx context.Context, job *entity.AnalysisJobEntity) error
	// GetAnalysisJob 任务不存在时返回 nil, nil
	GetAnalysisJob(ctx context.Context, jobID string) (*entity.AnalysisJobEntity, error)
	// ListAnalysisJobs 按创建时间升序返回全部任务
	ListAnalysisJobs(ctx context.Context) ([]*entity.AnalysisJobEntity, error)
	DeleteAnalysisJob(ctx context.Context, jobID string) error
	CountAnalysisJobs(ctx context.Context) (int, error)
}
