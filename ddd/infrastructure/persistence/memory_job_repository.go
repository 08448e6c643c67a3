package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/repo"
)

// memoryJobRepository 进程内任务仓储，重启后任务丢失
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*entity.AnalysisJobEntity
}

func NewMemoryJobRepository() repo.AnalysisJobRepository {
	return &memoryJobRepository{jobs: make(map[string]*entity.AnalysisJobEntity)}
}

func (r *memoryJobRepository) CreateAnalysisJob(ctx context.Context, job *entity.AnalysisJobEntity) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.JobID()]; exists {
		return fmt.Errorf("job %s already exists", job.JobID())
	}
	r.jobs[job.JobID()] = job
	return nil
}

func (r *memoryJobRepository) GetAnalysisJob(ctx context.Context, jobID string) (*entity.AnalysisJobEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[jobID], nil
}

func (r *memoryJobRepository) ListAnalysisJobs(ctx context.Context) ([]*entity.AnalysisJobEntity, error) {
	r.mu.RLock()
	list := make([]*entity.AnalysisJobEntity, 0, len(r.jobs))
	for _, job := range r.jobs {
		list = append(list, job)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		ci, cj := list[i].CreatedAt(), list[j].CreatedAt()
		if ci.Equal(cj) {
			return list[i].JobID() < list[j].JobID()
		}
		return ci.Before(cj)
	})
	return list, nil
}

func (r *memoryJobRepository) DeleteAnalysisJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
	return nil
}

func (r *memoryJobRepository) CountAnalysisJobs(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs), nil
}
