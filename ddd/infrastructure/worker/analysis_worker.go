package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/repo"
	"deepfake-service/ddd/domain/service"
	"deepfake-service/ddd/infrastructure/queue"
	"deepfake-service/pkg/logger"
)

// AnalysisWorker 检测任务工作池
type AnalysisWorker interface {
	// Start 启动工作器
	Start(ctx context.Context) error

	// Stop 停止取新任务，并等待正在执行的任务结束
	Stop() error

	// IsRunning 检查工作器是否运行中
	IsRunning() bool

	// GetStats 获取工作器统计信息
	GetStats() WorkerStats
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64
	SuccessfulTasks  uint64
	FailedTasks      uint64
	CurrentlyRunning int
	StartTime        time.Time
	LastTaskTime     time.Time
}

type analysisWorkerImpl struct {
	id          string
	taskQueue   queue.TaskQueue
	analysis    service.AnalysisService
	jobRepo     repo.AnalysisJobRepository
	workerCount int
	gracePeriod time.Duration

	// lifecycle 只保护 running/cancel，不在持锁时等待协程
	lifecycle sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	statsMu sync.RWMutex
	stats   WorkerStats
}

// NewAnalysisWorker 创建检测工作器，gracePeriod<=0 表示无限等待进行中的任务
func NewAnalysisWorker(
	id string,
	taskQueue queue.TaskQueue,
	analysis service.AnalysisService,
	jobRepo repo.AnalysisJobRepository,
	workerCount int,
	gracePeriod time.Duration,
) AnalysisWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &analysisWorkerImpl{
		id:          id,
		taskQueue:   taskQueue,
		analysis:    analysis,
		jobRepo:     jobRepo,
		workerCount: workerCount,
		gracePeriod: gracePeriod,
		stats:       WorkerStats{StartTime: time.Now()},
	}
}

// Start 启动工作器
func (w *analysisWorkerImpl) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.updateStats(func(s *WorkerStats) { s.StartTime = time.Now() })

	logger.Infof("Starting analysis worker %s with %d goroutines", w.id, w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}
	return nil
}

// Stop 停止工作器
func (w *analysisWorkerImpl) Stop() error {
	w.lifecycle.Lock()
	if !w.running {
		w.lifecycle.Unlock()
		return nil
	}
	w.running = false
	cancel := w.cancel
	w.lifecycle.Unlock()

	logger.Infof("Stopping analysis worker %s", w.id)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	if w.gracePeriod <= 0 {
		<-done
	} else {
		select {
		case <-done:
		case <-time.After(w.gracePeriod):
			return fmt.Errorf("worker %s: in-flight jobs still running after %s", w.id, w.gracePeriod)
		}
	}
	logger.Infof("Analysis worker %s stopped", w.id)
	return nil
}

// IsRunning 检查工作器是否运行中
func (w *analysisWorkerImpl) IsRunning() bool {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *analysisWorkerImpl) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

// workerLoop 工作器主循环
func (w *analysisWorkerImpl) workerLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	logger.Debugf("Worker %s-%d started", w.id, workerID)
	defer logger.Debugf("Worker %s-%d stopped", w.id, workerID)

	for {
		jobID, err := w.taskQueue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warnf("Worker %s-%d failed to dequeue job: %v", w.id, workerID, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if jobID == "" {
			continue
		}

		// 停机时正在执行的任务需要跑完
		w.processJob(context.WithoutCancel(ctx), jobID, workerID)
	}
}

// processJob 处理单个任务
func (w *analysisWorkerImpl) processJob(ctx context.Context, jobID string, workerID int) {
	job, err := w.jobRepo.GetAnalysisJob(ctx, jobID)
	if err != nil {
		logger.Errorf("Worker %s-%d load job failed job_id=%s error=%v", w.id, workerID, jobID, err)
		return
	}
	if job == nil {
		// 入队后已被清理
		logger.Warnf("Worker %s-%d skip missing job job_id=%s", w.id, workerID, jobID)
		return
	}
	if job.IsFinal() {
		logger.Infof("Worker %s-%d skip terminal job job_id=%s status=%s", w.id, workerID, jobID, job.Status())
		return
	}

	w.updateStats(func(s *WorkerStats) { s.CurrentlyRunning++ })
	execErr := w.execute(ctx, job, workerID)
	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedTasks++
		s.LastTaskTime = time.Now()
		if execErr != nil {
			s.FailedTasks++
		} else {
			s.SuccessfulTasks++
		}
	})
}

// execute 兜底：领域服务之外漏出的 panic 只让当前任务失败，不会带走整个 worker
func (w *analysisWorkerImpl) execute(ctx context.Context, job *entity.AnalysisJobEntity, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
			logger.Errorf("Worker %s-%d recovered panic job_id=%s panic=%v", w.id, workerID, job.JobID(), r)
			if failErr := job.Fail(err.Error()); failErr != nil {
				logger.Warnf("Worker %s-%d cannot mark job failed job_id=%s error=%v", w.id, workerID, job.JobID(), failErr)
			}
		}
	}()
	return w.analysis.ExecuteAnalysis(ctx, job)
}

func (w *analysisWorkerImpl) updateStats(fn func(*WorkerStats)) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	fn(&w.stats)
}
