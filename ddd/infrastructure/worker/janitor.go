package worker

import (
	"context"
	"sync"
	"time"

	"deepfake-service/pkg/logger"
)

// Evictor 清理过期任务
type Evictor interface {
	EvictStaleJobs(ctx context.Context, maxAge time.Duration) (int, error)
}

// Janitor 定期清理已结束且超过保留时间的任务及其视频
type Janitor struct {
	evictor  Evictor
	interval time.Duration
	maxAge   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJanitor(evictor Evictor, interval, maxAge time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Janitor{evictor: evictor, interval: interval, maxAge: maxAge}
}

func (j *Janitor) Name() string { return "staleJobJanitor" }

// Start 启动清理协程
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(runCtx, j.done)
	logger.Infof("Janitor started interval=%s max_age=%s", j.interval, j.maxAge)
	return nil
}

// Stop 停止清理协程，等待当前一轮结束
func (j *Janitor) Stop() error {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮清理
func (j *Janitor) RunOnce(ctx context.Context) int {
	evicted, err := j.evictor.EvictStaleJobs(ctx, j.maxAge)
	if err != nil {
		logger.Warnf("Janitor eviction failed error=%v", err)
	}
	if evicted > 0 {
		logger.Infof("Janitor evicted stale jobs count=%d", evicted)
	}
	return evicted
}
