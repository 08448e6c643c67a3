package worker

import (
	"deepfake-service/ddd/infrastructure/queue"
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/task"
)

// RegisterBackgroundTasks 把工作池和清理任务注册到任务管理器。
// 停止顺序与注册相反：先停清理，再关闭队列并等待工作池跑完进行中的任务。
func RegisterBackgroundTasks(m *task.Manager, cfg *config.Config, q queue.TaskQueue, w AnalysisWorker, evictor Evictor) {
	m.Register(&task.FuncTask{
		TaskName:  "analysisWorker",
		StartFunc: w.Start,
		StopFunc: func() error {
			_ = q.Close()
			return w.Stop()
		},
	})
	if cfg.Cleanup.Enabled && evictor != nil {
		m.Register(NewJanitor(evictor, cfg.Cleanup.Interval, cfg.Cleanup.MaxAge))
	}
}
