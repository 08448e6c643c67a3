package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"deepfake-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (worker pool, janitor, registry lease).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager starts registered tasks in order and stops them in reverse order.
type Manager struct {
	tasks   []BackgroundTask
	started []BackgroundTask
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{tasks: make([]BackgroundTask, 0)}
}

var defaultManager = NewManager()

// Register adds a background task; should be called during assembly before StartAll.
func Register(task BackgroundTask) { defaultManager.Register(task) }

// StartAll starts all registered tasks once.
func StartAll(ctx context.Context) error { return defaultManager.StartAll(ctx) }

// StopAll stops all running tasks.
func StopAll() error { return defaultManager.StopAll() }

func (m *Manager) Register(task BackgroundTask) {
	if task == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, t := range m.tasks {
		if err := t.Start(runCtx); err != nil {
			return fmt.Errorf("start background task %s: %w", t.Name(), err)
		}
		m.started = append(m.started, t)
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll 只停止已经成功启动的任务，可重复调用
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		t := m.started[i]
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", t.Name(), err))
			continue
		}
		logger.Infof("Background task stopped name=%s", t.Name())
	}
	m.started = nil
	m.cancel = nil
	return errors.Join(errs...)
}

// FuncTask adapts Start/Stop functions to the BackgroundTask interface.
type FuncTask struct {
	TaskName  string
	StartFunc func(ctx context.Context) error
	StopFunc  func() error
}

func (f *FuncTask) Name() string { return f.TaskName }

func (f *FuncTask) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f *FuncTask) Stop() error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc()
}
