package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"deepfake-service/pkg/metrics"
)

var (
	// ErrQueueFull 设置了容量上限且已满
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("queue is closed")
)

// TaskQueue 待处理任务ID的队列
type TaskQueue interface {
	// Enqueue 入队任务（非阻塞）
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue 出队任务（阻塞），关闭后返回 ErrQueueClosed
	Dequeue(ctx context.Context) (string, error)

	// TryDequeue 尝试出队任务（非阻塞），队列为空时返回 ""
	TryDequeue(ctx context.Context) (string, error)

	// Size 获取队列大小
	Size() int

	// Capacity 队列容量，0 表示不限
	Capacity() int

	// Close 关闭队列，已在队列中的任务不再被取出
	Close() error

	// IsClosed 检查队列是否已关闭
	IsClosed() bool
}

// MemoryTaskQueue 内存任务队列。
// 默认不限长度：并发由工作池的 goroutine 数量控制，排队的任务全部保留。
type MemoryTaskQueue struct {
	mu       sync.Mutex
	items    []string
	capacity int
	notify   chan struct{}
	done     chan struct{}
	closed   bool
	enqueued atomic.Uint64
	dequeued atomic.Uint64
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	MaxSize      int
	CurrentSize  int
}

// NewMemoryTaskQueue 创建内存任务队列，capacity<=0 表示不限长度
func NewMemoryTaskQueue(capacity int) *MemoryTaskQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryTaskQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue 入队任务
func (q *MemoryTaskQueue) Enqueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, jobID)
	depth := len(q.items)
	q.mu.Unlock()

	q.enqueued.Add(1)
	metrics.QueueDepth.Set(float64(depth))
	q.signal()
	return nil
}

// Dequeue 出队任务（阻塞）
func (q *MemoryTaskQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		jobID, ok, err := q.pop()
		if err != nil {
			return "", err
		}
		if ok {
			return jobID, nil
		}
		select {
		case <-q.notify:
		case <-q.done:
			return "", ErrQueueClosed
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// TryDequeue 尝试出队任务（非阻塞）
func (q *MemoryTaskQueue) TryDequeue(ctx context.Context) (string, error) {
	jobID, _, err := q.pop()
	return jobID, err
}

func (q *MemoryTaskQueue) pop() (string, bool, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", false, ErrQueueClosed
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return "", false, nil
	}
	jobID := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	depth := len(q.items)
	q.mu.Unlock()

	q.dequeued.Add(1)
	metrics.QueueDepth.Set(float64(depth))
	if depth > 0 {
		// notify 只有一个缓冲位，还有剩余任务时唤醒下一个等待者
		q.signal()
	}
	return jobID, true, nil
}

func (q *MemoryTaskQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Size 获取队列大小
func (q *MemoryTaskQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryTaskQueue) Capacity() int {
	return q.capacity
}

// Close 关闭队列
func (q *MemoryTaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

// IsClosed 检查队列是否已关闭
func (q *MemoryTaskQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// GetMetrics 获取队列指标
func (q *MemoryTaskQueue) GetMetrics() QueueMetrics {
	return QueueMetrics{
		EnqueueCount: q.enqueued.Load(),
		DequeueCount: q.dequeued.Load(),
		MaxSize:      q.capacity,
		CurrentSize:  q.Size(),
	}
}
