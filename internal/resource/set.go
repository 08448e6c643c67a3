package resource

import (
	"errors"
	"fmt"
	"sync"

	"deepfake-service/pkg/logger"
)

// Resource 需要在退出时释放的外部连接
type Resource interface {
	Name() string
	Close() error
}

// Set 按打开顺序记录资源，关闭时逆序释放
type Set struct {
	mu        sync.Mutex
	resources []Resource
}

func (s *Set) Add(r Resource) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, r)
}

// CloseAll 逆序关闭全部资源，可重复调用
func (s *Set) CloseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := len(s.resources) - 1; i >= 0; i-- {
		r := s.resources[i]
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", r.Name(), err))
			continue
		}
		logger.Infof("Resource closed name=%s", r.Name())
	}
	s.resources = nil
	return errors.Join(errs...)
}
