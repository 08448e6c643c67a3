package progress

import (
	"context"
	"errors"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/port"
)

// MultiSink 依次写入多个 sink，单个失败不影响其他
type MultiSink []port.ProgressSink

func NewMultiSink(sinks ...port.ProgressSink) MultiSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m MultiSink) SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveProgress(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
