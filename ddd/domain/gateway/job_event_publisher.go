package gateway

import (
	"context"
	"time"

	"deepfake-service/ddd/domain/vo"
)

// JobEvent 任务生命周期事件
type JobEvent struct {
	JobID          string       `json:"job_id"`
	Status         vo.JobStatus `json:"status"`
	Progress       int          `json:"progress"`
	Filename       string       `json:"filename"`
	Error          string       `json:"error,omitempty"`
	OverallLabel   vo.Label     `json:"overall_label,omitempty"`
	FakePercentage float64      `json:"fake_percentage,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// JobEventPublisher notifies downstream consumers about job transitions.
type JobEventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
}
