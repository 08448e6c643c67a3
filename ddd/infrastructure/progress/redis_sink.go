package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"deepfake-service/ddd/domain/entity"
)

// RedisSink 把任务快照镜像到 Redis hash，供其他实例或看板读取
type RedisSink struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSink ttl 一般与清理的保留时间一致
func NewRedisSink(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSink {
	if prefix == "" {
		prefix = "deepfake:job:"
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// Key 任务对应的 hash key
func (s *RedisSink) Key(jobID string) string {
	return s.prefix + jobID
}

func (s *RedisSink) SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error {
	if s.client == nil || job == nil {
		return nil
	}
	snap := job.Snapshot()
	key := s.Key(snap.JobID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, snapshotFields(snap))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror job %s to redis: %w", snap.JobID, err)
	}
	return nil
}

func snapshotFields(snap entity.JobSnapshot) map[string]interface{} {
	fields := map[string]interface{}{
		"job_id":     snap.JobID,
		"status":     snap.Status.String(),
		"progress":   strconv.Itoa(snap.Progress),
		"filename":   snap.SourceFilename,
		"error":      snap.ErrorMessage,
		"created_at": snap.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if snap.Result != nil {
		fields["overall_prediction"] = snap.Result.OverallLabel.String()
		fields["fake_percentage"] = strconv.FormatFloat(snap.Result.FakePercentage, 'f', 2, 64)
	}
	return fields
}
