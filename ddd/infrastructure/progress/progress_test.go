package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/vo"
)

type countingSink struct {
	calls int
	err   error
}

func (c *countingSink) SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error {
	c.calls++
	return c.err
}

func TestMultiSinkFansOutAndJoinsErrors(t *testing.T) {
	ok := &countingSink{}
	bad := &countingSink{err: errors.New("down")}
	sink := NewMultiSink(bad, nil, ok)
	require.Len(t, sink, 2)

	err := sink.SaveProgress(context.Background(), entity.NewAnalysisJobEntity("j", "a.mp4", "p", time.Now()))
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, bad.calls)
}

func TestSnapshotFields(t *testing.T) {
	job := entity.NewAnalysisJobEntity("j1", "clip.mp4", "p", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, job.StartProcessing())
	require.NoError(t, job.Complete(vo.Aggregate([]vo.FrameVerdict{
		vo.NewFrameVerdict(0, 0, vo.NewPrediction(0.1)),
	}, vo.VideoMetadata{}, 0)))

	fields := snapshotFields(job.Snapshot())
	assert.Equal(t, "j1", fields["job_id"])
	assert.Equal(t, "completed", fields["status"])
	assert.Equal(t, "100", fields["progress"])
	assert.Equal(t, "2026-03-01T00:00:00Z", fields["created_at"])
	assert.Equal(t, "Fake", fields["overall_prediction"])
	assert.Equal(t, "100.00", fields["fake_percentage"])
}

func TestRedisSinkReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	sink := NewRedisSink(client, "", time.Minute)
	assert.Equal(t, "deepfake:job:abc", sink.Key("abc"))

	err := sink.SaveProgress(context.Background(), entity.NewAnalysisJobEntity("abc", "a.mp4", "p", time.Now()))
	assert.ErrorContains(t, err, "mirror job abc to redis")
}
