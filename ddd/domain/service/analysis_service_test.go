package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/vo"
)

// markerSource 生成 FrameCount 帧的假视频，序号小于 fakeBelow 的帧带伪造标记
type markerSource struct {
	meta      vo.VideoMetadata
	fakeBelow int
	probeErr  error
	sampleErr error
	panicMsg  string
	seenPath  string
}

func (m *markerSource) GetVideoInfo(ctx context.Context, path string) (vo.VideoMetadata, error) {
	m.seenPath = path
	if m.probeErr != nil {
		return vo.VideoMetadata{}, m.probeErr
	}
	return m.meta, nil
}

func (m *markerSource) SampleFrames(ctx context.Context, path string, meta vo.VideoMetadata, maxFrames int, progress port.ProgressCallback) ([]gateway.SampledFrame, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}
	indices := vo.SampleIndices(meta.FrameCount, maxFrames)
	frames := make([]gateway.SampledFrame, 0, len(indices))
	for i, idx := range indices {
		img := image.NewGray(image.Rect(0, 0, 1, 1))
		if idx < m.fakeBelow {
			img.SetGray(0, 0, color.Gray{Y: 255})
		}
		frames = append(frames, gateway.SampledFrame{Frame: img, Index: idx, TimestampSeconds: meta.TimestampOf(idx)})
		if progress != nil {
			progress((i + 1) * 100 / len(indices))
		}
	}
	return frames, nil
}

// markerClassifier 读取标记像素给出判定
type markerClassifier struct {
	readyErr  error
	errorFrom int
	calls     int
}

func (c *markerClassifier) Ready(ctx context.Context) error { return c.readyErr }

func (c *markerClassifier) Classify(ctx context.Context, frame image.Image) vo.Prediction {
	c.calls++
	if c.errorFrom > 0 && c.calls > c.errorFrom {
		return vo.ErrorPrediction()
	}
	if g, ok := frame.(*image.Gray); ok && g.GrayAt(0, 0).Y == 255 {
		return vo.NewPrediction(0.1)
	}
	return vo.NewPrediction(0.9)
}

type recordingSink struct {
	mu       sync.Mutex
	progress []int
	statuses []vo.JobStatus
}

func (r *recordingSink) SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error {
	snap := job.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, snap.Progress)
	r.statuses = append(r.statuses, snap.Status)
	return nil
}

// panickySink 第一次写入时 panic
type panickySink struct{ calls int }

func (p *panickySink) SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error {
	p.calls++
	if p.calls == 1 {
		panic("redis client exploded")
	}
	return nil
}

type panickyPublisher struct{}

func (panickyPublisher) Publish(ctx context.Context, e gateway.JobEvent) error {
	panic("kafka writer exploded")
}

type recordingPublisher struct {
	events []gateway.JobEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e gateway.JobEvent) error {
	p.events = append(p.events, e)
	return p.err
}

// localStore 直接暴露本地路径
type localStore struct{}

func (localStore) Save(ctx context.Context, name string, r io.Reader, size int64, ct string) (string, error) {
	return name, nil
}
func (localStore) Exists(ctx context.Context, path string) (bool, error) { return true, nil }
func (localStore) Delete(ctx context.Context, path string) error         { return nil }
func (localStore) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	return nil, 0, errors.New("not used")
}
func (localStore) LocalPath(path string) (string, bool) { return path, true }

// remoteStore 只能通过 Open 读取
type remoteStore struct {
	data    []byte
	openErr error
}

func (r remoteStore) Save(ctx context.Context, name string, rd io.Reader, size int64, ct string) (string, error) {
	return name, nil
}
func (r remoteStore) Exists(ctx context.Context, path string) (bool, error) { return true, nil }
func (r remoteStore) Delete(ctx context.Context, path string) error         { return nil }
func (r remoteStore) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if r.openErr != nil {
		return nil, 0, r.openErr
	}
	return io.NopCloser(bytes.NewReader(r.data)), int64(len(r.data)), nil
}

func queuedJob() *entity.AnalysisJobEntity {
	return entity.NewAnalysisJobEntity("job-1", "clip.mp4", "uploads/job-1_clip.mp4", time.Now())
}

func thirtyFPS(frames int) vo.VideoMetadata {
	return vo.VideoMetadata{FPS: 30, FrameCount: frames, Width: 640, Height: 480, DurationSeconds: float64(frames) / 30}
}

func TestMarkerScenarioMinorityFakeIsReal(t *testing.T) {
	source := &markerSource{meta: thirtyFPS(300), fakeBelow: 120}
	sink := &recordingSink{}
	svc := NewAnalysisService(source, &markerClassifier{}, localStore{}, sink, nil, AnalysisOptions{MaxFrames: 100})

	job := queuedJob()
	require.NoError(t, svc.ExecuteAnalysis(context.Background(), job))

	snap := job.Snapshot()
	require.Equal(t, vo.JobStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	res := snap.Result
	require.NotNil(t, res)
	assert.Equal(t, 100, res.TotalFramesAnalyzed)
	assert.Equal(t, 40, res.FakeFramesCount)
	assert.Equal(t, 60, res.RealFramesCount)
	assert.InDelta(t, 40.0, res.FakePercentage, 1e-9)
	assert.Equal(t, vo.LabelReal, res.OverallLabel)
	assert.Equal(t, "/api/video/job-1", res.VideoURL)
	assert.Equal(t, "640x480", res.VideoMetadata.Resolution())

	// 判定序号是抽样位置 0..99，时间戳来自原视频帧号
	for i, v := range res.FrameVerdicts {
		require.Equal(t, i, v.Index)
	}
	assert.InDelta(t, 0.1, res.FrameVerdicts[1].TimestampSeconds, 1e-9)

	// 时间戳单调且覆盖 [0, 297/30]
	first, last := res.FrameVerdicts[0], res.FrameVerdicts[len(res.FrameVerdicts)-1]
	assert.Zero(t, first.TimestampSeconds)
	assert.InDelta(t, 9.9, last.TimestampSeconds, 1e-9)
	for i := 1; i < len(res.FrameVerdicts); i++ {
		assert.GreaterOrEqual(t, res.FrameVerdicts[i].TimestampSeconds, res.FrameVerdicts[i-1].TimestampSeconds)
	}
}

func TestMarkerScenarioMajorityFakeIsFake(t *testing.T) {
	source := &markerSource{meta: thirtyFPS(300), fakeBelow: 180}
	svc := NewAnalysisService(source, &markerClassifier{}, localStore{}, nil, nil, AnalysisOptions{MaxFrames: 100})

	job := queuedJob()
	require.NoError(t, svc.ExecuteAnalysis(context.Background(), job))

	res := job.Result()
	require.NotNil(t, res)
	assert.InDelta(t, 60.0, res.FakePercentage, 1e-9)
	assert.Equal(t, vo.LabelFake, res.OverallLabel)
}

func TestProgressIsMonotonicThroughBands(t *testing.T) {
	sink := &recordingSink{}
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(90)}, &markerClassifier{}, localStore{}, sink, nil, AnalysisOptions{})

	require.NoError(t, svc.ExecuteAnalysis(context.Background(), queuedJob()))

	require.NotEmpty(t, sink.progress)
	assert.Equal(t, 10, sink.progress[0])
	assert.Equal(t, vo.JobStatusProcessing, sink.statuses[0])
	assert.Equal(t, 100, sink.progress[len(sink.progress)-1])
	assert.Equal(t, vo.JobStatusCompleted, sink.statuses[len(sink.statuses)-1])
	assert.Contains(t, sink.progress, 60)
	for i := 1; i < len(sink.progress); i++ {
		assert.GreaterOrEqual(t, sink.progress[i], sink.progress[i-1], "progress went backwards at %d: %v", i, sink.progress)
	}
	for _, p := range sink.progress[:len(sink.progress)-1] {
		assert.LessOrEqual(t, p, 95)
	}
}

func TestUnreadableVideoFailsJob(t *testing.T) {
	source := &markerSource{probeErr: gateway.ErrUnreadableVideo}
	pub := &recordingPublisher{}
	svc := NewAnalysisService(source, &markerClassifier{}, localStore{}, nil, pub, AnalysisOptions{})

	job := queuedJob()
	err := svc.ExecuteAnalysis(context.Background(), job)
	require.ErrorIs(t, err, gateway.ErrUnreadableVideo)

	snap := job.Snapshot()
	assert.Equal(t, vo.JobStatusError, snap.Status)
	assert.Equal(t, "could not process video", snap.ErrorMessage)
	assert.Equal(t, 10, snap.Progress, "progress frozen where it failed")
	assert.Nil(t, snap.Result)

	require.Len(t, pub.events, 2)
	assert.Equal(t, vo.JobStatusProcessing, pub.events[0].Status)
	assert.Equal(t, vo.JobStatusError, pub.events[1].Status)
}

func TestModelUnavailableFailsAfterExtraction(t *testing.T) {
	classifier := &markerClassifier{readyErr: errors.New("connection refused")}
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(30)}, classifier, localStore{}, nil, nil, AnalysisOptions{})

	job := queuedJob()
	err := svc.ExecuteAnalysis(context.Background(), job)
	require.ErrorIs(t, err, gateway.ErrModelUnavailable)
	assert.Equal(t, vo.JobStatusError, job.Status())
	assert.Equal(t, 60, job.Progress())
	assert.Contains(t, job.ErrorMessage(), "model initialization failed")
	assert.Zero(t, classifier.calls)
}

func TestFrameFaultsBecomeErrorVerdicts(t *testing.T) {
	classifier := &markerClassifier{errorFrom: 5}
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(10), fakeBelow: 2}, classifier, localStore{}, nil, nil, AnalysisOptions{})

	job := queuedJob()
	require.NoError(t, svc.ExecuteAnalysis(context.Background(), job))

	res := job.Result()
	require.NotNil(t, res)
	assert.Equal(t, 10, res.TotalFramesAnalyzed)
	assert.Equal(t, 2, res.FakeFramesCount)
	assert.Equal(t, 5, res.ErrorFramesCount)
	assert.Equal(t, 8, res.RealFramesCount)
	assert.Equal(t, vo.LabelError, res.FrameVerdicts[9].Label)
	assert.Zero(t, res.FrameVerdicts[9].Confidence)
}

func TestPanicIsConvertedToJobError(t *testing.T) {
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(30), panicMsg: "decoder exploded"}, &markerClassifier{}, localStore{}, nil, nil, AnalysisOptions{})

	job := queuedJob()
	err := svc.ExecuteAnalysis(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, vo.JobStatusError, job.Status())
	assert.Contains(t, job.ErrorMessage(), "decoder exploded")
}

func TestZeroFrameVideoCompletes(t *testing.T) {
	svc := NewAnalysisService(&markerSource{meta: vo.VideoMetadata{}}, &markerClassifier{}, localStore{}, nil, nil, AnalysisOptions{})

	job := queuedJob()
	require.NoError(t, svc.ExecuteAnalysis(context.Background(), job))
	res := job.Result()
	require.NotNil(t, res)
	assert.Zero(t, res.TotalFramesAnalyzed)
	assert.Zero(t, res.FakePercentage)
	assert.Equal(t, vo.LabelReal, res.OverallLabel)
}

func TestTerminalJobIsNotReprocessed(t *testing.T) {
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(30)}, &markerClassifier{}, localStore{}, nil, nil, AnalysisOptions{})
	job := queuedJob()
	require.NoError(t, svc.ExecuteAnalysis(context.Background(), job))

	var domainErr *entity.DomainError
	assert.ErrorAs(t, svc.ExecuteAnalysis(context.Background(), job), &domainErr)
	assert.Equal(t, vo.JobStatusCompleted, job.Status())
}

func TestRemoteStoreIsDownloadedAndCleaned(t *testing.T) {
	dir := t.TempDir()
	source := &markerSource{meta: thirtyFPS(30)}
	svc := NewAnalysisService(source, &markerClassifier{}, remoteStore{data: []byte("video-bytes")}, nil, nil, AnalysisOptions{TempDir: dir})

	require.NoError(t, svc.ExecuteAnalysis(context.Background(), queuedJob()))

	assert.Contains(t, source.seenPath, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary download must be removed")
}

func TestRemoteStoreOpenFailure(t *testing.T) {
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(30)}, &markerClassifier{}, remoteStore{openErr: gateway.ErrArtifactNotFound}, nil, nil, AnalysisOptions{TempDir: t.TempDir()})

	job := queuedJob()
	err := svc.ExecuteAnalysis(context.Background(), job)
	assert.ErrorIs(t, err, gateway.ErrUnreadableVideo)
	assert.Equal(t, vo.JobStatusError, job.Status())
}

func TestSinkAndPublisherPanicsDoNotStrandJob(t *testing.T) {
	sink := &panickySink{}
	svc := NewAnalysisService(&markerSource{meta: thirtyFPS(30)}, &markerClassifier{}, localStore{}, sink, panickyPublisher{}, AnalysisOptions{})

	job := queuedJob()
	assert.NotPanics(t, func() {
		assert.NoError(t, svc.ExecuteAnalysis(context.Background(), job))
	})
	assert.Equal(t, vo.JobStatusCompleted, job.Status())
	assert.Equal(t, 100, job.Progress())
	assert.Greater(t, sink.calls, 1)
}

func TestPanicsAfterProcessingStartAreRecovered(t *testing.T) {
	// 上报、事件和抽帧都 panic 时任务仍然进入最终状态
	source := &markerSource{meta: thirtyFPS(30), panicMsg: "decoder exploded"}
	svc := NewAnalysisService(source, &markerClassifier{}, localStore{}, &panickySink{}, panickyPublisher{}, AnalysisOptions{})

	job := queuedJob()
	assert.NotPanics(t, func() {
		assert.Error(t, svc.ExecuteAnalysis(context.Background(), job))
	})
	assert.Equal(t, vo.JobStatusError, job.Status())
	assert.True(t, job.IsFinal())
}
