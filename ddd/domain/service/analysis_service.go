package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/vo"
	"deepfake-service/pkg/logger"
	"deepfake-service/pkg/metrics"
)

// AnalysisService 检测流水线领域服务
type AnalysisService interface {
	// ExecuteAnalysis 对一个排队中的任务执行 抽帧 → 推理 → 汇总，结束时任务一定处于最终状态
	ExecuteAnalysis(ctx context.Context, job *entity.AnalysisJobEntity) error
}

// AnalysisOptions 流水线参数
type AnalysisOptions struct {
	MaxFrames       int
	TempDir         string
	VideoURLPattern string // 形如 /api/video/%s
}

type analysisServiceImpl struct {
	source     gateway.FrameSource
	classifier gateway.FrameClassifier
	store      gateway.ArtifactStore
	sink       port.ProgressSink
	publisher  gateway.JobEventPublisher
	opts       AnalysisOptions
	tracer     trace.Tracer
}

// NewAnalysisService 创建检测领域服务，sink 和 publisher 可以为nil
func NewAnalysisService(
	source gateway.FrameSource,
	classifier gateway.FrameClassifier,
	store gateway.ArtifactStore,
	sink port.ProgressSink,
	publisher gateway.JobEventPublisher,
	opts AnalysisOptions,
) AnalysisService {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = vo.DefaultMaxFrames
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.VideoURLPattern == "" {
		opts.VideoURLPattern = "/api/video/%s"
	}
	return &analysisServiceImpl{
		source:     source,
		classifier: classifier,
		store:      store,
		sink:       sink,
		publisher:  publisher,
		opts:       opts,
		tracer:     otel.Tracer("deepfake-service/analysis"),
	}
}

// ExecuteAnalysis 执行检测任务
func (s *analysisServiceImpl) ExecuteAnalysis(ctx context.Context, job *entity.AnalysisJobEntity) (err error) {
	if job == nil {
		return errors.New("nil job")
	}
	ctx, span := s.tracer.Start(ctx, "analysis.execute", trace.WithAttributes(attribute.String("job.id", job.JobID())))
	defer span.End()

	if err := job.StartProcessing(); err != nil {
		return err
	}
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	// 进入 processing 之后任何阶段的 panic 都转成任务失败，不影响同一 worker 上的其他任务
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
			s.fail(ctx, span, job, err)
		}
	}()

	s.report(ctx, job)
	s.publish(ctx, job)
	logger.Infof("start analysis job_id=%s filename=%s", job.JobID(), job.SourceFilename())

	result, err := s.analyze(ctx, job)
	if err != nil {
		s.fail(ctx, span, job, err)
		return err
	}

	if err := job.Complete(result); err != nil {
		return err
	}
	metrics.JobsFinishedTotal.WithLabelValues(vo.JobStatusCompleted.String()).Inc()
	metrics.VerdictsTotal.WithLabelValues(result.OverallLabel.String()).Inc()
	s.report(ctx, job)
	s.publish(ctx, job)
	span.SetAttributes(
		attribute.String("verdict", result.OverallLabel.String()),
		attribute.Float64("fake_percentage", result.FakePercentage),
	)

	logger.Info("analysis finished", map[string]interface{}{
		"job_id":          job.JobID(),
		"verdict":         result.OverallLabel,
		"fake_percentage": result.FakePercentage,
		"frames":          result.TotalFramesAnalyzed,
		"error_frames":    result.ErrorFramesCount,
		"processing_time": result.ProcessingTimeSeconds,
	})
	return nil
}

func (s *analysisServiceImpl) analyze(ctx context.Context, job *entity.AnalysisJobEntity) (vo.AggregateResult, error) {
	started := time.Now()

	path, cleanup, err := s.materialize(ctx, job)
	if err != nil {
		return vo.AggregateResult{}, err
	}
	defer cleanup()

	// 抽帧阶段 10 → 60
	stageStart := time.Now()
	probeCtx, probeSpan := s.tracer.Start(ctx, "analysis.probe")
	meta, err := s.source.GetVideoInfo(probeCtx, path)
	probeSpan.End()
	if err != nil {
		return vo.AggregateResult{}, err
	}

	maxFrames := vo.EffectiveMaxFrames(s.opts.MaxFrames, meta.FrameCount)
	extractCtx, extractSpan := s.tracer.Start(ctx, "analysis.extract", trace.WithAttributes(attribute.Int("frames.max", maxFrames)))
	frames, err := s.source.SampleFrames(extractCtx, path, meta, maxFrames, func(p int) {
		if job.UpdateProgress(vo.ExtractionProgress(p)) {
			s.report(ctx, job)
		}
	})
	extractSpan.SetAttributes(attribute.Int("frames.sampled", len(frames)))
	extractSpan.End()
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return vo.AggregateResult{}, err
	}
	if job.UpdateProgress(vo.ProgressExtracted) {
		s.report(ctx, job)
	}
	logger.Infof("frames sampled job_id=%s frames=%d frame_count=%d fps=%.2f", job.JobID(), len(frames), meta.FrameCount, meta.FPS)

	// 推理阶段 60 → 95
	if err := s.classifier.Ready(ctx); err != nil {
		if !errors.Is(err, gateway.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", gateway.ErrModelUnavailable, err)
		}
		return vo.AggregateResult{}, err
	}

	stageStart = time.Now()
	inferCtx, inferSpan := s.tracer.Start(ctx, "analysis.inference", trace.WithAttributes(attribute.Int("frames", len(frames))))
	verdicts := make([]vo.FrameVerdict, 0, len(frames))
	for i, f := range frames {
		if job.UpdateProgress(vo.InferenceProgress(i, len(frames))) {
			s.report(ctx, job)
		}
		pred := s.classifier.Classify(inferCtx, f.Frame)
		metrics.FramesClassifiedTotal.WithLabelValues(pred.Label.String()).Inc()
		// 判定序号是抽样顺序中的位置，原视频帧号只用于时间戳
		verdicts = append(verdicts, vo.NewFrameVerdict(i, f.TimestampSeconds, pred))
	}
	inferSpan.End()
	metrics.StageDuration.WithLabelValues("inference").Observe(time.Since(stageStart).Seconds())

	result := vo.Aggregate(verdicts, meta, time.Since(started))
	result.VideoURL = fmt.Sprintf(s.opts.VideoURLPattern, job.JobID())
	return result, nil
}

// materialize 返回可供解码器读取的本地路径，远端存储的文件先下载到临时目录
func (s *analysisServiceImpl) materialize(ctx context.Context, job *entity.AnalysisJobEntity) (string, func(), error) {
	noop := func() {}
	stored := job.StoredPath()
	if stored == "" {
		return "", noop, fmt.Errorf("%w: no stored video", gateway.ErrUnreadableVideo)
	}
	if resolver, ok := s.store.(gateway.LocalFileResolver); ok {
		if local, ok := resolver.LocalPath(stored); ok {
			return local, noop, nil
		}
	}

	rc, _, err := s.store.Open(ctx, stored)
	if err != nil {
		return "", noop, fmt.Errorf("%w: %v", gateway.ErrUnreadableVideo, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
		return "", noop, fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.opts.TempDir, "analysis-"+job.JobID()+"-*"+filepath.Ext(stored))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warnf("failed to clean temp video path=%s error=%v", tmp.Name(), err)
		}
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", noop, fmt.Errorf("download video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

func (s *analysisServiceImpl) fail(ctx context.Context, span trace.Span, job *entity.AnalysisJobEntity, cause error) {
	if err := job.Fail(cause.Error()); err != nil {
		logger.Warnf("cannot mark job failed job_id=%s error=%v", job.JobID(), err)
		return
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	metrics.JobsFinishedTotal.WithLabelValues(vo.JobStatusError.String()).Inc()
	s.report(ctx, job)
	s.publish(ctx, job)
	logger.Error("analysis failed", map[string]interface{}{
		"job_id":   job.JobID(),
		"progress": job.Progress(),
		"error":    cause.Error(),
	})
}

func (s *analysisServiceImpl) report(ctx context.Context, job *entity.AnalysisJobEntity) {
	if s.sink == nil {
		return
	}
	defer guard("save progress", job.JobID())
	if err := s.sink.SaveProgress(ctx, job); err != nil {
		logger.Warnf("save progress failed job_id=%s error=%v", job.JobID(), err)
	}
}

func (s *analysisServiceImpl) publish(ctx context.Context, job *entity.AnalysisJobEntity) {
	if s.publisher == nil {
		return
	}
	defer guard("publish job event", job.JobID())
	snap := job.Snapshot()
	event := gateway.JobEvent{
		JobID:      snap.JobID,
		Status:     snap.Status,
		Progress:   snap.Progress,
		Filename:   snap.SourceFilename,
		Error:      snap.ErrorMessage,
		OccurredAt: time.Now(),
	}
	if snap.Result != nil {
		event.OverallLabel = snap.Result.OverallLabel
		event.FakePercentage = snap.Result.FakePercentage
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warnf("publish job event failed job_id=%s status=%s error=%v", snap.JobID, snap.Status, err)
	}
}

// guard 镜像和事件只是旁路输出，它们的 panic 记日志后丢弃，不改变任务状态
func guard(action, jobID string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panicked job_id=%s panic=%v", action, jobID, r)
	}
}
