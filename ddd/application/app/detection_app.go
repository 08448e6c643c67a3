package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"deepfake-service/ddd/application/cqe"
	"deepfake-service/ddd/application/dto"
	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/repo"
	"deepfake-service/ddd/infrastructure/queue"
	"deepfake-service/ddd/infrastructure/storage"
	"deepfake-service/pkg/errno"
	"deepfake-service/pkg/logger"
	"deepfake-service/pkg/metrics"
)

// DetectionApp 检测任务应用服务
type DetectionApp interface {
	// SubmitVideo 校验并保存上传的视频，创建排队任务后立即返回
	SubmitVideo(ctx context.Context, req *cqe.SubmitVideoCqe) (*dto.SubmitVideoDto, error)
	// GetJobStatus 获取任务状态
	GetJobStatus(ctx context.Context, jobID string) (*dto.JobStatusDto, error)
	// GetJobResult 获取已完成任务的结果
	GetJobResult(ctx context.Context, jobID string) (*dto.JobResultDto, error)
	// OpenJobVideo 打开任务对应的原始视频
	OpenJobVideo(ctx context.Context, jobID string) (*VideoStream, error)
	// ListJobs 按创建时间列出全部任务
	ListJobs(ctx context.Context) (*dto.JobListDto, error)
	// EvictStaleJobs 删除超过 maxAge 的已结束任务及其视频
	EvictStaleJobs(ctx context.Context, maxAge time.Duration) (int, error)
}

// VideoStream 视频内容，调用方负责关闭
type VideoStream struct {
	Content     io.ReadCloser
	Size        int64
	ContentType string
	Filename    string
}

// UploadPolicy 上传限制
type UploadPolicy struct {
	MaxSize           int64
	AllowedExtensions []string
}

// Option 可选参数
type Option func(*detectionAppImpl)

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(a *detectionAppImpl) { a.now = now }
}

// WithIDGenerator 替换任务ID生成方式
func WithIDGenerator(gen func() string) Option {
	return func(a *detectionAppImpl) { a.newID = gen }
}

// WithProgressSink 任务创建时同步写入进度镜像
func WithProgressSink(sink port.ProgressSink) Option {
	return func(a *detectionAppImpl) { a.sink = sink }
}

type detectionAppImpl struct {
	jobRepo   repo.AnalysisJobRepository
	store     gateway.ArtifactStore
	taskQueue queue.TaskQueue
	policy    UploadPolicy
	sink      port.ProgressSink
	now       func() time.Time
	newID     func() string
}

func NewDetectionApp(jobRepo repo.AnalysisJobRepository, store gateway.ArtifactStore, q queue.TaskQueue, policy UploadPolicy, opts ...Option) DetectionApp {
	a := &detectionAppImpl{
		jobRepo:   jobRepo,
		store:     store,
		taskQueue: q,
		policy:    policy,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *detectionAppImpl) SubmitVideo(ctx context.Context, req *cqe.SubmitVideoCqe) (*dto.SubmitVideoDto, error) {
	// 验证请求参数
	if err := req.Validate(a.policy.MaxSize, a.policy.AllowedExtensions); err != nil {
		e, _ := errno.Decode(err)
		metrics.UploadsRejectedTotal.WithLabelValues(rejectReason(e)).Inc()
		return nil, err
	}

	jobID := a.newID()
	storedName := jobID + "_" + cqe.SanitizeFilename(req.Filename)
	contentType := storage.ContentTypeFor(req.Filename)

	path, err := a.store.Save(ctx, storedName, req.Content, req.Size, contentType)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrStorage, err)
	}

	job := entity.NewAnalysisJobEntity(jobID, req.Filename, path, a.now())
	if err := a.jobRepo.CreateAnalysisJob(ctx, job); err != nil {
		a.discardUpload(ctx, path)
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}

	// queued 快照必须先于入队写出，否则可能覆盖 worker 已写入的 processing
	if a.sink != nil {
		if err := a.sink.SaveProgress(ctx, job); err != nil {
			logger.Warnf("save progress failed job_id=%s error=%v", jobID, err)
		}
	}

	// 将任务加入队列，触发异步处理
	if err := a.taskQueue.Enqueue(ctx, jobID); err != nil {
		logger.Errorf("enqueue job failed job_id=%s error=%v", jobID, err)
		_ = a.jobRepo.DeleteAnalysisJob(ctx, jobID)
		a.discardUpload(ctx, path)
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			metrics.UploadsRejectedTotal.WithLabelValues("queue_full").Inc()
			return nil, errno.ErrQueueFull
		}
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}

	metrics.JobsSubmittedTotal.Inc()

	size := "unknown"
	if req.Size >= 0 {
		size = humanize.IBytes(uint64(req.Size))
	}
	logger.Info("video queued for analysis", map[string]interface{}{
		"job_id":   jobID,
		"filename": req.Filename,
		"size":     size,
	})

	return &dto.SubmitVideoDto{
		JobID:   jobID,
		Status:  job.Status().String(),
		Message: "Video uploaded successfully and queued for processing",
	}, nil
}

func (a *detectionAppImpl) GetJobStatus(ctx context.Context, jobID string) (*dto.JobStatusDto, error) {
	job, err := a.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return dto.NewJobStatusDto(job.Snapshot()), nil
}

func (a *detectionAppImpl) GetJobResult(ctx context.Context, jobID string) (*dto.JobResultDto, error) {
	job, err := a.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	if snap.Result == nil {
		return nil, errno.ErrJobNotReady
	}
	return dto.NewJobResultDto(snap), nil
}

func (a *detectionAppImpl) OpenJobVideo(ctx context.Context, jobID string) (*VideoStream, error) {
	job, err := a.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	path := job.StoredPath()
	if path == "" {
		return nil, errno.ErrVideoNotFound
	}
	rc, size, err := a.store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, gateway.ErrArtifactNotFound) {
			return nil, errno.ErrVideoNotFound
		}
		return nil, errno.NewBizError(errno.ErrStorage, err)
	}
	return &VideoStream{
		Content:     rc,
		Size:        size,
		ContentType: storage.ContentTypeFor(job.SourceFilename()),
		Filename:    job.SourceFilename(),
	}, nil
}

func (a *detectionAppImpl) ListJobs(ctx context.Context) (*dto.JobListDto, error) {
	jobs, err := a.jobRepo.ListAnalysisJobs(ctx)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	list := &dto.JobListDto{Jobs: make([]dto.JobSummaryDto, 0, len(jobs))}
	for _, j := range jobs {
		list.Jobs = append(list.Jobs, dto.NewJobSummaryDto(j.Snapshot()))
	}
	return list, nil
}

// EvictStaleJobs 只清理已结束、超过保留时间且视频仍存在的任务，处理中的任务不受影响
func (a *detectionAppImpl) EvictStaleJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	jobs, err := a.jobRepo.ListAnalysisJobs(ctx)
	if err != nil {
		return 0, err
	}
	now := a.now()
	evicted := 0
	var errs []error
	for _, job := range jobs {
		if !job.IsFinal() || !job.IsOlderThan(now, maxAge) {
			continue
		}
		path := job.StoredPath()
		if path == "" {
			continue
		}
		exists, err := a.store.Exists(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !exists {
			continue
		}
		if err := a.store.Delete(ctx, path); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := a.jobRepo.DeleteAnalysisJob(ctx, job.JobID()); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
		logger.Infof("evicted stale job job_id=%s status=%s", job.JobID(), job.Status())
	}
	metrics.JobsEvictedTotal.Add(float64(evicted))
	return evicted, errors.Join(errs...)
}

func (a *detectionAppImpl) findJob(ctx context.Context, jobID string) (*entity.AnalysisJobEntity, error) {
	if jobID == "" {
		return nil, errno.ErrJobIDRequired
	}
	job, err := a.jobRepo.GetAnalysisJob(ctx, jobID)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	if job == nil {
		return nil, errno.ErrJobNotFound
	}
	return job, nil
}

func (a *detectionAppImpl) discardUpload(ctx context.Context, path string) {
	if err := a.store.Delete(ctx, path); err != nil {
		logger.Warnf("discard upload failed path=%s error=%v", path, err)
	}
}

func rejectReason(e *errno.Errno) string {
	switch e {
	case errno.ErrNoFileProvided, errno.ErrNoFileSelected:
		return "no_file"
	case errno.ErrUnsupportedFormat:
		return "unsupported_format"
	case errno.ErrPayloadTooLarge:
		return "too_large"
	default:
		return "invalid"
	}
}
