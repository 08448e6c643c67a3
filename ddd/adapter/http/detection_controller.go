package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"deepfake-service/ddd/application/app"
	"deepfake-service/ddd/application/cqe"
	"deepfake-service/ddd/application/dto"
	"deepfake-service/pkg/errno"
	"deepfake-service/pkg/logger"
	"deepfake-service/pkg/restapi"
)

// multipartOverhead 请求体上限在文件上限之外留给表单边界和字段的余量
const multipartOverhead = 1 << 20

// DetectionController 检测任务HTTP接口
type DetectionController struct {
	detectionApp  app.DetectionApp
	maxUploadSize int64
	cleanupMaxAge time.Duration
}

func NewDetectionController(detectionApp app.DetectionApp, maxUploadSize int64, cleanupMaxAge time.Duration) *DetectionController {
	return &DetectionController{
		detectionApp:  detectionApp,
		maxUploadSize: maxUploadSize,
		cleanupMaxAge: cleanupMaxAge,
	}
}

// Health 健康检查
func (h *DetectionController) Health(c *gin.Context) {
	restapi.Success(c, dto.HealthDto{Status: "healthy", Timestamp: dto.FormatTime(time.Now())})
}

// Upload 上传视频并创建检测任务
func (h *DetectionController) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		if isBodyTooLarge(err) {
			restapi.Failed(c, cqe.PayloadTooLarge(h.maxUploadSize))
			return
		}
		restapi.Failed(c, errno.ErrNoFileProvided)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		restapi.Failed(c, errno.NewBizError(errno.ErrInternalServer, err))
		return
	}
	defer file.Close()

	res, err := h.detectionApp.SubmitVideo(c.Request.Context(), &cqe.SubmitVideoCqe{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	restapi.Success(c, res)
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	// multipart 解析有时只保留错误文本
	return strings.Contains(err.Error(), "request body too large")
}

// GetStatus 查询任务状态
func (h *DetectionController) GetStatus(c *gin.Context) {
	res, err := h.detectionApp.GetJobStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	restapi.Success(c, res)
}

// GetResults 查询检测结果
func (h *DetectionController) GetResults(c *gin.Context) {
	res, err := h.detectionApp.GetJobResult(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	restapi.Success(c, res)
}

// GetVideo 返回原始视频
func (h *DetectionController) GetVideo(c *gin.Context) {
	stream, err := h.detectionApp.OpenJobVideo(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	defer stream.Content.Close()
	c.DataFromReader(http.StatusOK, stream.Size, stream.ContentType, stream.Content, nil)
}

// ListJobs 列出全部任务
func (h *DetectionController) ListJobs(c *gin.Context) {
	res, err := h.detectionApp.ListJobs(c.Request.Context())
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	restapi.Success(c, res)
}

// Cleanup 立即执行一次过期任务清理
func (h *DetectionController) Cleanup(c *gin.Context) {
	evicted, err := h.detectionApp.EvictStaleJobs(c.Request.Context(), h.cleanupMaxAge)
	if err != nil {
		logger.Warnf("cleanup finished with errors evicted=%d error=%v", evicted, err)
	}
	restapi.Success(c, dto.CleanupDto{Message: "Cleanup completed", Evicted: evicted})
}
