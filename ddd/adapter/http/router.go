package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deepfake-service/ddd/application/app"
	"deepfake-service/pkg/middleware"
)

// RouterOptions 路由参数
type RouterOptions struct {
	MaxUploadSize  int64
	CleanupMaxAge  time.Duration
	MetricsEnabled bool
	MetricsPath    string
}

// Router 路由配置
type Router struct {
	detectionApp app.DetectionApp
	opts         RouterOptions
}

// NewRouter 创建路由配置
func NewRouter(detectionApp app.DetectionApp, opts RouterOptions) *Router {
	if opts.CleanupMaxAge <= 0 {
		opts.CleanupMaxAge = time.Hour
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Router{detectionApp: detectionApp, opts: opts}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	controller := NewDetectionController(r.detectionApp, r.opts.MaxUploadSize, r.opts.CleanupMaxAge)

	api := engine.Group("/api")
	{
		api.GET("/health", controller.Health)
		api.POST("/upload", controller.Upload)
		api.GET("/status/:job_id", controller.GetStatus)
		api.GET("/results/:job_id", controller.GetResults)
		api.GET("/video/:job_id", controller.GetVideo)
		api.GET("/jobs", controller.ListJobs)
		api.POST("/cleanup", controller.Cleanup)
	}

	if r.opts.MetricsEnabled {
		engine.GET(r.opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(middleware.AccessLogMiddleware())
	engine.Use(gin.Recovery())
}

// NewEngine 创建已挂好中间件和路由的 gin 引擎
func (r *Router) NewEngine() *gin.Engine {
	engine := gin.New()
	r.SetupMiddleware(engine)
	r.SetupRoutes(engine)
	return engine
}
