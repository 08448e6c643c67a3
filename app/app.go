package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	grpcadapter "deepfake-service/ddd/adapter/grpc"
	httpadapter "deepfake-service/ddd/adapter/http"
	app "deepfake-service/ddd/application/app"
	"deepfake-service/ddd/domain/gateway"
	"deepfake-service/ddd/domain/port"
	"deepfake-service/ddd/domain/service"
	"deepfake-service/ddd/infrastructure/classifier"
	"deepfake-service/ddd/infrastructure/event"
	"deepfake-service/ddd/infrastructure/executor"
	"deepfake-service/ddd/infrastructure/persistence"
	"deepfake-service/ddd/infrastructure/progress"
	"deepfake-service/ddd/infrastructure/queue"
	"deepfake-service/ddd/infrastructure/storage"
	"deepfake-service/ddd/infrastructure/worker"
	"deepfake-service/internal/resource"
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
	"deepfake-service/pkg/observability"
	"deepfake-service/pkg/registry"
	"deepfake-service/pkg/task"
)

// Application 组装好的服务进程
type Application struct {
	cfg            *config.Config
	resources      *resource.Set
	tasks          *task.Manager
	detection      app.DetectionApp
	engine         *gin.Engine
	server         *http.Server
	listener       net.Listener
	serveDone      chan struct{}
	tracerShutdown observability.ShutdownFunc
}

func Run() {
	fmt.Println("[STARTUP] Starting deepfake detection service...")

	// .env 只用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("[WARN] Failed to load .env: %v\n", err)
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})

	// 检查 FFmpeg 是否可用，直接在启动阶段失败
	for _, bin := range []string{cfg.Analysis.FFmpegPath, cfg.Analysis.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("%s binary not found, please install or set analysis.ffmpeg_path/ffprobe_path error=%s", bin, err.Error()))
		}
	}

	ctx := context.Background()
	application, err := Build(ctx, cfg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to assemble service error=%v", err))
	}
	if err := application.Start(ctx); err != nil {
		_ = application.Shutdown(ctx)
		logger.Fatal(fmt.Sprintf("Failed to start service error=%v", err))
	}
	logger.Infof("HTTP server started addr=%s health_url=http://%s/api/health", application.Addr(), application.Addr())

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownGracePeriod+5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown finished with errors error=%v", err)
	}

	logger.Infof("Server exited safely")
	logService.Close()
	fmt.Println("[SHUTDOWN] Deepfake detection service exited safely")
}

// Build 按配置创建全部资源和组件，不启动任何监听
func Build(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{cfg: cfg, resources: &resource.Set{}, tasks: task.NewManager()}

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.tracerShutdown = shutdownTracer

	store, err := a.openArtifactStore(ctx)
	if err != nil {
		_ = a.resources.CloseAll()
		return nil, err
	}

	var sinks []port.ProgressSink
	if cfg.Redis.Enabled {
		redisRes, err := resource.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			_ = a.resources.CloseAll()
			return nil, err
		}
		a.resources.Add(redisRes)
		sinks = append(sinks, progress.NewRedisSink(redisRes.Client(), cfg.Redis.KeyPrefix, cfg.Cleanup.MaxAge))
	}
	var sink port.ProgressSink
	if len(sinks) > 0 {
		sink = progress.NewMultiSink(sinks...)
	}

	var publisher gateway.JobEventPublisher
	if cfg.Kafka.Enabled {
		kafkaRes := resource.OpenKafka(cfg.Kafka)
		a.resources.Add(kafkaRes)
		publisher = event.NewKafkaJobPublisher(kafkaRes.Client(), cfg.Kafka.Topics.JobEvents)
	}

	jobRepo := persistence.NewMemoryJobRepository()
	taskQueue := queue.NewMemoryTaskQueue(cfg.Worker.QueueCapacity)

	analysis := service.NewAnalysisService(
		executor.NewFFmpegFrameSource(cfg.Analysis),
		classifier.NewHTTPClassifier(cfg.Classifier),
		store,
		sink,
		publisher,
		service.AnalysisOptions{MaxFrames: cfg.Analysis.MaxFrames, TempDir: cfg.Analysis.TempDir},
	)

	opts := []app.Option{}
	if sink != nil {
		opts = append(opts, app.WithProgressSink(sink))
	}
	a.detection = app.NewDetectionApp(jobRepo, store, taskQueue, app.UploadPolicy{
		MaxSize:           cfg.Upload.MaxSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	}, opts...)

	analysisWorker := worker.NewAnalysisWorker(cfg.Worker.WorkerID, taskQueue, analysis, jobRepo,
		cfg.Worker.MaxConcurrentTasks, cfg.Worker.ShutdownGracePeriod)
	worker.RegisterBackgroundTasks(a.tasks, cfg, taskQueue, analysisWorker, a.detection)

	if cfg.GRPCServer.Enabled {
		a.tasks.Register(grpcadapter.NewHealthServer(cfg.GRPCServer.GetGRPCAddr()))
	}
	if cfg.ServiceRegistry.Enabled {
		reg, err := registry.NewServiceRegistry(cfg.Etcd, cfg.ServiceRegistry, advertiseAddr(cfg))
		if err != nil {
			_ = a.resources.CloseAll()
			return nil, err
		}
		a.tasks.Register(reg)
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	a.engine = httpadapter.NewRouter(a.detection, httpadapter.RouterOptions{
		MaxUploadSize:  cfg.Upload.MaxSize,
		CleanupMaxAge:  cfg.Cleanup.MaxAge,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}).NewEngine()

	a.server = &http.Server{
		Handler:      a.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a, nil
}

func (a *Application) openArtifactStore(ctx context.Context) (gateway.ArtifactStore, error) {
	switch a.cfg.Storage.Backend {
	case "minio":
		minioRes, err := resource.OpenMinio(ctx, a.cfg.Minio)
		if err != nil {
			return nil, err
		}
		a.resources.Add(minioRes)
		return storage.NewMinioStorage(minioRes), nil
	case "local", "":
		return storage.NewLocalStorage(a.cfg.Storage.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// Handler HTTP处理器
func (a *Application) Handler() http.Handler { return a.engine }

// DetectionApp 应用服务
func (a *Application) DetectionApp() app.DetectionApp { return a.detection }

// Addr 实际监听地址，启动前为空
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Start 启动后台任务和HTTP服务
func (a *Application) Start(ctx context.Context) error {
	if err := a.tasks.StartAll(ctx); err != nil {
		return err
	}
	lis, err := net.Listen("tcp", a.cfg.Server.GetHTTPAddr())
	if err != nil {
		return fmt.Errorf("listen http %s: %w", a.cfg.Server.GetHTTPAddr(), err)
	}
	a.listener = lis
	a.serveDone = make(chan struct{})
	go func() {
		defer close(a.serveDone)
		if err := a.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server stopped with error: %v", err)
		}
	}()
	return nil
}

// Shutdown 先停止接收请求，再停后台任务（等待进行中的检测），最后释放资源
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.listener != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		<-a.serveDone
	}
	if err := a.tasks.StopAll(); err != nil {
		errs = append(errs, err)
	}
	if err := a.resources.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func advertiseAddr(cfg *config.Config) string {
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host = cfg.Server.Host
	}
	if host == "" || host == "0.0.0.0" {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
