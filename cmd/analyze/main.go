// analyze 在本地对单个视频执行完整的检测流水线并输出JSON结果，不启动HTTP服务
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"deepfake-service/ddd/application/dto"
	"deepfake-service/ddd/domain/entity"
	"deepfake-service/ddd/domain/service"
	"deepfake-service/ddd/infrastructure/classifier"
	"deepfake-service/ddd/infrastructure/executor"
	"deepfake-service/ddd/infrastructure/storage"
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional config file, defaults are used when empty")
		maxFrames  = flag.Int("max-frames", 0, "maximum number of frames to sample (0 keeps config value)")
		endpoint   = flag.String("classifier", "", "classifier base URL (empty keeps config value)")
		pretty     = flag.Bool("pretty", true, "indent JSON output")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <video>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *maxFrames > 0 {
		cfg.Analysis.MaxFrames = *maxFrames
	}
	if *endpoint != "" {
		cfg.Classifier.Endpoint = *endpoint
	}
	// 结果写 stdout，日志写 stderr
	cfg.Log.Output = "stderr"
	logger.SetGlobalLogger(logger.NewLogger(cfg))

	if err := run(cfg, flag.Arg(0), *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, videoPath string, pretty bool) error {
	abs, err := filepath.Abs(videoPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	store, err := storage.NewLocalStorage(filepath.Dir(abs))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysis := service.NewAnalysisService(
		executor.NewFFmpegFrameSource(cfg.Analysis),
		classifier.NewHTTPClassifier(cfg.Classifier),
		store, nil, nil,
		service.AnalysisOptions{MaxFrames: cfg.Analysis.MaxFrames, TempDir: cfg.Analysis.TempDir},
	)
	job := entity.NewAnalysisJobEntity(uuid.NewString(), filepath.Base(abs), abs, time.Now())
	// 任务失败时结果里带有错误信息，仍然输出
	_ = analysis.ExecuteAnalysis(ctx, job)

	snap := job.Snapshot()
	var out interface{} = dto.NewJobStatusDto(snap)
	if snap.Result != nil {
		out = dto.NewJobResultDto(snap)
	}
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return err
	}
	if snap.ErrorMessage != "" {
		return fmt.Errorf("job %s failed: %s", snap.JobID, snap.ErrorMessage)
	}
	return nil
}
