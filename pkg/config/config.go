package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Log             LogConfig             `mapstructure:"log"`
	Upload          UploadConfig          `mapstructure:"upload"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Analysis        AnalysisConfig        `mapstructure:"analysis"`
	Classifier      ClassifierConfig      `mapstructure:"classifier"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Cleanup         CleanupConfig         `mapstructure:"cleanup"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Tracing         TracingConfig         `mapstructure:"tracing"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// StorageConfig 视频文件存储配置，backend 取值 local / minio
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	UploadDir string `mapstructure:"upload_dir"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// AnalysisConfig 抽帧与分析配置
type AnalysisConfig struct {
	MaxFrames    int           `mapstructure:"max_frames"`
	FrameWidth   int           `mapstructure:"frame_width"`
	FrameHeight  int           `mapstructure:"frame_height"`
	TempDir      string        `mapstructure:"temp_dir"`
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
	FFprobePath  string        `mapstructure:"ffprobe_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// ClassifierConfig 模型服务配置
type ClassifierConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	PredictPath string        `mapstructure:"predict_path"`
	HealthPath  string        `mapstructure:"health_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	JPEGQuality int           `mapstructure:"jpeg_quality"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	WorkerID            string        `mapstructure:"worker_id"`
	MaxConcurrentTasks  int           `mapstructure:"max_concurrent_tasks"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// CleanupConfig 过期任务清理配置
type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	ClientID         string            `mapstructure:"client_id"`
	Topics           KafkaTopicsConfig `mapstructure:"topics"`
}

type KafkaTopicsConfig struct {
	JobEvents string `mapstructure:"job_events"`
}

// EtcdConfig etcd连接配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// TracingConfig OpenTelemetry 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置，未初始化时返回nil
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// 设置环境变量前缀
	v.SetEnvPrefix("DEEPFAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	config.normalize()

	return &config, nil
}

// Default 返回不依赖配置文件的默认配置，供命令行工具和测试使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	config.normalize()
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("upload.max_size", 100*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"})
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("analysis.max_frames", 100)
	v.SetDefault("analysis.frame_width", 224)
	v.SetDefault("analysis.frame_height", 224)
	v.SetDefault("classifier.endpoint", "http://localhost:8501")
	v.SetDefault("classifier.predict_path", "/v1/predict")
	v.SetDefault("classifier.health_path", "/health")
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.interval", 10*time.Minute)
	v.SetDefault("cleanup.max_age", time.Hour)
	v.SetDefault("kafka.client_id", "deepfake-service")
	v.SetDefault("kafka.topics.job_events", "deepfake.job.events")
	v.SetDefault("service_registry.service_name", "deepfake-service")
	v.SetDefault("grpc_server.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 5000
	}
	if c.Upload.MaxSize <= 0 {
		c.Upload.MaxSize = 100 * 1024 * 1024
	}
	for i, ext := range c.Upload.AllowedExtensions {
		c.Upload.AllowedExtensions[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}

	// 抽帧默认值
	if c.Analysis.MaxFrames <= 0 {
		c.Analysis.MaxFrames = 100
	}
	if c.Analysis.TempDir == "" {
		c.Analysis.TempDir = "/tmp/deepfake"
	}
	if c.Analysis.FFmpegPath == "" {
		c.Analysis.FFmpegPath = "ffmpeg"
	}
	if c.Analysis.FFprobePath == "" {
		c.Analysis.FFprobePath = "ffprobe"
	}
	if c.Analysis.ProbeTimeout <= 0 {
		c.Analysis.ProbeTimeout = 30 * time.Second
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 10 * time.Second
	}
	if c.Classifier.JPEGQuality <= 0 || c.Classifier.JPEGQuality > 100 {
		c.Classifier.JPEGQuality = 90
	}

	// Worker相关默认值
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "analysis-worker"
	}
	if c.Worker.MaxConcurrentTasks <= 0 {
		c.Worker.MaxConcurrentTasks = 2
	}
	// 0 表示排队不限长度
	if c.Worker.QueueCapacity < 0 {
		c.Worker.QueueCapacity = 0
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}
	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = 10 * time.Minute
	}
	if c.Cleanup.MaxAge <= 0 {
		c.Cleanup.MaxAge = time.Hour
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "deepfake:job:"
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "deepfake-service"
	}
	if c.Kafka.Topics.JobEvents == "" {
		c.Kafka.Topics.JobEvents = "deepfake.job.events"
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9095
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "deepfake-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "deepfake-service"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetHTTPAddr 获取HTTP监听地址
func (c *ServerConfig) GetHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetGRPCAddr 获取gRPC监听地址
func (c *GRPCServerConfig) GetGRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
