package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"deepfake-service/pkg/config"
)

// Logger 基于logrus的日志服务
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg == nil {
		return &Logger{entry: l}
	}

	if level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level)); err == nil {
		l.SetLevel(level)
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	}

	out := &Logger{entry: l}
	switch strings.ToLower(cfg.Log.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.Log.Filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] open log file failed, fallback to stdout: %v\n", err)
			break
		}
		out.file = file
		if strings.EqualFold(cfg.Log.Output, "both") {
			l.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			l.SetOutput(file)
		}
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		l.SetOutput(os.Stdout)
	}
	return out
}

func openLogFile(name string) (*os.File, error) {
	if strings.TrimSpace(name) == "" {
		name = "logs/deepfake-service.log"
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// SetGlobalLogger 设置全局日志服务
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func current() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(nil)
	}
	return globalLogger
}

// Raw 返回底层logrus实例
func (l *Logger) Raw() *logrus.Logger {
	return l.entry
}

// SetOutput 修改输出目标，测试中用于捕获日志
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.SetOutput(w)
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func withFields(l *Logger, fields []map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(l.entry)
	for _, f := range fields {
		if len(f) > 0 {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	return entry
}

func Debug(msg string, fields ...map[string]interface{}) {
	withFields(current(), fields).Debug(msg)
}

func Info(msg string, fields ...map[string]interface{}) {
	withFields(current(), fields).Info(msg)
}

func Warn(msg string, fields ...map[string]interface{}) {
	withFields(current(), fields).Warn(msg)
}

func Error(msg string, fields ...map[string]interface{}) {
	withFields(current(), fields).Error(msg)
}

// Fatal 记录日志后退出进程
func Fatal(msg string, fields ...map[string]interface{}) {
	withFields(current(), fields).Fatal(msg)
}

func Debugf(format string, args ...interface{}) { current().entry.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().entry.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().entry.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().entry.Errorf(format, args...) }
