package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志实例
var Logger = logrus.StandardLogger()

var (
	mu          sync.Mutex
	savedConfig Config
	currentFile string
	currentSlug string
)

// Config 日志配置
type Config struct {
	Level      string // debug / info / warn / error
	OutputFile string // 为空则只输出到控制台
	MaxSize    int    // 单文件最大 MB
	MaxBackups int    // 保留旧文件数
	MaxAge     int    // 保留天数
	Compress   bool

	// RotateByWindow 按交易窗口切分日志：每个窗口一个文件，
	// 文件名取市场 slug（btc-updown-15m-1765985400.log）。
	RotateByWindow bool
}

// Init 初始化日志系统。所有经 logrus 创建的 entry（含 WithField）
// 都会写入同一输出。
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()
	savedConfig = config
	return reopen(config.OutputFile)
}

// reopen 重建输出目标。调用方持有 mu。
func reopen(path string) error {
	level, err := logrus.ParseLevel(savedConfig.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	writers := []io.Writer{os.Stdout}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    savedConfig.MaxSize,
			MaxBackups: savedConfig.MaxBackups,
			MaxAge:     savedConfig.MaxAge,
			Compress:   savedConfig.Compress,
		})
		currentFile = path
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	})
	return nil
}

// RotateToWindow 窗口翻转时切换日志文件（RotateByWindow 开启时生效）。
// slug 作为文件名，目录沿用 OutputFile 的目录。
func RotateToWindow(slug string) error {
	mu.Lock()
	defer mu.Unlock()

	if !savedConfig.RotateByWindow || savedConfig.OutputFile == "" || slug == currentSlug {
		return nil
	}
	currentSlug = slug

	dir := filepath.Dir(savedConfig.OutputFile)
	ext := filepath.Ext(savedConfig.OutputFile)
	if ext == "" {
		ext = ".log"
	}
	path := filepath.Join(dir, slug+ext)
	if path == currentFile {
		return nil
	}
	return reopen(path)
}

// GetCurrentLogFile 当前日志文件路径
func GetCurrentLogFile() string {
	mu.Lock()
	defer mu.Unlock()
	return currentFile
}

func Debug(args ...interface{})                 { logrus.Debug(args...) }
func Debugf(format string, args ...interface{}) { logrus.Debugf(format, args...) }
func Info(args ...interface{})                  { logrus.Info(args...) }
func Infof(format string, args ...interface{})  { logrus.Infof(format, args...) }
func Warn(args ...interface{})                  { logrus.Warn(args...) }
func Warnf(format string, args ...interface{})  { logrus.Warnf(format, args...) }
func Error(args ...interface{})                 { logrus.Error(args...) }
func Errorf(format string, args ...interface{}) { logrus.Errorf(format, args...) }

func WithField(key string, value interface{}) *logrus.Entry { return logrus.WithField(key, value) }
func WithFields(fields logrus.Fields) *logrus.Entry         { return logrus.WithFields(fields) }
