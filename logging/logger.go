package logging

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger；InitLogger 之前丢弃所有输出，测试无需初始化
var Log = zap.NewNop().Sugar()

// 滚动策略：单文件 10MB，保留 3 个备份，最长 7 天
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 7
)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.StacktraceKey = "stack"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// sink 空路径写 stderr，否则写入 lumberjack 滚动文件
func sink(filePath string) zapcore.WriteSyncer {
	if filePath == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	})
}

// InitLogger 按级别（debug/info/warn/error）初始化全局日志
func InitLogger(filePath, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return eris.Wrapf(err, "log level %q", level)
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), sink(filePath), lvl)
	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
	return nil
}

// Named 子模块日志，如 Named("room")
func Named(name string) *zap.SugaredLogger { return Log.Named(name) }

// SyncLogger 刷新缓冲
func SyncLogger() { _ = Log.Sync() }
