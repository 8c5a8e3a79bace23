package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Log  *zap.Logger
	once sync.Once
)

// Init 初始化全局日志记录器：控制台彩色输出 + JSON文件滚动
func Init(logDir string, debug bool) {
	once.Do(func() {
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			panic(err)
		}

		// 控制台输出（人类可读）
		consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stdout),
			consoleLevel(debug),
		)

		// 文件输出（JSON + 滚动）
		fileEncoderConfig := zap.NewProductionEncoderConfig()
		fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		fileWriteSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, "mailfx.json"),
			MaxSize:    10, // MB
			MaxBackups: 30,
			MaxAge:     30, // 天
			Compress:   true,
		})
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig),
			fileWriteSyncer,
			zapcore.InfoLevel,
		)

		Log = zap.New(
			zapcore.NewTee(consoleCore, fileCore),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		zap.ReplaceGlobals(Log)
	})
}

func consoleLevel(debug bool) zapcore.LevelEnabler {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Module 返回带 module 字段的子logger
func Module(name string) *zap.Logger {
	if Log == nil {
		Init("logs", true)
	}
	return Log.With(zap.String("module", name))
}
