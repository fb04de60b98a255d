package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the console logger and, if logFile is set, tees JSON
// logs into a rotating file
func newLogger(debug bool, logFile string) (*zap.Logger, error) {

	cfg := zap.NewProductionConfig()

	if debug {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()

	if err != nil {
		return nil, err
	}

	if logFile == "" {
		return logger, nil
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,
		MaxBackups: 3,
		Compress:   true,
	})

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, cfg.Level)

	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}
