// utils/logger.go
package utils

import (
	"os"

	"github.com/Conversly/whatsapp-faq-bot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zlog is a no-op until InitLogger runs, so tests and tools can log freely.
var Zlog = zap.NewNop()

func InitLogger(cfg *config.Config) func() {
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	var lvl zapcore.Level
	_ = lvl.Set(logLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	stdoutCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		lvl,
	)

	Zlog = zap.New(stdoutCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", cfg.ServiceName), zap.String("environment", cfg.Environment))

	return func() { _ = Zlog.Sync() }
}

// MaskPhone keeps the last four digits of an end-user address for logs.
func MaskPhone(waID string) string {
	if len(waID) <= 4 {
		return waID
	}
	return "***" + waID[len(waID)-4:]
}
