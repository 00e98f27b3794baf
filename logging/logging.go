// Package logging — общий zap-логгер и именованные дочерние логгеры
// по подсистемам (api, bot, payment, ai, db).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base *zap.Logger = zap.NewNop()

	API     = base
	Bot     = base
	Payment = base
	AI      = base
	DB      = base
)

// Init настраивает продакшен-логгер. debug=true включает уровень Debug.
func Init(debug bool) error {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Development = true
	}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}

	base = logger
	API = base.Named("api")
	Bot = base.Named("bot")
	Payment = base.Named("payment")
	AI = base.Named("ai")
	DB = base.Named("db")
	return nil
}

// L возвращает корневой логгер.
func L() *zap.Logger { return base }

// Sync сбрасывает буферы (вызывать в defer из main).
func Sync() { _ = base.Sync() }
