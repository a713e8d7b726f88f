package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "request_id"
	PersonaKey   ctxKey = "persona"
	ClientIDKey  ctxKey = "client_id"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// UseAgentOutput switches the process logger to the format used by agent
// child processes: "<time> - <LEVEL> - <message>" on stderr. The relay drops
// any line carrying the " - LEVEL - " marker.
func UseAgentOutput() {
	logger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(AgentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		agentLevel(),
	))
}

// AgentEncoderConfig is the console encoder layout for agent processes.
func AgentEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05,000"),
		EncodeLevel:      agentLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
}

// agentLevelEncoder spells levels the way the relay's log filter expects.
func agentLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		enc.AppendString("CRITICAL")
	default:
		enc.AppendString(l.CapitalString())
	}
}

func agentLevel() zapcore.Level {
	if os.Getenv("DEBUG") == "true" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Replace swaps the process logger and returns a func restoring the old one.
func Replace(l *zap.Logger) func() {
	prev := logger
	logger = l
	return func() { logger = prev }
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value(RequestIDKey); v != nil {
		fields = append(fields, zap.Any("request_id", v))
	}
	if v := ctx.Value(PersonaKey); v != nil {
		fields = append(fields, zap.Any("persona", v))
	}
	if v := ctx.Value(ClientIDKey); v != nil {
		fields = append(fields, zap.Any("client_id", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

func Sync() {
	_ = logger.Sync()
}
