package global

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Sub *zap.Logger
}

func (log *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Info(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Error(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Debug(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Warn(msg, decaps(ctx, fields...)...)
}

func decaps(ctx context.Context, fields ...zap.Field) []zap.Field {
	if label, ok := ctx.Value(partitionKey{}).(string); ok {
		fields = append(fields, zap.String("partition", label))
	}
	if step, ok := ctx.Value(stepKey{}).(string); ok {
		fields = append(fields, zap.String("step", step))
	}
	return fields
}

var (
	logger  *Logger
	logOnce sync.Once
)

func Log() *Logger {
	logOnce.Do(func() {
		lvl, err := zapcore.ParseLevel(Conf.LogLevel)
		if err != nil {
			lvl = zapcore.InfoLevel
		}

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			lvl,
		)
		if Conf.Otel.Tracing {
			core = zapcore.NewTee(
				core,
				otelzap.NewCore("ctfer.io/lfs-station", otelzap.WithLoggerProvider(loggerProvider)),
			)
		}

		logger = &Logger{
			Sub: zap.New(core),
		}
	})
	return logger
}
