package core

import "go.uber.org/zap"

// zapLogger adapts a zap.SugaredLogger to the Logger interface
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps z so it can be passed as Config.Logger.
// A nil z yields a no-op logger.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		return NopLogger()
	}
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Debug(msg string, keyvals ...any) { l.sugar.Debugw(msg, keyvals...) }

func (l *zapLogger) Info(msg string, keyvals ...any) { l.sugar.Infow(msg, keyvals...) }

func (l *zapLogger) Warn(msg string, keyvals ...any) { l.sugar.Warnw(msg, keyvals...) }

func (l *zapLogger) Error(msg string, keyvals ...any) { l.sugar.Errorw(msg, keyvals...) }

// With returns a child logger carrying keyvals on every entry
func (l *zapLogger) With(keyvals ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(keyvals...)}
}
