package logger

import (
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger sends everything to a zap.Logger. Level filtering happens here;
// the wrapped logger should accept debug entries.
type zapLogger struct {
	z      *zap.Logger
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields []zap.Field
}

// NewZapLogger adapts z to Logger. A nil z uses zap.NewNop.
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z, level: LogLevelInfo, format: LogFormatText}
}

func (l *zapLogger) SetLevel(level LogLevel) {
	l.level = level
}

// SetFormat picks the encoder used once an output has been set.
func (l *zapLogger) SetFormat(format LogFormat) {
	l.format = format
	if l.writer != nil {
		l.rebuild()
	}
}

// SetOutput replaces the wrapped logger's core with one writing to w.
func (l *zapLogger) SetOutput(w io.Writer) {
	l.writer = w
	l.rebuild()
}

func (l *zapLogger) rebuild() {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if l.format == LogFormatJSON {
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	l.z = zap.New(zapcore.NewCore(enc, zapcore.AddSync(l.writer), zapcore.DebugLevel)).With(l.fields...)
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	return &zapLogger{
		z:      l.z.With(zf...),
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: append(append([]zap.Field(nil), l.fields...), zf...),
	}
}

func (l *zapLogger) Debug(format string, args ...any) {
	if l.level >= LogLevelDebug {
		l.z.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.z.Info(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.z.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.z.Error(fmt.Sprintf(format, args...))
	}
}

func (l *zapLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level >= LogLevelInfo {
		l.z.Info("sql", zap.String("sql", sql), zap.Duration("duration", duration), zap.Any("args", args))
	}
}
