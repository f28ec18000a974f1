package logger

import "time"

// slowLogger reports statements slower than threshold as warnings, on top
// of the regular SQL line.
type slowLogger struct {
	Logger
	threshold time.Duration
}

// NewSlowLogger wraps inner so that SQL taking longer than threshold is also
// logged at Warn level. A non-positive threshold returns inner unchanged.
func NewSlowLogger(inner Logger, threshold time.Duration) Logger {
	if threshold <= 0 {
		return inner
	}
	return &slowLogger{Logger: inner, threshold: threshold}
}

func (l *slowLogger) WithFields(fields map[string]any) Logger {
	return &slowLogger{Logger: l.Logger.WithFields(fields), threshold: l.threshold}
}

func (l *slowLogger) SQL(sql string, duration time.Duration, args ...any) {
	l.Logger.SQL(sql, duration, args...)
	if duration > l.threshold {
		l.Logger.WithFields(map[string]any{"duration": duration.String()}).
			Warn("slow sql: %s | args: %v", sql, args)
	}
}
