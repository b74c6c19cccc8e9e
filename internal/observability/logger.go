// Package observability provides structured logging with redaction support.
package observability

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with redaction and request ID support.
type Logger struct {
	logger   zerolog.Logger
	redactor *Redactor
}

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	Level      zerolog.Level
	Output     io.Writer
	JSONFormat bool
}

// NewLogger creates a new logger with redaction support.
func NewLogger(cfg LoggerConfig, redactor *Redactor) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var w io.Writer = cfg.Output
	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: cfg.Output, NoColor: true}
	}

	return &Logger{
		logger:   zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger(),
		redactor: redactor,
	}
}

// WithRequestID returns a logger with the request ID from context.
func (l *Logger) WithRequestID(ctx context.Context) *Logger {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		return l
	}
	return &Logger{
		logger:   l.logger.With().Str("request_id", requestID).Logger(),
		redactor: l.redactor,
	}
}

// WithFields returns a logger with additional key-value fields, alternating
// key, value, key, value... to match the teacher's slog.Logger.With calling
// convention.
func (l *Logger) WithFields(args ...any) *Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		ctx = ctx.Interface(key, args[i+1])
	}
	return &Logger{logger: ctx.Logger(), redactor: l.redactor}
}

// With is an alias for WithFields, matching the teacher's naming.
func (l *Logger) With(args ...any) *Logger {
	return l.WithFields(args...)
}

// RedactedInfo logs at INFO level with a redacted message and args.
func (l *Logger) RedactedInfo(msg string, args ...any) {
	msg, args = l.redact(msg, args)
	l.logger.Info().Fields(argsToFields(args)).Msg(msg)
}

// RedactedError logs at ERROR level with a redacted message and args.
func (l *Logger) RedactedError(msg string, args ...any) {
	msg, args = l.redact(msg, args)
	l.logger.Error().Fields(argsToFields(args)).Msg(msg)
}

// RedactedDebug logs at DEBUG level with a redacted message and args.
func (l *Logger) RedactedDebug(msg string, args ...any) {
	msg, args = l.redact(msg, args)
	l.logger.Debug().Fields(argsToFields(args)).Msg(msg)
}

// RedactedWarn logs at WARN level with a redacted message and args.
func (l *Logger) RedactedWarn(msg string, args ...any) {
	msg, args = l.redact(msg, args)
	l.logger.Warn().Fields(argsToFields(args)).Msg(msg)
}

func (l *Logger) redact(msg string, args []any) (string, []any) {
	if l.redactor == nil {
		return msg, args
	}
	return l.redactor.Redact(msg), l.redactArgs(args)
}

func (l *Logger) redactArgs(args []any) []any {
	if l.redactor == nil {
		return args
	}

	result := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			result[i] = l.redactor.Redact(v)
		case error:
			result[i] = l.redactor.Redact(v.Error())
		default:
			result[i] = arg
		}
	}
	return result
}

// argsToFields converts alternating key/value pairs into zerolog's Fields map.
func argsToFields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		fields[key] = args[i+1]
	}
	return fields
}

// Zerolog returns the underlying zerolog.Logger for compatibility.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info().Fields(argsToFields(args)).Msg(msg)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error().Fields(argsToFields(args)).Msg(msg)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(argsToFields(args)).Msg(msg)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(argsToFields(args)).Msg(msg)
}
