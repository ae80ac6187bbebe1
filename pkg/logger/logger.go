package logger

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Logger wraps the process-wide zerolog logger.
type Logger struct {
	zl zerolog.Logger
}

// DefaultLogger is the global logger instance. It is created lazily with
// JSON output at info level if Init was never called.
var DefaultLogger *Logger

// Config holds logger configuration
type Config struct {
	// Level is a zerolog level name. Unknown names fall back to info.
	Level string
	// Format is "json" or "console".
	Format string
	// Output defaults to stdout.
	Output io.Writer
}

// Init replaces the default logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	DefaultLogger = &Logger{
		zl: zerolog.New(out).Level(level).With().Timestamp().Str("service", "filevault").Logger(),
	}
}

func base() *Logger {
	if DefaultLogger == nil {
		Init(Config{Level: "info", Format: "json"})
	}
	return DefaultLogger
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

func Debug() *zerolog.Event { return base().Debug() }
func Info() *zerolog.Event  { return base().Info() }
func Warn() *zerolog.Event  { return base().Warn() }
func Error() *zerolog.Event { return base().Error() }
func Fatal() *zerolog.Event { return base().Fatal() }

// Component returns a sub-logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return base().zl.With().Str("component", name).Logger()
}

// Audit records an administrative or destructive action, such as a limit
// change or a file deletion, under log_type=audit.
func Audit(action string, userID string, fields map[string]string) {
	event := base().Info().
		Str("log_type", "audit").
		Str("action", action).
		Str("user_id", userID)
	for k, v := range fields {
		event = event.Str(k, v)
	}
	event.Msg("audit event")
}

// Middleware logs one line per request. Server errors log at error level,
// throttled and other client errors at warn.
func Middleware() fiber.Handler {
	l := base()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var event *zerolog.Event
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			event = l.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = l.Warn()
		default:
			event = l.Info()
		}

		requestID, _ := c.Locals("request_id").(string)
		userID, _ := c.Locals("user_id").(string)
		if role := c.Locals("role"); role != nil {
			event = event.Interface("role", role)
		}
		if retryAfter := c.GetRespHeader(fiber.HeaderRetryAfter); retryAfter != "" {
			event = event.Str("retry_after", retryAfter)
		}

		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Int("bytes_sent", len(c.Response().Body())).
			Str("ip", c.IP()).
			Dur("latency", time.Since(start)).
			Str("request_id", requestID).
			Str("user_id", userID).
			Msg("HTTP request")

		return err
	}
}
