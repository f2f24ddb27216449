package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogDir is where prod logs are written.
var LogDir = "logs"

const logFile = "blockd.log"

// Setup configures the global logger. Outside prod it writes human readable
// lines to stdout; in prod it appends JSON to LogDir/blockd.log.
// The returned func closes the log file.
func Setup(env, level string) func() {
	if env != "prod" {
		Configure(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}, level)
		return func() {}
	}

	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		Configure(os.Stdout, level)
		log.Warn().Err(err).Msg("failed to create log dir, fallback to stdout")
		return func() {}
	}

	f, err := os.OpenFile(filepath.Join(LogDir, logFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		Configure(os.Stdout, level)
		log.Warn().Err(err).Msg("failed to open log file, fallback to stdout")
		return func() {}
	}

	Configure(f, level)
	// закрываем файл при завершении
	return func() {
		_ = f.Close()
	}
}

// Configure installs a timestamped logger writing to w as the global logger.
func Configure(w io.Writer, level string) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	l := zerolog.New(w).With().Timestamp().Caller().Logger()
	log.Logger = l
	return l
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a child of the global logger tagged with component.
func New(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
