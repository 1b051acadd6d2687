package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rs/zerolog"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dDispatchLogger implements the ILogger interface on top of zerolog
type dDispatchLogger struct {
	name   string
	level  atomic.Int32 // logger.LogLevel, changed at runtime by InitLoggers
	logger zerolog.Logger
}

func (l *dDispatchLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dDispatchLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *dDispatchLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.logger.Debug().Msgf(format, args...)
	}
}

func (l *dDispatchLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.logger.Info().Msgf(format, args...)
	}
}

func (l *dDispatchLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.logger.Warn().Msgf(format, args...)
	}
}

func (l *dDispatchLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.logger.Error().Msgf(format, args...)
	}
}

func (l *dDispatchLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Error().Msg(msg)
	panic(msg)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// LogFormatEnv selects the output format of all loggers ("console" or "json")
const LogFormatEnv = "DDISPATCH_LOG_FORMAT"

// output is the writer every logger created by CreateLogger writes to
var output io.Writer = os.Stdout

// newWriter wraps w according to the configured log format
func newWriter(w io.Writer) io.Writer {
	if strings.ToLower(os.Getenv(LogFormatEnv)) == "json" {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
}

// CreateLogger implements the dragonboat logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	l := &dDispatchLogger{
		name: pkgName,
		logger: zerolog.New(newWriter(output)).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Str("pkg", pkgName).
			Logger(),
	}
	l.SetLevel(logger.INFO)
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to logger.LogLevel
func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}

// ValidLogLevel reports whether level is accepted by InitLoggers
func ValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warning", "warn", "error":
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames lists all package loggers of this module
var loggerNames = []string{
	"dispatcher",
	"netpoll",
	"echo",
	"frame",
	"cmd",
}

var factoryOnce sync.Once

// InitLoggers installs the zerolog backed factory and sets the level of all
// loggers. It may be called more than once, only the level changes.
func InitLoggers(level string) {
	lvl := parseLogLevel(level)

	// Set as the global logger factory for Dragonboat
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
}
