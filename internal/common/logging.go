package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

const HelpLevels = "must be one of: error, warn, info, debug"

var (
	logger = log.New(os.Stderr, "[l2munger] ", log.LstdFlags|log.Lmicroseconds)
	level  atomic.Int32
)

func init() {
	level.Store(int32(LevelInfo))
}

// LogConfig controls where log lines go. An empty Directory keeps logging
// on stderr only.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	Filename   string `yaml:"filename"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q: %s", s, HelpLevels)
	}
}

func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetOutput replaces the log destination. Tests use it to capture output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetupLogging applies cfg. Returns a closer for the rotating file, which
// is a no-op when no directory is configured.
func SetupLogging(stderr io.Writer, cfg LogConfig) (io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	SetLevel(lvl)
	if stderr == nil {
		stderr = os.Stderr
	}
	if cfg.Directory == "" {
		logger.SetOutput(stderr)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := cfg.Filename
	if name == "" {
		name = "l2munger.log"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, name),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(stderr, rotator))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func enabled(l Level) bool {
	return Level(level.Load()) >= l
}

func Logf(format string, args ...interface{}) {
	if enabled(LevelInfo) {
		logger.Printf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if enabled(LevelWarn) {
		logger.Printf("WARN "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	logger.Printf("ERROR "+format, args...)
}

func Debugf(format string, args ...interface{}) {
	if enabled(LevelDebug) {
		logger.Printf("DEBUG "+format, args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// Writer returns the current log destination, for libraries that log
// through an io.Writer.
func Writer() io.Writer {
	return logger.Writer()
}
