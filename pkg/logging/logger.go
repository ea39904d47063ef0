package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"spilljoin/pkg/fs"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	sink    io.Closer
	level   = new(slog.LevelVar)

	fallback = sync.OnceValue(func() *slog.Logger {
		return slog.New(newHandler(os.Stderr, "text"))
	})
)

// LogLevel names a verbosity threshold.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Slog maps the level onto slog. Unknown names log at INFO.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a case-insensitive level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch LogLevel(strings.ToUpper(name)) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "WARNING":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", name)
	}
}

// Config holds logger configuration.
type Config struct {
	Level      LogLevel
	OutputPath string    // appended to when set; Writer is ignored
	Format     string    // "json" or "text"
	Writer     io.Writer // nil means stderr
}

// Init installs the process logger. It fails if a logger is already
// installed; Close first to replace it.
//
// Example:
//
//	logging.Init(logging.Config{
//	    Level: logging.LevelInfo,
//	    OutputPath: "logs/join.log",
//	    Format: "json",
//	})
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return fmt.Errorf("logger already initialized; call Close() first to reinitialize")
	}

	w, closer, err := openSink(config)
	if err != nil {
		return err
	}
	level.Set(config.Level.Slog())
	current = slog.New(newHandler(w, config.Format))
	sink = closer
	return nil
}

func openSink(config Config) (io.Writer, io.Closer, error) {
	if config.OutputPath == "" {
		if config.Writer == nil {
			return os.Stderr, nil, nil
		}
		return config.Writer, nil, nil
	}
	if err := fs.Default.MkdirAll(filepath.Dir(config.OutputPath), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := fs.Default.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLevel changes the threshold of the installed logger, and of the
// default one, without reinitializing.
func SetLevel(l LogLevel) {
	level.Set(l.Slog())
}

// Close drops the installed logger and closes its log file, if any. It is
// safe to call repeatedly.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if sink != nil {
		err = sink.Close()
	}
	current, sink = nil, nil
	level.Set(slog.LevelInfo)
	return err
}

// GetLogger returns the installed logger. Before Init it returns a text
// logger on stderr, so library code can log without setup.
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current != nil {
		return current
	}
	return fallback()
}
