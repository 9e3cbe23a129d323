// Package logger builds the zerolog logger that every mcphub component
// receives through its constructor.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger owns the zerolog.Logger and the sinks behind it.
type Logger struct {
	logger   zerolog.Logger
	closers  []io.Closer
	redactor *Redactor
}

// Config holds logger configuration.
type Config struct {
	Level     string `mapstructure:"level" json:"level"`         // debug, info, warn, error
	File      string `mapstructure:"file" json:"file"`           // log file path, empty disables file output
	Console   bool   `mapstructure:"console" json:"console"`     // write to stderr
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`       // human readable console output
	Redaction bool   `mapstructure:"redaction" json:"redaction"` // mask API keys and tokens
	MaxSize   int    `mapstructure:"max_size" json:"max_size"`   // MB before rotation, 0 disables rotation
	MaxAge    int    `mapstructure:"max_age" json:"max_age"`     // days to keep rotated files
	Compress  bool   `mapstructure:"compress" json:"compress"`   // gzip rotated files
}

// New creates a logger from cfg. It never touches zerolog's global logger;
// callers pass Zerolog() down explicitly.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var (
		writers []io.Writer
		closers []io.Closer
	)

	if cfg.Console {
		var console io.Writer = os.Stderr
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.Kitchen,
			}
		}
		writers = append(writers, console)
	}

	if cfg.File != "" {
		fw, err := openFileSink(cfg)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
		closers = append(closers, fw)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	zl := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{
		logger:   zl,
		closers:  closers,
		redactor: redactor,
	}, nil
}

// openFileSink opens cfg.File, rotating when MaxSize is set.
func openFileSink(cfg Config) (io.WriteCloser, error) {
	if cfg.MaxSize > 0 {
		rw, err := NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open rotating log file: %w", err)
		}
		return rw, nil
	}
	f, err := openAppend(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Close flushes and closes file sinks.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// Zerolog returns the underlying logger for injection into components.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.logger.With().Str("component", name).Logger()
}

// DefaultConfig returns the logger configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		File:      "logs/mcphub.log",
		Console:   false,
		Pretty:    true,
		Redaction: true,
		MaxSize:   50,
		MaxAge:    7,
		Compress:  true,
	}
}
