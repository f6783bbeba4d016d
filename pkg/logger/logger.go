// Package logger provides the leveled, optionally file-backed logger the
// ledger engine, the miner, and the CLI share. Output is a single line
// per event, text or JSON, with size-based rotation when logging to disk.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Prefix     string
	Output     io.Writer
	TimeFmt    string
	UseJSON    bool
	LogFile    string
	MaxSize    int64 // maximum file size in bytes before rotation
	MaxBackups int   // maximum number of rotated files to keep
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      INFO,
		Prefix:     "gochain",
		Output:     os.Stdout,
		TimeFmt:    time.RFC3339,
		UseJSON:    false,
		LogFile:    "",
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 5,
	}
}

// core is the shared state behind a Logger and everything derived from it
// via WithFields: one mutex, one output, one rotation counter.
type core struct {
	mu         sync.Mutex
	level      Level
	prefix     string
	output     io.Writer
	timeFmt    string
	useJSON    bool
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
}

// Logger is a leveled logger. All methods are safe for concurrent use, and
// loggers derived with WithFields share the parent's output and rotation
// state.
type Logger struct {
	c      *core
	fields map[string]interface{}
}

// NewLogger creates a new logger from config. A nil config means
// DefaultConfig. If config.LogFile is set and cannot be opened, the logger
// falls back to stdout rather than failing.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	c := &core{
		level:      config.Level,
		prefix:     config.Prefix,
		output:     config.Output,
		timeFmt:    config.TimeFmt,
		useJSON:    config.UseJSON,
		filePath:   config.LogFile,
		maxSize:    config.MaxSize,
		maxBackups: config.MaxBackups,
	}
	if c.output == nil {
		c.output = os.Stdout
	}
	if c.timeFmt == "" {
		c.timeFmt = time.RFC3339
	}

	if config.LogFile != "" {
		if err := c.openLogFile(); err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v, falling back to stdout\n", err)
			c.output = os.Stdout
		}
	}

	return &Logger{c: c}
}

// openLogFile opens (creating directories as needed) the configured log
// file for appending and records its current size for rotation tracking.
// Caller must hold c.mu, or be the constructor.
func (c *core) openLogFile() error {
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(c.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	c.file = file
	c.output = file
	c.written = info.Size()
	return nil
}

// rotate shifts existing backups up by one, renames the active file to
// .1, and reopens a fresh active file. Caller must hold c.mu.
func (c *core) rotate() {
	c.file.Close()

	for i := c.maxBackups - 1; i > 0; i-- {
		oldName := fmt.Sprintf("%s.%d", c.filePath, i)
		newName := fmt.Sprintf("%s.%d", c.filePath, i+1)
		if _, err := os.Stat(oldName); err == nil {
			os.Rename(oldName, newName)
		}
	}
	os.Rename(c.filePath, fmt.Sprintf("%s.1", c.filePath))

	if err := c.openLogFile(); err != nil {
		c.file = nil
		c.output = os.Stdout
		c.written = 0
	}
}

// log formats and writes one event line.
func (l *Logger) log(level Level, format string, args ...interface{}) {
	c := l.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if level < c.level {
		return
	}

	timestamp := time.Now().Format(c.timeFmt)
	message := fmt.Sprintf(format, args...)

	var line []byte
	if c.useJSON {
		event := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"service":   c.prefix,
			"message":   message,
		}
		for k, v := range l.fields {
			event[k] = v
		}
		encoded, err := json.Marshal(event)
		if err != nil {
			encoded = []byte(fmt.Sprintf(`{"level":%q,"message":%q}`, level.String(), message))
		}
		line = append(encoded, '\n')
	} else {
		text := fmt.Sprintf("[%s] %s [%s] %s", timestamp, level.String(), c.prefix, message)
		for k, v := range l.fields {
			text += fmt.Sprintf(" %s=%v", k, v)
		}
		line = []byte(text + "\n")
	}

	n, _ := c.output.Write(line)
	if c.file != nil {
		c.written += int64(n)
		if c.maxSize > 0 && c.written >= c.maxSize {
			c.rotate()
		}
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
	os.Exit(1)
}

// WithFields returns a logger that attaches fields to every event, merged
// over any fields the receiver already carries. The returned logger shares
// the receiver's output, file handle, and rotation state.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{c: l.c, fields: merged}
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(level Level) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	l.c.level = level
}

// SetOutput changes the output writer.
func (l *Logger) SetOutput(output io.Writer) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	l.c.output = output
}

// SetJSON enables or disables JSON output.
func (l *Logger) SetJSON(useJSON bool) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	l.c.useJSON = useJSON
}

// Close closes the log file, if one is open.
func (l *Logger) Close() error {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	if l.c.file != nil {
		return l.c.file.Close()
	}
	return nil
}

// LogFile returns the active log file path, or empty when logging to a
// plain writer.
func (l *Logger) LogFile() string {
	return l.c.filePath
}
