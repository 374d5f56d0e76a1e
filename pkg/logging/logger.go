package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LevelTrace LogLevel = iota - 5
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
	LevelFatal LogLevel = LogLevel(slog.LevelError + 4)
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level       LogLevel `json:"level"`
	Format      string   `json:"format"`       // "json" or "text"
	Output      string   `json:"output"`       // "stdout", "stderr", or "file"
	FilePath    string   `json:"file_path"`    // used when Output is "file"
	EnableAsync bool     `json:"enable_async"` // hand entries to a background writer
}

// Logger provides structured logging with context support
type Logger struct {
	config  LogConfig
	slogger *slog.Logger
	file    *os.File
	asyncCh chan LogEntry
	wg      sync.WaitGroup
	once    sync.Once
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Component string
	RequestID string
	Error     string
	Fields    map[string]interface{}
	Caller    string
}

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores a request id for ContextLogger to pick up.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// DefaultLogConfig returns sensible default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       LevelInfo,
		Format:      "json",
		Output:      "stdout",
		EnableAsync: true,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config LogConfig) (*Logger, error) {
	logger := &Logger{config: config}

	var writer io.Writer
	switch config.Output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if err := logger.setupFileLogging(); err != nil {
			return nil, fmt.Errorf("failed to setup file logging: %w", err)
		}
		writer = logger.file
	}

	return newWithWriter(logger, writer), nil
}

// NewWithWriter builds a synchronous logger on w. Tests use it to capture output.
func NewWithWriter(config LogConfig, w io.Writer) *Logger {
	config.EnableAsync = false
	return newWithWriter(&Logger{config: config}, w)
}

func newWithWriter(logger *Logger, writer io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.Level(logger.config.Level)}

	var handler slog.Handler
	if logger.config.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	logger.slogger = slog.New(handler)

	if logger.config.EnableAsync {
		logger.asyncCh = make(chan LogEntry, 1000)
		logger.wg.Add(1)
		go logger.asyncWorker()
	}
	return logger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter(LogConfig{Level: LevelError + 100}, io.Discard)
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// setupFileLogging creates log directory and file
func (l *Logger) setupFileLogging() error {
	if l.config.FilePath == "" {
		return fmt.Errorf("file path is required for file logging")
	}

	dir := filepath.Dir(l.config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.file = file
	return nil
}

// asyncWorker drains entries until the channel is closed.
func (l *Logger) asyncWorker() {
	defer l.wg.Done()
	for entry := range l.asyncCh {
		l.writeEntry(entry)
	}
}

func (l *Logger) writeEntry(entry LogEntry) {
	attrs := make([]slog.Attr, 0, 4+len(entry.Fields))
	if entry.Component != "" {
		attrs = append(attrs, slog.String("component", entry.Component))
	}
	if entry.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", entry.RequestID))
	}
	if entry.Error != "" {
		attrs = append(attrs, slog.String("error", entry.Error))
	}
	if entry.Caller != "" {
		attrs = append(attrs, slog.String("caller", entry.Caller))
	}
	for key, value := range entry.Fields {
		attrs = append(attrs, slog.Any(key, value))
	}

	l.slogger.LogAttrs(context.Background(), slog.Level(entry.Level), entry.Message, attrs...)
}

// Close flushes pending async entries and closes the log file. Safe to call twice.
func (l *Logger) Close() error {
	var err error
	l.once.Do(func() {
		if l.asyncCh != nil {
			close(l.asyncCh)
			l.wg.Wait()
		}
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// WithContext returns a logger that tags entries with the request id in ctx
func (l *Logger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: l, ctx: ctx}
}

// WithComponent returns a logger with component information
func (l *Logger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{logger: l, component: component}
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger    *Logger
	ctx       context.Context
	component string
}

// ComponentLogger provides component-specific logging
type ComponentLogger struct {
	logger    *Logger
	component string
}

// WithContext keeps the component and adds the request id from ctx.
func (cl *ComponentLogger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: cl.logger, ctx: ctx, component: cl.component}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(nil, "", LevelDebug, msg, "", fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(nil, "", LevelInfo, msg, "", fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(nil, "", LevelWarn, msg, "", fields) }

func (l *Logger) Error(msg string, err error, fields ...Field) {
	l.log(nil, "", LevelError, msg, errString(err), fields)
}

// Fatal logs at fatal level and exits
func (l *Logger) Fatal(msg string, err error, fields ...Field) {
	l.log(nil, "", LevelFatal, msg, errString(err), fields)
	l.Close()
	os.Exit(1)
}

func (cl *ComponentLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(nil, cl.component, LevelDebug, msg, "", fields)
}

func (cl *ComponentLogger) Info(msg string, fields ...Field) {
	cl.logger.log(nil, cl.component, LevelInfo, msg, "", fields)
}

func (cl *ComponentLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(nil, cl.component, LevelWarn, msg, "", fields)
}

func (cl *ComponentLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(nil, cl.component, LevelError, msg, errString(err), fields)
}

func (cl *ContextLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, cl.component, LevelDebug, msg, "", fields)
}

func (cl *ContextLogger) Info(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, cl.component, LevelInfo, msg, "", fields)
}

func (cl *ContextLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, cl.component, LevelWarn, msg, "", fields)
}

func (cl *ContextLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(cl.ctx, cl.component, LevelError, msg, errString(err), fields)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *Logger) log(ctx context.Context, component string, level LogLevel, msg, errorStr string, fields []Field) {
	if l == nil || level < l.config.Level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Component: component,
		RequestID: RequestID(ctx),
		Error:     errorStr,
		Fields:    make(map[string]interface{}, len(fields)),
	}

	if level >= LevelWarn {
		_, file, line, ok := runtime.Caller(2)
		if ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	for _, field := range fields {
		field.AddTo(entry.Fields)
	}

	if l.asyncCh != nil {
		select {
		case l.asyncCh <- entry:
		default:
			// Async buffer full, log synchronously
			l.writeEntry(entry)
		}
		return
	}
	l.writeEntry(entry)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// AddTo adds the field to the provided map
func (f Field) AddTo(m map[string]interface{}) {
	m[f.Key] = f.Value
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field            { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field        { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }
func Any(key string, value interface{}) Field        { return Field{Key: key, Value: value} }
