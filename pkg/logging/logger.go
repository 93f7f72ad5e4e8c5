package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

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

// output is the destination shared by a logger and every logger derived
// from it with WithField, so a rotation is seen by all of them.
type output struct {
	mu      sync.Mutex
	w       io.Writer
	file    *os.File
	console io.Writer
}

// Logger provides structured logging with file output support
type Logger struct {
	out        *output
	level      Level
	jsonFormat bool
	fields     map[string]interface{}
	now        func() time.Time
}

// NewLogger creates a new logger writing to stdout
func NewLogger(level Level, jsonFormat bool) *Logger {
	return &Logger{
		out:        &output{w: os.Stdout, console: os.Stdout},
		level:      level,
		jsonFormat: jsonFormat,
		fields:     make(map[string]interface{}),
		now:        time.Now,
	}
}

// NewFileLogger creates a logger that writes to path and stdout.
// Parent directories are created as needed.
func NewFileLogger(path string, level Level, jsonFormat bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger := NewLogger(level, jsonFormat)
	logger.out.file = logFile
	logger.out.w = io.MultiWriter(logFile, logger.out.console)

	logger.Debug("Logger initialized", map[string]interface{}{"path": path})

	return logger, nil
}

// SetOutput sets the output writer. When a log file is open, w replaces
// the console copy and the file keeps receiving entries.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	l.out.console = w
	if l.out.file != nil {
		l.out.w = io.MultiWriter(l.out.file, w)
		return
	}
	l.out.w = w
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// write emits a log entry; it never exits the process.
func (l *Logger) write(level Level, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	// Merge logger fields and call fields
	mergedFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		mergedFields[k] = v
	}
	for k, v := range fields {
		mergedFields[k] = encodeValue(v)
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	w := l.out.w

	if l.jsonFormat {
		entry := LogEntry{
			Timestamp: l.now().Format(time.RFC3339),
			Level:     level.String(),
			Message:   message,
			Fields:    mergedFields,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("Failed to marshal log entry: %v", err)
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}

	timestamp := l.now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "[%s] %s: %s", timestamp, level.String(), message)
	if len(mergedFields) > 0 {
		keys := make([]string, 0, len(mergedFields))
		for k := range mergedFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, " %s=%v", k, mergedFields[k])
		}
	}
	fmt.Fprintln(w)
}

// encodeValue renders durations as seconds so JSON output stays numeric
// and readable.
func encodeValue(v interface{}) interface{} {
	if d, ok := v.(time.Duration); ok {
		return d.Seconds()
	}
	return v
}

// Log implements timers.LogSink. FATAL is downgraded to ERROR so a report
// can never terminate the process.
func (l *Logger) Log(level, label string, fields map[string]interface{}) {
	lvl := ParseLevel(level)
	if lvl == FATAL {
		lvl = ERROR
	}
	l.write(lvl, label, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.write(DEBUG, message, firstFields(fields))
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.write(INFO, message, firstFields(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.write(WARN, message, firstFields(fields))
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.write(ERROR, message, firstFields(fields))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields ...map[string]interface{}) {
	l.write(FATAL, message, firstFields(fields))
	os.Exit(1)
}

func firstFields(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	// Copy fields to avoid mutation
	newFields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value
	return &Logger{
		out:        l.out,
		level:      l.level,
		jsonFormat: l.jsonFormat,
		fields:     newFields,
		now:        l.now,
	}
}

// ParseLevel parses a log level string
func ParseLevel(level string) Level {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info", "NOTICE", "notice":
		return INFO
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error", "CRITICAL", "critical", "ALERT", "alert", "EMERGENCY", "emergency":
		return ERROR
	case "FATAL", "fatal":
		return FATAL
	default:
		return INFO
	}
}

// Close closes the log file if opened
func (l *Logger) Close() error {
	l.out.mu.Lock()
	file := l.out.file
	l.out.mu.Unlock()
	if file == nil {
		return nil
	}

	l.Debug("Logger closing")

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.file = nil
	l.out.w = l.out.console
	return file.Close()
}

// RotateIfNeeded rotates log file if it exceeds maxSize (in bytes)
func (l *Logger) RotateIfNeeded(maxSize int64) error {
	l.out.mu.Lock()
	if l.out.file == nil {
		l.out.mu.Unlock()
		return nil
	}

	info, err := l.out.file.Stat()
	if err != nil {
		l.out.mu.Unlock()
		return err
	}
	if info.Size() <= maxSize {
		l.out.mu.Unlock()
		return nil
	}

	oldPath := l.out.file.Name()
	backupPath := oldPath + "." + l.now().Format("20060102-150405")
	l.out.file.Close()

	// Until the new file is open entries only reach the console
	l.out.file = nil
	l.out.w = l.out.console

	if err := os.Rename(oldPath, backupPath); err != nil {
		l.out.mu.Unlock()
		return err
	}

	newFile, err := os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.out.mu.Unlock()
		return err
	}
	l.out.file = newFile
	l.out.w = io.MultiWriter(newFile, l.out.console)
	l.out.mu.Unlock()

	l.Info("Log rotated", map[string]interface{}{"from": oldPath, "to": backupPath})
	return nil
}
