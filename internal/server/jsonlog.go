// jsonlog.go - Structured logging with JSON and key=value text formats.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Logger writes structured log entries to a single output. JSON output
// is selected with ZIPHUB_LOG_FORMAT=json, plain key=value text otherwise.
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel LogLevel
	asJSON   bool
}

type logEntry struct {
	Level   LogLevel       `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DefaultLogger is the process-wide logger instance.
var DefaultLogger = NewLogger(os.Stdout, logLevelFromEnv(), os.Getenv("ZIPHUB_LOG_FORMAT") == "json")

// NewLogger builds a Logger writing to out at the given minimum level.
func NewLogger(out io.Writer, minLevel LogLevel, asJSON bool) *Logger {
	return &Logger{output: out, minLevel: minLevel, asJSON: asJSON}
}

func logLevelFromEnv() LogLevel {
	switch os.Getenv("ZIPHUB_LOG_LEVEL") {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]any, err error) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := logEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.asJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	fmt.Fprintf(l.output, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	// Sorted so text output is stable across runs.
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(l.output, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(l.output, " error=%s", entry.Error)
	}
	fmt.Fprintln(l.output)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(LogLevelDebug, msg, fields, nil) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(LogLevelInfo, msg, fields, nil) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(LogLevelWarn, msg, fields, nil) }
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LogLevelError, msg, fields, err)
}

// Package-level shortcuts on the default logger.

func logDebug(msg string, fields map[string]any)          { DefaultLogger.Debug(msg, fields) }
func logInfo(msg string, fields map[string]any)           { DefaultLogger.Info(msg, fields) }
func logWarn(msg string, fields map[string]any)           { DefaultLogger.Warn(msg, fields) }
func logError(msg string, fields map[string]any, e error) { DefaultLogger.Error(msg, fields, e) }
