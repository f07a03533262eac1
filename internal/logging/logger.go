// Package logging provides config-driven categorized file-based logging for cellscript.
// Logs are written to .cellscript/logs/ with separate files per category.
// Logging is controlled by debug_mode in .cellscript/config.yaml - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategorySession  Category = "session"  // Container sessions, workbook lifecycle
	CategoryStore    Category = "store"    // Source persistence
	CategoryEngine   Category = "engine"   // Execution passes
	CategoryClassify Category = "classify" // Rule chain decisions
	CategoryScript   Category = "script"   // Script host, fragment print output
	CategoryRender   Category = "render"   // Result delivery
	CategoryCache    Category = "cache"    // Cache service
	CategoryWatch    Category = "watch"    // Workbook file watcher
)

// Config mirrors the logging section of .cellscript/config.yaml.
// It is duplicated here to avoid an import cycle with internal/config.
type Config struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	Format     string          `yaml:"format"` // text, json
}

// StructuredLogEntry represents a JSON log entry.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    Config
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Configure applies cfg and directs log files to dir. The host parses
// .cellscript/config.yaml itself and passes the logging section in.
func Configure(dir string, cfg Config) error {
	CloseAll()

	configMu.Lock()
	config = cfg
	logLevel = parseLevel(cfg.Level)
	configMu.Unlock()

	if !cfg.DebugMode {
		logsDir = ""
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logsDir = dir

	boot := Get(CategoryBoot)
	boot.Info("=== cellscript logging initialized ===")
	boot.Info("Logs directory: %s", dir)
	boot.Info("Log level: %s", cfg.Level)
	if len(cfg.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

func isJSON() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.Format == "json"
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level int, label, format string, args ...interface{}) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if isJSON() {
		l.logJSON(label, msg, nil)
		return
	}
	l.logger.Printf("[%s] %s", label, msg)
}

func (l *Logger) logJSON(level, msg string, fields map[string]interface{}) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg) // Fallback to text
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// StructuredLog writes a fully structured log entry with custom fields
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	if isJSON() {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Session logs to the session category
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// SessionWarn logs warning to the session category
func SessionWarn(format string, args ...interface{}) { Get(CategorySession).Warn(format, args...) }

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Engine logs to the engine category
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// EngineError logs error to the engine category
func EngineError(format string, args ...interface{}) { Get(CategoryEngine).Error(format, args...) }

// ClassifyDebug logs debug to the classify category
func ClassifyDebug(format string, args ...interface{}) { Get(CategoryClassify).Debug(format, args...) }

// ClassifyWarn logs warning to the classify category
func ClassifyWarn(format string, args ...interface{}) { Get(CategoryClassify).Warn(format, args...) }

// Script logs to the script category
func Script(format string, args ...interface{}) { Get(CategoryScript).Info(format, args...) }

// ScriptDebug logs debug to the script category
func ScriptDebug(format string, args ...interface{}) { Get(CategoryScript).Debug(format, args...) }

// RenderWarn logs warning to the render category
func RenderWarn(format string, args ...interface{}) { Get(CategoryRender).Warn(format, args...) }

// CacheDebug logs debug to the cache category
func CacheDebug(format string, args ...interface{}) { Get(CategoryCache).Debug(format, args...) }

// Watch logs to the watch category
func Watch(format string, args ...interface{}) { Get(CategoryWatch).Info(format, args...) }

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }

// WatchError logs to the watch category at error level
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Error(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures one operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("SLOW: %s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
