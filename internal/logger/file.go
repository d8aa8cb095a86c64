package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/grepwin/internal/models"
)

// FileLogger logs search runs to files in a log directory. It creates a
// timestamped per-run log file and maintains a latest.log symlink pointing
// to the most recent run. It is thread-safe and supports the same level
// filtering as ConsoleLogger.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .grepwin/logs/ in the
// current working directory with the default "info" level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".grepwin", "logs"), "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Timestamped filename: run-YYYYMMDD-HHMMSS.log
	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	// Best-effort latest.log symlink; some filesystems refuse symlinks.
	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		_ = os.Remove(symlinkPath)
	}
	_ = os.Symlink(filepath.Base(runFile), symlinkPath)

	return &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}, nil
}

// RunFile returns the path of the current run's log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) write(level, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fmt.Fprintf(fl.runLog, "[%s] [%s] %s\n", timestamp(), level, message)
}

// LogTrace logs a trace-level message.
func (fl *FileLogger) LogTrace(message string) {
	fl.write("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.write("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.write("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.write("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.write("ERROR", message)
}

// LogFileResult records one matched file in the run log.
func (fl *FileLogger) LogFileResult(result *models.FileResult) {
	if result == nil {
		return
	}
	switch {
	case result.ReadError:
		fl.write("WARN", fmt.Sprintf("%s: read error", result.Path))
	case result.ExceptionText != "":
		fl.write("WARN", fmt.Sprintf("%s: %s", result.Path, result.ExceptionText))
	default:
		fl.write("DEBUG", fmt.Sprintf("%s: %d match(es) [%s]", result.Path, result.MatchCount, result.Encoding))
	}
}

// LogSummary records the run summary.
func (fl *FileLogger) LogSummary(summary Summary) {
	fl.write("INFO", fmt.Sprintf("processed=%d matched=%d replaceFailures=%d cancelled=%v duration=%s",
		summary.Processed, summary.Matched, summary.ReplaceFailures, summary.Cancelled,
		formatDuration(summary.Duration)))
}
