package log

// Structured logging for the holders exporter
// File logger gets everything (DEBUG..ERROR), console only SUCCESS and ERROR lines
// Loggers are no-ops until Init is called, so library code and tests stay quiet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger        = zap.NewNop()
	consoleLogger = zap.NewNop() // for ERROR, SUCCESS and notices
	mu            sync.Mutex
)

// Options controls where and how verbosely Init logs.
type Options struct {
	Dir   string
	Level string
}

// Init builds the file logger (<dir>/app.log) and the coloured console logger.
func Init(opts Options) error {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(fileConfig),
		getLogFileWriter(filepath.Join(dir, "app.log")),
		level,
	)

	consoleConfig := zap.NewDevelopmentConfig()
	consoleConfig.EncoderConfig.EncodeLevel = customLevelEncoder
	consoleConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleConfig.EncoderConfig.EncodeCaller = nil
	consoleConfig.Development = false
	consoleConfig.DisableStacktrace = true
	consoleConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	console, err := consoleConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build console logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	Logger = zap.New(fileCore)
	consoleLogger = console
	return nil
}

// SetLogger swaps the file logger and silences the console; the returned func restores both.
func SetLogger(l *zap.Logger) (restore func()) {
	mu.Lock()
	prevFile, prevConsole := Logger, consoleLogger
	Logger, consoleLogger = l, zap.NewNop()
	mu.Unlock()

	return func() {
		mu.Lock()
		Logger, consoleLogger = prevFile, prevConsole
		mu.Unlock()
	}
}

// Sync flushes both loggers.
func Sync() {
	_ = Logger.Sync()
	_ = consoleLogger.Sync()
}

// GenerateRequestID returns a short random id used to correlate request and response lines
func GenerateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// LogRequest HTTP request (file only)
func LogRequest(requestID, method, endpoint string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	}, fields...)
	Logger.Info("HTTP request", allFields...)
}

// LogResponse HTTP response; non-2xx also reaches the console
func LogResponse(requestID string, statusCode int, durationMs int64, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	if statusCode >= 200 && statusCode < 300 {
		Logger.Info("HTTP response", allFields...)
		return
	}

	Logger.Error("HTTP response", allFields...)
	if endpoint := endpointField(fields); endpoint != "" {
		consoleLogger.Error(fmt.Sprintf("✗ HTTP request failed [%d] %s", statusCode, endpoint))
	} else {
		consoleLogger.Error(fmt.Sprintf("✗ HTTP request failed [%d]", statusCode))
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "DEBUG" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "SUCCESS" + colorReset) // console INFO = SUCCESS
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.PanicLevel:
		enc.AppendString(colorRed + level.CapitalString() + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

// LogInfo (file only)
func LogInfo(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)
}

// LogSuccess (file and console)
func LogSuccess(message string, fields ...zap.Field) {
	Logger.Info(message, fields...)

	if durationMs := extractDuration(fields); durationMs > 0 {
		consoleLogger.Info(fmt.Sprintf("✓ %s (%dms)", message, durationMs))
	} else {
		consoleLogger.Info("✓ " + message)
	}
}

// LogError (file and console)
func LogError(message string, fields ...zap.Field) {
	Logger.Error(message, fields...)

	if durationMs := extractDuration(fields); durationMs > 0 {
		consoleLogger.Error(fmt.Sprintf("✗ %s (%dms)", message, durationMs))
	} else {
		consoleLogger.Error("✗ " + message)
	}
}

// LogWarn (file only)
func LogWarn(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
}

// LogNotice is a warning the operator has to see while it lasts (file and console)
func LogNotice(message string, fields ...zap.Field) {
	Logger.Warn(message, fields...)
	consoleLogger.Warn("⚠ " + message)
}

// LogDebug (file only)
func LogDebug(message string, fields ...zap.Field) {
	Logger.Debug(message, fields...)
}

func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

func endpointField(fields []zap.Field) string {
	for _, field := range fields {
		if field.Key == "endpoint" {
			return field.String
		}
	}
	return ""
}

// MaxLogFileSize - app.log is truncated once it grows past this (50MB)
const MaxLogFileSize = 50 * 1024 * 1024

type truncatingLogWriter struct {
	file *os.File
	path string
	mu   sync.Mutex
}

func (w *truncatingLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if info, err := w.file.Stat(); err == nil && info.Size() > MaxLogFileSize {
		w.file.Close()

		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return 0, fmt.Errorf("failed to truncate log file: %w", err)
		}
		w.file = f
	}

	return w.file.Write(p)
}

func (w *truncatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

func getLogFileWriter(path string) zapcore.WriteSyncer {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stderr\n", path, err)
		return zapcore.AddSync(os.Stderr)
	}
	return &truncatingLogWriter{file: file, path: path}
}
