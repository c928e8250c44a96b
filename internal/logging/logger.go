package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar names the environment variable consulted when no level is
// passed explicitly. Unset means silent.
const LogLevelEnvVar = "BTSCOUT_LOG_LEVEL"

// Initialize installs a stderr console logger at level, falling back to
// $BTSCOUT_LOG_LEVEL. With neither set the logger is a no-op.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		SetLogger(nil)
		return nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	built, err := consoleConfig(lvl).Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	SetLogger(built)
	return nil
}

// consoleConfig keeps stdout free for tables and JSON.
func consoleConfig(lvl zapcore.Level) zap.Config {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// InitializeFromEnv is Initialize with only the environment consulted.
func InitializeFromEnv() error {
	return Initialize("")
}

// ParseLevel accepts the level names zap knows plus "warning".
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.EqualFold(level, "warning") {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil || lvl < zapcore.DebugLevel || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// SetLogger replaces the global logger. Passing nil restores silent mode.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs at info level.
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs at error level.
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogSessionEvent logs a discovery session transition.
func LogSessionEvent(scope, session, event string, fields ...zap.Field) {
	Debug("Session event", append([]zap.Field{
		zap.String("scope", scope),
		zap.String("session", session),
		zap.String("event", event),
	}, fields...)...)
}

// LogClientEvent logs an event-stream client connecting or leaving.
func LogClientEvent(remoteAddr string, event string) {
	Info("Client event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogAdvertisement logs raw advertisement payloads at debug level.
func LogAdvertisement(address string, companyID uint16, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug("Advertisement",
		zap.String("address", address),
		zap.String("company_id", fmt.Sprintf("0x%04X", companyID)),
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// dumpLimit caps how many payload bytes an advertisement dump shows.
const dumpLimit = 64

func hexDump(data []byte) string {
	if len(data) > dumpLimit {
		return hex.EncodeToString(data[:dumpLimit]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) > dumpLimit {
		data = data[:dumpLimit]
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '.'
		}
		return r
	}, string(data))
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = GetLogger().Sync()
}
