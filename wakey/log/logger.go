package wakey_log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// silent is above every level that is ever written.
const silent = ERROR + 1

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a textual level (as used by --level and log.level) to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", level)
	}
}

type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	level       LogLevel
	logFile     *os.File
}

type LoggerConfig struct {
	Level        LogLevel
	LogToFile    bool
	LogFilePath  string
	LogToConsole bool
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:        INFO,
		LogToFile:    false,
		LogFilePath:  "",
		LogToConsole: true,
	}
}

func NewLogger(config LoggerConfig) (*Logger, error) {
	logger := &Logger{
		level: config.Level,
	}

	var writers []io.Writer

	if config.LogToConsole {
		writers = append(writers, os.Stdout)
	}

	if config.LogToFile {
		if config.LogFilePath == "" {
			config.LogFilePath = getDefaultLogPath()
		}

		logDir := filepath.Dir(config.LogFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		logFile, err := os.OpenFile(config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFilePath, err)
		}

		logger.logFile = logFile

		writers = append(writers, logFile)
	}

	logger.init(io.MultiWriter(writers...))

	return logger, nil
}

// NewWriterLogger logs to an arbitrary writer. Tests use it to capture output.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	logger := &Logger{level: level}
	logger.init(w)
	return logger
}

// Discard returns a logger that drops everything. Packages fall back to it
// when no logger has been injected.
func Discard() *Logger {
	return NewWriterLogger(io.Discard, silent)
}

func (l *Logger) init(w io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds

	l.debugLogger = log.New(w, "[DEBUG] ", flags)
	l.infoLogger = log.New(w, "[INFO] ", flags)
	l.warnLogger = log.New(w, "[WARN] ", flags)
	l.errorLogger = log.New(w, "[ERROR] ", flags)
}

func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}

	return nil
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.debugLogger.Printf(format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.infoLogger.Printf(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.warnLogger.Printf(format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= ERROR {
		l.errorLogger.Printf(format, args...)
	}
}

func (l *Logger) LogWakeAttempt(mac string, target string, success bool, err error) {
	if success {
		l.Info("Wake-on-LAN packet sent successfully to MAC=%s via target=%s", mac, target)
	} else {
		l.Error("Failed to send Wake-on-LAN packet to MAC=%s via target=%s: %v", mac, target, err)
	}
}

func (l *Logger) LogPacketDetails(mac string, packetSize int, target string) {
	l.Debug("Created magic packet: MAC=%s, Size=%d bytes, Target=%s", mac, packetSize, target)
}

// LogCommand records an accepted operator command. The argument is quoted so
// that untrusted text cannot forge extra log lines.
func (l *Logger) LogCommand(sender, name, arg string) {
	l.Info("Command from %s: %s %q", sender, name, arg)
}

func getDefaultLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	return fmt.Sprintf("wakey-%s.log", timestamp)
}
