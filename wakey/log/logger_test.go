package wakey_log

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{" warn ", WARN, false},
		{"error", ERROR, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultLoggerConfig(t *testing.T) {
	config := DefaultLoggerConfig()

	require.Equal(t, INFO, config.Level)
	require.False(t, config.LogToFile)
	require.True(t, config.LogToConsole)
	require.Empty(t, config.LogFilePath)
}

func TestNewLogger_FileOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewLogger(LoggerConfig{
		Level:       DEBUG,
		LogToFile:   true,
		LogFilePath: logPath,
	})
	require.NoError(t, err)
	defer logger.Close()

	require.NotNil(t, logger.logFile)
	_, err = os.Stat(logPath)
	require.NoError(t, err)
}

func TestNewLogger_InvalidLogPath(t *testing.T) {
	tempDir := t.TempDir()

	// A regular file cannot be used as a parent directory.
	conflictingFile := filepath.Join(tempDir, "conflict")
	require.NoError(t, os.WriteFile(conflictingFile, []byte("test"), 0644))

	_, err := NewLogger(LoggerConfig{
		Level:       INFO,
		LogToFile:   true,
		LogFilePath: filepath.Join(conflictingFile, "subdir", "test.log"),
	})
	require.Error(t, err)
}

func TestLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, WARN)

	logger.Debug("This debug message should not appear")
	logger.Info("This info message should not appear")
	logger.Warn("This warning message should appear")
	logger.Error("This error message should appear")

	logContent := buf.String()

	if strings.Contains(logContent, "debug message") {
		t.Errorf("Debug message should not appear in log when level is WARN")
	}
	if strings.Contains(logContent, "info message") {
		t.Errorf("Info message should not appear in log when level is WARN")
	}
	require.Contains(t, logContent, "[WARN]")
	require.Contains(t, logContent, "warning message")
	require.Contains(t, logContent, "[ERROR]")
	require.Contains(t, logContent, "error message")
}

func TestLogger_LogWakeAttempt(t *testing.T) {
	tests := []struct {
		name     string
		success  bool
		err      error
		expected []string
	}{
		{
			name:     "success",
			success:  true,
			expected: []string{"[INFO]", "Wake-on-LAN packet sent successfully", "AA:BB:CC:DD:EE:FF", "target=255.255.255.255:9"},
		},
		{
			name:     "failure",
			success:  false,
			err:      fmt.Errorf("network unreachable"),
			expected: []string{"[ERROR]", "Failed to send Wake-on-LAN packet", "AA:BB:CC:DD:EE:FF", "network unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, INFO)

			logger.LogWakeAttempt("AA:BB:CC:DD:EE:FF", "255.255.255.255:9", tt.success, tt.err)

			for _, part := range tt.expected {
				require.Contains(t, buf.String(), part)
			}
		})
	}
}

func TestLogger_LogPacketDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, DEBUG)

	logger.LogPacketDetails("CC:DD:EE:FF:AA:BB", 102, "10.0.0.255:7")

	for _, part := range []string{"[DEBUG]", "Created magic packet", "CC:DD:EE:FF:AA:BB", "Size=102 bytes", "Target=10.0.0.255:7"} {
		require.Contains(t, buf.String(), part)
	}
}

func TestLogger_LogCommandQuotesArgument(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, INFO)

	logger.LogCommand("42", "ping", "host\n[ERROR] forged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `ping "host\n[ERROR] forged"`)
}

func TestDiscard(t *testing.T) {
	logger := Discard()

	logger.Debug("nothing")
	logger.Error("nothing")
	require.NoError(t, logger.Close())
}

func TestLogger_MultipleLogs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "multiple-logs.log")

	logger, err := NewLogger(LoggerConfig{
		Level:       DEBUG,
		LogToFile:   true,
		LogFilePath: logPath,
	})
	require.NoError(t, err)

	logger.Debug("Debug message 1")
	logger.Info("Info message 1")
	logger.Warn("Warning message 1")
	logger.Error("Error message 1")

	require.NoError(t, logger.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 4)

	expectedMessages := []string{
		"Debug message 1",
		"Info message 1",
		"Warning message 1",
		"Error message 1",
	}
	for i, expected := range expectedMessages {
		if !strings.Contains(lines[i], expected) {
			t.Errorf("Line %d should contain %q, got: %s", i, expected, lines[i])
		}
	}
}
