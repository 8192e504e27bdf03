// Package logger
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to a rotated file at path. The terminal
// is owned by the chat screen, so logs never go to stdout.
func New(path string) zerolog.Logger {
	logWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}

	return zerolog.New(logWriter).
		With().
		Timestamp().
		Logger()
}

// LogPath resolves the default log file under the user's home directory,
// creating the directory if needed.
func LogPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	logDir := filepath.Join(homeDir, "peerchat", "logs")

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	return filepath.Join(logDir, "peerchat.log"), nil
}
