package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AccessLogger writes HTTP request lines to daily log files.
type AccessLogger struct {
	dir     string
	file    *os.File
	path    string
	mu      sync.Mutex
	lastDay string
}

// NewAccessLogger creates an access logger that writes to dir.
// Log files are named access-YYYY-MM-DD.log.
func NewAccessLogger(dir string) (*AccessLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create access log dir: %w", err)
	}

	l := &AccessLogger{dir: dir}
	if err := l.rotate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Write appends a request line to the log with timestamp.
func (l *AccessLogger) Write(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if today != l.lastDay {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}

	if l.file == nil {
		return nil
	}

	timestamp := time.Now().Format("15:04:05")
	_, err := fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
	return err
}

// WriteRequest writes a formatted request entry.
func (l *AccessLogger) WriteRequest(requestID, method, path string, status int, elapsed time.Duration) error {
	return l.Write(fmt.Sprintf("%s %s %s %d %s", requestID, method, path, status, elapsed))
}

// Path returns the current log file path.
func (l *AccessLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close closes the log file.
func (l *AccessLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *AccessLogger) rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *AccessLogger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	today := time.Now().Format("2006-01-02")
	l.lastDay = today
	l.path = filepath.Join(l.dir, "access-"+today+".log")

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	l.file = file
	return nil
}
