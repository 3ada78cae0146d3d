package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryLoader    Category = "loader"
	CategoryParser    Category = "parser"
	CategoryBuilder   Category = "builder"
	CategoryDiagnose  Category = "diagnose"
	CategoryReport    Category = "report"
	CategorySelection Category = "selection"
	CategoryBatch     Category = "batch"
	CategoryConfig    Category = "config"
	CategoryServer    Category = "server"
)

// Event represents a structured log event
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	Level        Level          `json:"level"`
	Category     Category       `json:"category"`
	EventType    string         `json:"type"`
	InvocationID string         `json:"invocation_id,omitempty"`
	TracePath    string         `json:"trace_path,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// Logger writes structured events to the invocation log and mirrors
// warnings to a console writer. Report envelopes own stdout, so the
// console mirror defaults to stderr.
type Logger struct {
	invocationID   string
	tracePath      string
	baseDir        string
	invocationFile *os.File
	errorFile      *os.File
	console        io.Writer
	mu             sync.Mutex
	minLevel       Level
}

// NewLogger creates a file-backed structured logger
func NewLogger(baseDir, invocationID string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	invocationsDir := filepath.Join(baseDir, "invocations")
	if err := os.MkdirAll(invocationsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create invocations directory: %w", err)
	}

	invocationFile, err := os.OpenFile(
		filepath.Join(invocationsDir, invocationID+".jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open invocation log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		invocationFile.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	return &Logger{
		invocationID:   invocationID,
		baseDir:        baseDir,
		invocationFile: invocationFile,
		errorFile:      errorFile,
		console:        os.Stderr,
		minLevel:       LevelInfo,
	}, nil
}

// NewConsoleLogger creates a logger that only mirrors warnings and errors
// to the given writer. Used when file logging is disabled.
func NewConsoleLogger(w io.Writer) *Logger {
	return &Logger{
		console:  w,
		minLevel: LevelWarn,
	}
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetTracePath sets the current trace path for subsequent events
func (l *Logger) SetTracePath(tracePath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracePath = tracePath
}

// SetConsole replaces the console mirror writer
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// Log writes an event to appropriate destinations
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.InvocationID == "" {
		event.InvocationID = l.invocationID
	}

	if event.TracePath == "" && l.tracePath != "" {
		event.TracePath = l.tracePath
	}

	if !l.shouldLog(event.Level) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.invocationFile != nil {
		if _, err := l.invocationFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to invocation log: %w", err)
		}
	}

	if event.Level == LevelError && l.errorFile != nil {
		if _, err := l.errorFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to error log: %w", err)
		}
	}

	// Warnings and errors reach the user on the console mirror. They
	// never touch stdout, which carries only the report envelope.
	if l.console != nil {
		switch event.Level {
		case LevelWarn:
			fmt.Fprintf(l.console, "warning: %s\n", event.Message)
		case LevelError:
			fmt.Fprintf(l.console, "error: %s\n", event.Message)
		}
	}

	return nil
}

// shouldLog checks if event should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.minLevel]
}

// Helper methods for common log patterns

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Close closes all log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.invocationFile != nil {
		if err := l.invocationFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if l.errorFile != nil {
		if err := l.errorFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing log files: %v", errs)
	}
	return nil
}
