package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// readLoggedEvents parses every event from a JSONL log file
func readLoggedEvents(t *testing.T, path string) []Event {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

// TestNewLogger tests logger construction with temp directories
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name         string
		baseDir      string
		invocationID string
		wantErr      bool
	}{
		{
			name:         "valid directory and invocation ID",
			baseDir:      t.TempDir(),
			invocationID: "inv-123",
			wantErr:      false,
		},
		{
			name:         "creates directories if not exist",
			baseDir:      filepath.Join(t.TempDir(), "nested", "path"),
			invocationID: "inv-456",
			wantErr:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.invocationID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if logger.invocationID != tt.invocationID {
				t.Errorf("invocationID = %v, want %v", logger.invocationID, tt.invocationID)
			}
			if logger.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.minLevel, LevelInfo)
			}

			invocationsDir := filepath.Join(tt.baseDir, "invocations")
			if _, err := os.Stat(invocationsDir); os.IsNotExist(err) {
				t.Errorf("invocations directory not created")
			}

			invocationFile := filepath.Join(invocationsDir, tt.invocationID+".jsonl")
			if _, err := os.Stat(invocationFile); os.IsNotExist(err) {
				t.Errorf("invocation log file not created")
			}

			errorFile := filepath.Join(tt.baseDir, "errors.jsonl")
			if _, err := os.Stat(errorFile); os.IsNotExist(err) {
				t.Errorf("errors.jsonl not created")
			}
		})
	}
}

// TestNewLoggerInvalidDirectory tests error handling for invalid directories
func TestNewLoggerInvalidDirectory(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "file-not-dir")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err := NewLogger(filePath, "inv-1")
	if err == nil {
		t.Fatal("expected error when baseDir is a file, got nil")
	}
}

// TestLogEvent tests the Log method
func TestLogEvent(t *testing.T) {
	baseDir := t.TempDir()
	invocationID := "inv-log"
	logger, err := NewLogger(baseDir, invocationID)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)

	event := Event{
		Level:     LevelInfo,
		Category:  CategoryParser,
		EventType: "shard_parsed",
		Message:   "parsed trace shard",
		Details: map[string]any{
			"shard": "trace.trace",
			"lines": 42,
		},
	}

	if err := logger.Log(event); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}

	invocationFile := filepath.Join(baseDir, "invocations", invocationID+".jsonl")
	events := readLoggedEvents(t, invocationFile)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	logged := events[0]
	if logged.Level != event.Level {
		t.Errorf("Level = %v, want %v", logged.Level, event.Level)
	}
	if logged.Category != event.Category {
		t.Errorf("Category = %v, want %v", logged.Category, event.Category)
	}
	if logged.EventType != event.EventType {
		t.Errorf("EventType = %v, want %v", logged.EventType, event.EventType)
	}
	if logged.InvocationID != invocationID {
		t.Errorf("InvocationID = %v, want %v", logged.InvocationID, invocationID)
	}
	if logged.Timestamp.IsZero() {
		t.Error("timestamp should be set automatically")
	}
}

// TestLogEventTracePath tests that the trace path is stamped on events
func TestLogEventTracePath(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "inv-trace")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)

	logger.SetTracePath("/results/run-7.zip")
	if err := logger.Info(CategoryLoader, "archive_opened", "opened archive", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}

	events := readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-trace.jsonl"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].TracePath != "/results/run-7.zip" {
		t.Errorf("TracePath = %v, want /results/run-7.zip", events[0].TracePath)
	}
}

// TestMinLevelFiltering tests level-based filtering
func TestMinLevelFiltering(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "inv-level")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)

	// Default min level is info; debug should be dropped
	if err := logger.Debug(CategoryBuilder, "merge", "merging actions", nil); err != nil {
		t.Fatalf("Debug() failed: %v", err)
	}
	if err := logger.Info(CategoryBuilder, "built", "context built", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}

	events := readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-level.jsonl"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event after filtering, got %d", len(events))
	}
	if events[0].EventType != "built" {
		t.Errorf("surviving event = %v, want built", events[0].EventType)
	}

	// Lowering the threshold lets debug through
	logger.SetMinLevel(LevelDebug)
	if err := logger.Debug(CategoryBuilder, "merge", "merging actions", nil); err != nil {
		t.Fatalf("Debug() failed: %v", err)
	}
	events = readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-level.jsonl"))
	if len(events) != 2 {
		t.Fatalf("expected 2 events after lowering level, got %d", len(events))
	}
}

// TestErrorsRoutedToErrorLog tests that error events land in errors.jsonl
func TestErrorsRoutedToErrorLog(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "inv-err")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)

	if err := logger.Info(CategoryLoader, "ok", "fine", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if err := logger.Error(CategoryLoader, "bad_archive", "archive unreadable", nil); err != nil {
		t.Fatalf("Error() failed: %v", err)
	}

	errorEvents := readLoggedEvents(t, filepath.Join(baseDir, "errors.jsonl"))
	if len(errorEvents) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errorEvents))
	}
	if errorEvents[0].EventType != "bad_archive" {
		t.Errorf("error event = %v, want bad_archive", errorEvents[0].EventType)
	}

	invocationEvents := readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-err.jsonl"))
	if len(invocationEvents) != 2 {
		t.Fatalf("expected both events in invocation log, got %d", len(invocationEvents))
	}
}

// TestConsoleMirror tests the human-readable warning mirror
func TestConsoleMirror(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf)

	if err := logger.Info(CategoryParser, "ok", "should not appear", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if err := logger.Warn(CategoryParser, "skip_line", "skipping malformed line 42", nil); err != nil {
		t.Fatalf("Warn() failed: %v", err)
	}
	if err := logger.Error(CategoryLoader, "missing", "trace not found", nil); err != nil {
		t.Fatalf("Error() failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("info events should not hit the console: %q", out)
	}
	if !strings.Contains(out, "warning: skipping malformed line 42") {
		t.Errorf("expected warning line, got %q", out)
	}
	if !strings.Contains(out, "error: trace not found") {
		t.Errorf("expected error line, got %q", out)
	}
}

// TestLogEventWithTimestamp tests that explicit timestamps are preserved
func TestLogEventWithTimestamp(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "inv-ts")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()
	logger.SetConsole(nil)

	explicit := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := logger.Log(Event{
		Timestamp: explicit,
		Level:     LevelInfo,
		Category:  CategoryBatch,
		EventType: "item_done",
	}); err != nil {
		t.Fatalf("Log() failed: %v", err)
	}

	events := readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-ts.jsonl"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(explicit) {
		t.Errorf("Timestamp = %v, want %v", events[0].Timestamp, explicit)
	}
}

// TestClose tests that Close is safe and flushes files
func TestClose(t *testing.T) {
	baseDir := t.TempDir()
	logger, err := NewLogger(baseDir, "inv-close")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.SetConsole(nil)

	if err := logger.Info(CategoryConfig, "loaded", "config loaded", nil); err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	events := readLoggedEvents(t, filepath.Join(baseDir, "invocations", "inv-close.jsonl"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event after close, got %d", len(events))
	}
}
