package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNotFound, "trace archive missing")

	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "trace archive missing" {
		t.Errorf("expected message 'trace archive missing', got %s", err.Message)
	}
	if err.Recoverable {
		t.Error("new errors should not be recoverable by default")
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestWrap(t *testing.T) {
	underlying := stderrors.New("unexpected EOF")
	err := Wrap(underlying, ErrCodeInvalidArchive, "failed to read archive")

	if err.Code != ErrCodeInvalidArchive {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidArchive, err.Code)
	}
	if err.Underlying != underlying {
		t.Error("expected underlying error to be preserved")
	}
	if !stderrors.Is(err, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestWrap_NilError(t *testing.T) {
	err := Wrap(nil, ErrCodeParse, "should be nil")
	if err != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeParse, "malformed event line").
		WithContext("shard", "trace.trace").
		WithContext("line", 42)

	if err.Context["shard"] != "trace.trace" {
		t.Errorf("expected shard context, got %v", err.Context["shard"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context, got %v", err.Context["line"])
	}

	msg := err.Error()
	if !strings.Contains(msg, "[PARSE]") {
		t.Errorf("expected code in message, got %s", msg)
	}
	if !strings.Contains(msg, "malformed event line") {
		t.Errorf("expected message text, got %s", msg)
	}
}

func TestErrorString_Underlying(t *testing.T) {
	underlying := stderrors.New("permission denied")
	err := Wrap(underlying, ErrCodeInvalidPath, "cannot stat trace path")

	msg := err.Error()
	if !strings.Contains(msg, "[INVALID_PATH] cannot stat trace path") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "permission denied") {
		t.Errorf("expected underlying error in message, got %s", msg)
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeSelection, "no trace selected")

	if !IsCode(err, ErrCodeSelection) {
		t.Error("IsCode should match the error's code")
	}
	if IsCode(err, ErrCodeNotFound) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(nil, ErrCodeSelection) {
		t.Error("IsCode on nil should be false")
	}
	if IsCode(stderrors.New("plain"), ErrCodeSelection) {
		t.Error("IsCode on a plain error should be false")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad staleness threshold")

	if got := GetCode(err); got != ErrCodeConfigInvalid {
		t.Errorf("expected %s, got %s", ErrCodeConfigInvalid, got)
	}
	if got := GetCode(stderrors.New("plain")); got != ErrCodeInternal {
		t.Errorf("plain errors should map to %s, got %s", ErrCodeInternal, got)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("nil should map to empty code, got %s", got)
	}
}

func TestRecoverable(t *testing.T) {
	err := New(ErrCodeParse, "skipping malformed line").WithRecoverable(true)

	if !err.IsRecoverable() {
		t.Error("expected error to be recoverable")
	}
	if !IsRecoverable(err) {
		t.Error("package-level IsRecoverable should agree")
	}
	if IsRecoverable(stderrors.New("plain")) {
		t.Error("plain errors are not recoverable")
	}
	if IsRecoverable(nil) {
		t.Error("nil is not recoverable")
	}
}

func TestChaining(t *testing.T) {
	err := New(ErrCodeCorrelationGap, "action-end without matching start").
		WithContext("callId", "call@17").
		WithRecoverable(true).
		WithRemediation("re-record the trace with a newer runner")

	if err.Code != ErrCodeCorrelationGap {
		t.Errorf("chaining should preserve code, got %s", err.Code)
	}
	if !err.Recoverable {
		t.Error("chaining should preserve recoverable flag")
	}
	if len(err.Remediation) != 1 {
		t.Errorf("expected 1 remediation tip, got %d", len(err.Remediation))
	}
}

func TestErrorCodes_Defined(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeNotFound,
		ErrCodeInvalidArchive,
		ErrCodeInvalidPath,
		ErrCodeParse,
		ErrCodeCorrelationGap,
		ErrCodeSelection,
		ErrCodeInvalidQuery,
		ErrCodeBatchItem,
		ErrCodeConfigLoad,
		ErrCodeConfigInvalid,
		ErrCodeServerBind,
		ErrCodeInternal,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("error code should not be empty")
		}
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
	}
}

func TestStackTrace(t *testing.T) {
	err := New(ErrCodeInternal, "boom")

	trace := err.StackTrace()
	if !strings.Contains(trace, "Stack trace:") {
		t.Errorf("expected stack trace header, got %s", trace)
	}
	if !strings.Contains(trace, "TestStackTrace") {
		t.Errorf("expected calling test in stack trace, got %s", trace)
	}
}
