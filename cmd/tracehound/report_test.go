package main

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tracehound/tracehound/pkg/errors"
)

const fixtureShard = `{"type":"context-options","ts":1000,"startTime":1000,"testName":"checkout","browser":"chromium"}
{"type":"action-start","ts":1100,"callId":"call@1","method":"page.goto","params":{"url":"https://shop.test"}}
{"type":"action-end","ts":1900,"callId":"call@1"}
{"type":"screencast-frame","ts":2000,"sha1":"ab12.jpeg","width":800,"height":600}
{"type":"console-message","ts":3500,"messageType":"error","text":"Timed out waiting for foo","location":"app.js:7"}
{"type":"screencast-frame","ts":4000,"sha1":"cd34.jpeg","width":800,"height":600}`

const fixtureRunner = `{"type":"runner-stdout","ts":4100,"text":"ok 1 checkout"}`

// writeTraceDir lays out a pre-extracted trace directory.
func writeTraceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trace.trace"), []byte(fixtureShard), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "test.trace"), []byte(fixtureRunner), 0644); err != nil {
		t.Fatal(err)
	}
	resources := filepath.Join(dir, "resources")
	if err := os.MkdirAll(resources, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(resources, "ab12.jpeg"), []byte("jpegbytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// buildZip packs entries into a trace archive at path.
func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("writing entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
}

// runCLI executes a handler through runCommand and captures the envelope.
func runCLI(t *testing.T, handler func([]string) error, args []string) (string, int) {
	t.Helper()
	var code int
	out := captureStdout(t, func() {
		code = runCommand(handler, args)
	})
	return out, code
}

func TestSummaryCommand(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runSummaryCommand, []string{dir})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	env := decodeEnvelope(t, out)
	if env.Command != "summary" {
		t.Errorf("command = %q", env.Command)
	}
	if env.TracePath != dir {
		t.Errorf("tracePath = %q, want %q", env.TracePath, dir)
	}

	var results struct {
		TestName string `json:"testName"`
		Verdict  string `json:"verdict"`
		Counts   struct {
			Actions     int `json:"actions"`
			Console     int `json:"console"`
			Screenshots int `json:"screenshots"`
		} `json:"counts"`
		Parse *struct {
			Files   int `json:"files"`
			Parsed  int `json:"parsed"`
			Skipped int `json:"skipped"`
		} `json:"parse"`
	}
	if err := json.Unmarshal(env.Results, &results); err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.TestName != "checkout" || results.Verdict != "passed" {
		t.Errorf("results = %+v", results)
	}
	if results.Counts.Actions != 1 || results.Counts.Console != 1 || results.Counts.Screenshots != 2 {
		t.Errorf("counts = %+v", results.Counts)
	}
	if results.Parse == nil {
		t.Fatal("summary should carry the parse stats")
	}
	if results.Parse.Files != 2 || results.Parse.Parsed != 7 || results.Parse.Skipped != 0 {
		t.Errorf("parse = %+v", results.Parse)
	}
}

func TestSimpleViewCommands(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	commands := map[string]func([]string) error{
		"errors":      runErrorsCommand,
		"actions":     runActionsCommand,
		"screenshots": runScreenshotsCommand,
		"timeline":    runTimelineCommand,
	}
	for name, handler := range commands {
		out, code := runCLI(t, handler, []string{dir})
		if code != 0 {
			t.Fatalf("%s: exit code = %d\n%s", name, code, out)
		}
		env := decodeEnvelope(t, out)
		if env.Command != name {
			t.Errorf("command = %q, want %q", env.Command, name)
		}
		if string(env.Results) == "" || string(env.Results) == "null" {
			t.Errorf("%s: results missing", name)
		}
	}
}

func TestScreenshotCommand(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runScreenshotCommand, []string{"--at", "0", "--context", "1", dir})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	env := decodeEnvelope(t, out)

	var results struct {
		Found  bool `json:"found"`
		Total  int  `json:"total"`
		Target struct {
			Index int `json:"index"`
		} `json:"target"`
		After []struct {
			Index int `json:"index"`
		} `json:"after"`
	}
	if err := json.Unmarshal(env.Results, &results); err != nil {
		t.Fatalf("results: %v", err)
	}
	if !results.Found || results.Total != 2 {
		t.Errorf("results = %+v", results)
	}
	if results.Target.Index != 0 || len(results.After) != 1 {
		t.Errorf("target = %+v after = %+v", results.Target, results.After)
	}
}

func TestScreenshotCommandRejectsNegativeContext(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runScreenshotCommand, []string{"--context", "-2", dir})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	env := decodeErrorEnvelope(t, out)
	if env.Code != string(errors.ErrCodeInvalidQuery) {
		t.Errorf("code = %q", env.Code)
	}
}

func TestConsoleCommandFilter(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runConsoleCommand, []string{"--type", "error", "--filter", "Timed out", dir})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	env := decodeEnvelope(t, out)
	if !strings.Contains(string(env.Results), "Timed out waiting for foo") {
		t.Errorf("results should carry the matching message: %s", env.Results)
	}
}

func TestConsoleCommandInvalidRegex(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runConsoleCommand, []string{"--filter", "[", dir})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	env := decodeErrorEnvelope(t, out)
	if env.Code != string(errors.ErrCodeInvalidQuery) {
		t.Errorf("code = %q", env.Code)
	}
}

func TestAroundCommandRequiresTime(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runAroundCommand, []string{dir})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	env := decodeErrorEnvelope(t, out)
	if env.Code != string(errors.ErrCodeInvalidQuery) {
		t.Errorf("code = %q", env.Code)
	}
	if !strings.Contains(env.Error, "--time") {
		t.Errorf("error should point at the missing flag: %q", env.Error)
	}
}

func TestAroundCommand(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runAroundCommand, []string{"--time", "2000", "--window", "600", dir})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	env := decodeEnvelope(t, out)
	if env.Command != "around" {
		t.Errorf("command = %q", env.Command)
	}
}

func TestCommandRejectsTrailingArgs(t *testing.T) {
	isolateConfig(t)
	dir := writeTraceDir(t)

	out, code := runCLI(t, runSummaryCommand, []string{dir, "extra"})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	env := decodeErrorEnvelope(t, out)
	if env.Code != string(errors.ErrCodeInvalidQuery) {
		t.Errorf("code = %q", env.Code)
	}
}

func TestCommandTraceNotFound(t *testing.T) {
	isolateConfig(t)

	out, code := runCLI(t, runSummaryCommand, []string{filepath.Join(t.TempDir(), "absent.zip")})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	env := decodeErrorEnvelope(t, out)
	if env.Code != string(errors.ErrCodeNotFound) {
		t.Errorf("code = %q", env.Code)
	}
}
