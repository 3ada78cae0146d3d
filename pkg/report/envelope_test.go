package report

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tracehound/tracehound/pkg/errors"
)

func TestWriteEnvelope(t *testing.T) {
	var buf bytes.Buffer
	err := WriteEnvelope(&buf, "summary", "/results/run.zip", map[string]int{"actions": 3})
	if err != nil {
		t.Fatalf("WriteEnvelope failed: %v", err)
	}

	var envelope struct {
		Command   string         `json:"command"`
		TracePath string         `json:"tracePath"`
		Results   map[string]int `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if envelope.Command != "summary" || envelope.TracePath != "/results/run.zip" {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Results["actions"] != 3 {
		t.Errorf("results = %v", envelope.Results)
	}
}

func TestWriteError_DomainError(t *testing.T) {
	var buf bytes.Buffer
	domainErr := errors.New(errors.ErrCodeNotFound, "trace path does not exist").
		WithRemediation("check the path")

	if err := WriteError(&buf, domainErr); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	var envelope ErrorEnvelope
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if envelope.Error != "trace path does not exist" {
		t.Errorf("Error = %q", envelope.Error)
	}
	if envelope.Code != string(errors.ErrCodeNotFound) {
		t.Errorf("Code = %q", envelope.Code)
	}
	if len(envelope.Remediation) != 1 {
		t.Errorf("Remediation = %v", envelope.Remediation)
	}
}

func TestWriteError_WrappedUnderlying(t *testing.T) {
	var buf bytes.Buffer
	wrapped := errors.Wrap(stderrors.New("yaml: line 3: mapping values are not allowed"),
		errors.ErrCodeConfigLoad, "loading user config")

	if err := WriteError(&buf, wrapped); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	var envelope ErrorEnvelope
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error != "loading user config: yaml: line 3: mapping values are not allowed" {
		t.Errorf("Error = %q, want message plus underlying detail", envelope.Error)
	}
	if envelope.Code != string(errors.ErrCodeConfigLoad) {
		t.Errorf("Code = %q", envelope.Code)
	}
}

func TestWriteError_PlainError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteError(&buf, stderrors.New("something broke")); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	var envelope ErrorEnvelope
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error != "something broke" {
		t.Errorf("Error = %q", envelope.Error)
	}
	if envelope.Code != "" {
		t.Errorf("Code = %q, want empty for plain errors", envelope.Code)
	}
}

func TestWriteEnvelope_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, "console", "/r.zip", map[string]string{"text": "<div> & — ok"}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `\u003c`) {
		t.Error("HTML escaping should be off; payloads quote page markup verbatim")
	}
	if !strings.Contains(buf.String(), "<div>") {
		t.Errorf("markup should survive untouched: %s", buf.String())
	}
}
