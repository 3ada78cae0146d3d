package report

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/tracehound/tracehound/pkg/errors"
)

// Envelope is the single JSON document every successful invocation prints
// on stdout. All diagnostic output goes elsewhere; stdout carries exactly
// one envelope per run.
type Envelope struct {
	Command   string `json:"command"`
	TracePath string `json:"tracePath"`
	Results   any    `json:"results"`
}

// ErrorEnvelope replaces the success envelope when the invocation fails.
type ErrorEnvelope struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Remediation []string `json:"remediation,omitempty"`
}

// WriteEnvelope emits the success envelope.
func WriteEnvelope(w io.Writer, command, tracePath string, results any) error {
	return writeJSON(w, Envelope{Command: command, TracePath: tracePath, Results: results})
}

// WriteError emits the failure envelope. Domain errors contribute their
// code and remediation hints; plain errors carry only the message.
func WriteError(w io.Writer, err error) error {
	env := ErrorEnvelope{Error: err.Error()}
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		env.Error = domainErr.Message
		if domainErr.Underlying != nil {
			env.Error = domainErr.Message + ": " + domainErr.Underlying.Error()
		}
		env.Code = string(domainErr.Code)
		env.Remediation = domainErr.Remediation
	}
	return writeJSON(w, env)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
