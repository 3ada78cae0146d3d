package main

import (
	stderrors "errors"

	"github.com/tracehound/tracehound/pkg/errors"
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// exitCodeForError maps a command error to a process exit code. Explicit
// exitCoder wrappers win; otherwise configuration errors exit 2 and
// everything else exits 1.
func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if stderrors.As(err, &coded) {
		return coded.ExitCode()
	}
	var domainErr *errors.Error
	if stderrors.As(err, &domainErr) {
		switch domainErr.Code {
		case errors.ErrCodeConfigLoad, errors.ErrCodeConfigInvalid:
			return 2
		}
	}
	return 1
}
