package cli

import (
	"errors"
	"strconv"
)

// ExitError carries the process exit status for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *ExitError) ExitStatus() int { return e.Code }

// exitCoder is implemented by errors that choose this process's exit status.
// The method name differs from exec.ExitError.ExitCode so a child process
// status never leaks through.
type exitCoder interface {
	ExitStatus() int
}

// ExitCode maps err to a process exit status: 0 for nil, the outermost
// carried code for coded errors, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) && coded.ExitStatus() > 0 {
		return coded.ExitStatus()
	}
	return 1
}
