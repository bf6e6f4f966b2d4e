package reactor

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHandler     = errors.New("reactor: invalid handler")
	ErrAlreadyRegistered  = errors.New("reactor: handle already registered")
	ErrNotRegistered      = errors.New("reactor: handle not registered")
	ErrBackendCreate      = errors.New("reactor: backend create failed")
	ErrBackendAdd         = errors.New("reactor: backend add failed")
	ErrBackendModify      = errors.New("reactor: backend modify failed")
	ErrBackendRemove      = errors.New("reactor: backend remove failed")
	ErrBackendWait        = errors.New("reactor: backend wait failed")
	ErrBackendUnsupported = errors.New("reactor: backend type unsupported")
	ErrClosed             = errors.New("reactor: closed")
	ErrRunning            = errors.New("reactor: running")
)

// BackendError reports a failed backend operation. It matches both its Kind
// (one of the ErrBackend* values) and the underlying cause with errors.Is.
type BackendError struct {
	Kind error
	Op   string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *BackendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func backendError(kind error, op string, err error) error {
	return &BackendError{Kind: kind, Op: op, Err: err}
}
