package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound      = errors.New("no stored content")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrHandleRevoked = errors.New("file handle is no longer valid")
	ErrCancelled     = errors.New("cancelled by user")
	ErrNoFile        = errors.New("no file is bound to the session")
	ErrClosed        = errors.New("session is closed")
	ErrNoTask        = errors.New("no such task item")
)

// StorageError reports a failed load or save against a target.
type StorageError struct {
	Op     string
	Target Target
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
