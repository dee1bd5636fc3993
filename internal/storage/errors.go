package storage

import (
	"errors"
	"fmt"
)

// PersistenceError wraps a durable-store failure with the operation that hit
// it. Transient failures are safe to retry at the same commit boundary.
type PersistenceError struct {
	Op        string
	Err       error
	transient bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Transient() bool {
	return e.transient
}

// Wrap returns nil for a nil err. classify decides whether the failure is
// transient; a nil classify marks everything fatal.
func Wrap(op string, err error, classify func(error) bool) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	transient := false
	if classify != nil {
		transient = classify(err)
	}
	return &PersistenceError{Op: op, Err: err, transient: transient}
}

func IsTransient(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}

var ErrNotFound = errors.New("not found")
