// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrStateNotFound      = errors.New("state not found")
	ErrOutOfRange         = errors.New("value out of range")
	ErrEmptyMask          = errors.New("empty FDK mask")
	ErrUnsupported        = errors.New("unsupported value")
	ErrBufferFull         = errors.New("buffer full")
	ErrInvalidDigit       = errors.New("invalid digit")
	ErrNoCard             = errors.New("no card present")
	ErrInvalidTrack2      = errors.New("invalid track 2 data")
	ErrNoExtension        = errors.New("extension state not found")
	ErrNotExtension       = errors.New("referenced state is not an extension state")
	ErrCoordination       = errors.New("coordination number mismatch")
	ErrUnknownKey         = errors.New("unknown key")
	ErrUnknownInstitution = errors.New("no institution for card")
)

// ValidationError reports an in-session value that was rejected. The
// mutation it guarded is skipped; processing continues.
type ValidationError struct {
	Op    string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(op, value string, err error) error {
	return &ValidationError{Op: op, Value: value, Err: err}
}
