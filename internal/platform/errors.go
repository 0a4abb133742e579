// Copyright 2024 The Genie Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package platform

import (
	"fmt"

	"github.com/pkg/errors"
)

// transientError is a platform failure worth retrying: throttling, gateway
// errors, connection resets.
type transientError struct {
	err error
}

// Error calls the underlying error's Error method.
func (t *transientError) Error() string {
	return fmt.Sprintf("transient: %s", t.err.Error())
}

// Transient indicates that this is a transient error.
func (t *transientError) Transient() bool {
	return true
}

// Unwrap returns the underlying error.
func (t *transientError) Unwrap() error {
	return t.err
}

// NewTransient wraps an existing error as a transient platform error.
func NewTransient(err error) error {
	return &transientError{err: err}
}

type transient interface {
	Transient() bool
}

// IsTransient checks whether an error is a retryable platform failure.
func IsTransient(err error) bool {
	var terr transient
	return errors.As(err, &terr) && terr.Transient()
}

// fatalError is a non-retryable platform failure: auth, permission,
// not-found. It aborts the current center's pipeline.
type fatalError struct {
	err error
}

// Error calls the underlying error's Error method.
func (f *fatalError) Error() string {
	return fmt.Sprintf("fatal: %s", f.err.Error())
}

// Fatal indicates that this is a fatal error.
func (f *fatalError) Fatal() bool {
	return true
}

// Unwrap returns the underlying error.
func (f *fatalError) Unwrap() error {
	return f.err
}

// NewFatal wraps an existing error as a fatal platform error.
func NewFatal(err error) error {
	return &fatalError{err: err}
}

type fatal interface {
	Fatal() bool
}

// IsFatal checks whether an error is a non-retryable platform failure.
func IsFatal(err error) bool {
	var ferr fatal
	return errors.As(err, &ferr) && ferr.Fatal()
}
