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

// Package format defines the contract a file-format handler satisfies, the
// registry extension packages register handlers into, and the validation
// helper that dispatches a submission unit to the matching handler.
package format

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

// Names of the parameters a format may require for validation or
// processing.
const (
	ParamProjectID  = "ProjectID"
	ParamCenter     = "Center"
	ParamTableID    = "TableID"
	ParamScratchDir = "ScratchDir"
	ParamDBMapping  = "DBMapping"
)

// Params is the typed parameter record handed to a format's Validate and
// Process steps. A format declares which fields it requires; dispatch fails
// with a missing-parameter error when a required field is unset.
type Params struct {
	ProjectID  string
	Center     string
	TableID    string
	ScratchDir string
	DBMapping  *table.Frame
}

// Check verifies every required parameter is set.
func (p Params) Check(required []string) error {
	for _, name := range required {
		missing := false
		switch name {
		case ParamProjectID:
			missing = p.ProjectID == ""
		case ParamCenter:
			missing = p.Center == ""
		case ParamTableID:
			missing = p.TableID == ""
		case ParamScratchDir:
			missing = p.ScratchDir == ""
		case ParamDBMapping:
			missing = p.DBMapping == nil
		default:
			missing = true
		}
		if missing {
			return &MissingParameterError{Name: name}
		}
	}
	return nil
}

// MissingParameterError reports a required parameter a caller did not
// supply. It is a programmer error, not a validation outcome.
type MissingParameterError struct {
	Name string
}

// Error describes the missing parameter.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s not in parameter list", e.Name)
}

// IsMissingParameter checks whether an error reports an unsupplied required
// parameter.
func IsMissingParameter(err error) bool {
	var merr *MissingParameterError
	return errors.As(err, &merr)
}

// ReadError reports that a submission's file content could not be loaded.
// The pipeline records it as a validation error rather than failing the
// center.
type ReadError struct {
	Paths []string
	Err   error
}

// Error reproduces the message submitters see in their reports.
func (e *ReadError) Error() string {
	return fmt.Sprintf("The file(s) (%s) cannot be read. Original error: %s",
		strings.Join(e.Paths, ", "), e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsReadError checks whether an error reports unreadable file content.
func IsReadError(err error) bool {
	var rerr *ReadError
	return errors.As(err, &rerr)
}

// A Format handles one file type: filename detection, content reading,
// validation, and projection into the type's destination table.
type Format interface {
	// FiletypeTag returns the short tag identifying the format, unique
	// within a registry.
	FiletypeTag() string

	// MatchesFilename reports whether the filenames of a submission unit
	// follow this format's naming convention. Pure function of the names.
	MatchesFilename(filenames []string) bool

	// Read loads the submission unit's content into a frame. Single-file
	// formats receive one entity; paired formats receive two.
	Read(entities []*platform.Entity) (*table.Frame, error)

	// Validate checks a frame's content, returning newline-separated human
	// messages. Empty errs means the dataset is valid. A non-nil err is an
	// infrastructure failure, not a validation outcome.
	Validate(data *table.Frame, p Params) (errs, warnings string, err error)

	// Process transforms a valid dataset into the normalized form written
	// to the destination table.
	Process(data *table.Frame, p Params) (*table.Frame, error)

	// PrimaryKey returns the destination table's primary key columns.
	PrimaryKey() []string

	// RequiredValidateParams and RequiredProcessParams name the Params
	// fields Validate and Process depend on.
	RequiredValidateParams() []string
	RequiredProcessParams() []string
}
