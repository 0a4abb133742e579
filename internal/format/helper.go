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

package format

import (
	"sort"
	"strings"

	"github.com/go-logr/logr"
)

// Canonical report strings. Submitters see these verbatim.
const (
	MsgFileValidated = "YOUR FILE IS VALIDATED!\n"

	MsgFilenameIncorrect = "Your filename is incorrect! Please change your " +
		"filename before you run the validator or specify --filetype if you " +
		"are running the validator locally"

	errorsBanner   = "----------------ERRORS----------------\n"
	warningsBanner = "-------------WARNINGS-------------\n"
)

// Helper is the default Validator: it determines the filetype of a
// submission unit by filename, dispatches to the matching format, and
// assembles the user-facing report.
type Helper struct {
	opts     ValidatorOptions
	fileType string
}

var _ Validator = &Helper{}

// NewHelper constructs the default validation helper. The filetype is
// determined on construction unless the caller supplied one explicitly.
func NewHelper(opts ValidatorOptions) Validator {
	h := &Helper{opts: opts, fileType: opts.FileType}
	if h.fileType == "" {
		h.fileType = h.determineFiletype()
	}
	return h
}

// FileType returns the determined filetype tag, empty when nothing matched.
func (h *Helper) FileType() string {
	return h.fileType
}

// determineFiletype returns the lexically first registered tag whose format
// accepts the submission's filenames. Probing in sorted tag order keeps the
// outcome stable when naming conventions overlap.
func (h *Helper) determineFiletype() string {
	filenames := make([]string, len(h.opts.Entities))
	for i, ent := range h.opts.Entities {
		filenames[i] = ent.Name
	}
	tags := make([]string, 0, len(h.opts.Formats))
	for tag := range h.opts.Formats {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if h.opts.Formats[tag]().MatchesFilename(filenames) {
			return tag
		}
	}
	return ""
}

// ValidateSingle reads and validates the submission unit, returning the
// validity and the consolidated report.
func (h *Helper) ValidateSingle(p Params) (bool, string, error) {
	ctor, known := h.opts.Formats[h.fileType]
	if !known {
		return false, CollectErrorsAndWarnings(MsgFilenameIncorrect, "", h.opts.Log), nil
	}

	f := ctor()
	if err := p.Check(f.RequiredValidateParams()); err != nil {
		return false, "", err
	}

	var errs, warnings string
	data, err := f.Read(h.opts.Entities)
	if err != nil {
		// Unreadable content is a validation outcome, not a pipeline
		// failure.
		paths := make([]string, len(h.opts.Entities))
		for i, ent := range h.opts.Entities {
			paths[i] = ent.Path
		}
		errs = (&ReadError{Paths: paths, Err: err}).Error()
	} else {
		h.opts.Log.Info("validating", "filetype", h.fileType)
		if errs, warnings, err = f.Validate(data, p); err != nil {
			return false, "", err
		}
	}

	valid := errs == ""
	return valid, CollectErrorsAndWarnings(errs, warnings, h.opts.Log), nil
}

// CollectErrorsAndWarnings aggregates errors and warnings into the report
// submitters receive: an ERRORS section when errors are present, a WARNINGS
// section when warnings are, and the success banner when both are empty.
func CollectErrorsAndWarnings(errs, warnings string, log logr.Logger) string {
	message := errorsBanner
	if errs == "" {
		message = MsgFileValidated
	} else {
		for _, line := range strings.Split(errs, "\n") {
			if line != "" {
				log.Info(line, "severity", "error")
			}
		}
		message += errs
	}
	if warnings != "" {
		for _, line := range strings.Split(warnings, "\n") {
			if line != "" {
				log.Info(line, "severity", "warning")
			}
		}
		message += warningsBanner + warnings
	}
	return message
}
