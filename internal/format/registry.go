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
	"sync"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
)

const (
	errUnknownPackageFmt = "unknown format registry package: %s"
	errNoValidator       = "no validation helper contributed by the registry packages"
)

// Ctor constructs a fresh Format instance.
type Ctor func() Format

// A Validator validates one submission unit. The default implementation is
// Helper; extension packages may contribute their own.
type Validator interface {
	// FileType returns the determined filetype tag, or the empty string
	// when no registered format matched.
	FileType() string

	// ValidateSingle runs the matching format's validator and assembles
	// the user-facing report. valid is true iff no errors were produced.
	ValidateSingle(p Params) (valid bool, report string, err error)
}

// ValidatorOptions configures a Validator for one submission unit.
type ValidatorOptions struct {
	ProjectID string
	Center    string
	Entities  []*platform.Entity
	Formats   map[string]Ctor

	// FileType skips filename-based detection when set.
	FileType string

	Log logr.Logger
}

// ValidatorCtor constructs a Validator.
type ValidatorCtor func(ValidatorOptions) Validator

// Descriptor is an extension package's contribution to the registry: its
// format constructors and, optionally, a validation helper.
type Descriptor struct {
	Formats   []Ctor
	Validator ValidatorCtor
}

var (
	regMu    sync.Mutex
	registry = map[string]Descriptor{}
)

// RegisterPackage records an extension package's descriptor under its name.
// Called from the package's init.
func RegisterPackage(name string, d Descriptor) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = d
}

// CollectFormatTypes builds the filetype tag to constructor mapping from the
// named extension packages. When two packages declare the same tag, the one
// from the lexically first package wins and a warning is logged.
func CollectFormatTypes(packages []string, log logr.Logger) (map[string]Ctor, error) {
	regMu.Lock()
	defer regMu.Unlock()

	sorted := append([]string(nil), packages...)
	sort.Strings(sorted)

	out := map[string]Ctor{}
	for _, name := range sorted {
		desc, ok := registry[name]
		if !ok {
			return nil, errors.Errorf(errUnknownPackageFmt, name)
		}
		for _, ctor := range desc.Formats {
			tag := ctor().FiletypeTag()
			if _, exists := out[tag]; exists {
				log.Info("duplicate filetype tag, keeping first", "filetype", tag, "package", name)
				continue
			}
			out[tag] = ctor
		}
	}
	return out, nil
}

// CollectValidationHelper returns the validation-helper constructor from the
// named extension packages. Exactly one is expected; absence is fatal, and
// ties resolve to the lexically first package.
func CollectValidationHelper(packages []string) (ValidatorCtor, error) {
	regMu.Lock()
	defer regMu.Unlock()

	sorted := append([]string(nil), packages...)
	sort.Strings(sorted)

	for _, name := range sorted {
		desc, ok := registry[name]
		if !ok {
			return nil, errors.Errorf(errUnknownPackageFmt, name)
		}
		if desc.Validator != nil {
			return desc.Validator, nil
		}
	}
	return nil, errors.New(errNoValidator)
}
