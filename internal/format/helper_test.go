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
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

// fakeFormat is a configurable Format for helper tests.
type fakeFormat struct {
	tag      string
	match    func([]string) bool
	readErr  error
	errs     string
	warnings string
}

func (f *fakeFormat) FiletypeTag() string                  { return f.tag }
func (f *fakeFormat) MatchesFilename(names []string) bool  { return f.match(names) }
func (f *fakeFormat) PrimaryKey() []string                 { return []string{"ID"} }
func (f *fakeFormat) RequiredValidateParams() []string     { return nil }
func (f *fakeFormat) RequiredProcessParams() []string      { return nil }
func (f *fakeFormat) Read(_ []*platform.Entity) (*table.Frame, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return table.New("ID"), nil
}
func (f *fakeFormat) Validate(_ *table.Frame, _ Params) (string, string, error) {
	return f.errs, f.warnings, nil
}
func (f *fakeFormat) Process(data *table.Frame, _ Params) (*table.Frame, error) {
	return data, nil
}

func ctorFor(f Format) Ctor { return func() Format { return f } }

func TestHelperFileType(t *testing.T) {
	formats := map[string]Ctor{
		"tsv": ctorFor(&fakeFormat{tag: "tsv", match: func(n []string) bool {
			return strings.HasSuffix(n[0], ".tsv")
		}}),
	}

	cases := map[string]struct {
		reason   string
		entities []*platform.Entity
		hint     string
		want     string
	}{
		"DetectedByName": {
			reason:   "The first format whose convention accepts the names wins.",
			entities: []*platform.Entity{{Name: "data.tsv"}},
			want:     "tsv",
		},
		"NoMatch": {
			reason:   "No matching convention leaves the filetype empty.",
			entities: []*platform.Entity{{Name: "data.bin"}},
			want:     "",
		},
		"ExplicitHintWins": {
			reason:   "An explicit filetype skips detection entirely.",
			entities: []*platform.Entity{{Name: "data.bin"}},
			hint:     "tsv",
			want:     "tsv",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHelper(ValidatorOptions{
				Entities: tc.entities,
				Formats:  formats,
				FileType: tc.hint,
				Log:      logr.Discard(),
			})
			if got := h.FileType(); got != tc.want {
				t.Errorf("\n%s\nFileType(): want %q, got %q", tc.reason, tc.want, got)
			}
		})
	}
}

func TestHelperFileTypeOverlapIsStable(t *testing.T) {
	// Two conventions accept the same names; the lexically first tag must win
	// on every construction regardless of map iteration order.
	csv := func(n []string) bool { return strings.HasSuffix(n[0], ".csv") }
	formats := map[string]Ctor{
		"alpha": ctorFor(&fakeFormat{tag: "alpha", match: csv}),
		"beta":  ctorFor(&fakeFormat{tag: "beta", match: csv}),
	}

	for i := 0; i < 200; i++ {
		h := NewHelper(ValidatorOptions{
			Entities: []*platform.Entity{{Name: "data.csv"}},
			Formats:  formats,
			Log:      logr.Discard(),
		})
		if got := h.FileType(); got != "alpha" {
			t.Fatalf("FileType(): want alpha on every construction, got %q on run %d", got, i)
		}
	}
}

func TestHelperValidateSingle(t *testing.T) {
	match := func(n []string) bool { return strings.HasSuffix(n[0], ".tsv") }

	cases := map[string]struct {
		reason     string
		format     *fakeFormat
		entities   []*platform.Entity
		wantValid  bool
		wantInText []string
	}{
		"Valid": {
			reason:     "No errors yields the success banner.",
			format:     &fakeFormat{tag: "tsv", match: match},
			entities:   []*platform.Entity{{Name: "data.tsv"}},
			wantValid:  true,
			wantInText: []string{MsgFileValidated},
		},
		"Invalid": {
			reason:     "Errors render under the ERRORS banner.",
			format:     &fakeFormat{tag: "tsv", match: match, errs: "bad header"},
			entities:   []*platform.Entity{{Name: "data.tsv"}},
			wantValid:  false,
			wantInText: []string{"ERRORS", "bad header"},
		},
		"Warnings": {
			reason:     "Warnings render under the WARNINGS banner without failing.",
			format:     &fakeFormat{tag: "tsv", match: match, warnings: "odd column"},
			entities:   []*platform.Entity{{Name: "data.tsv"}},
			wantValid:  true,
			wantInText: []string{MsgFileValidated, "WARNINGS", "odd column"},
		},
		"IncorrectFilename": {
			reason:     "An unmatched filename reports the canonical message.",
			format:     &fakeFormat{tag: "tsv", match: match},
			entities:   []*platform.Entity{{Name: "data.bin"}},
			wantValid:  false,
			wantInText: []string{MsgFilenameIncorrect},
		},
		"UnreadableContent": {
			reason:     "Unreadable content is a validation outcome, not a failure.",
			format:     &fakeFormat{tag: "tsv", match: match, readErr: errors.New("corrupt")},
			entities:   []*platform.Entity{{Name: "data.tsv", Path: "/tmp/data.tsv"}},
			wantValid:  false,
			wantInText: []string{"cannot be read", "corrupt", "/tmp/data.tsv"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHelper(ValidatorOptions{
				Entities: tc.entities,
				Formats:  map[string]Ctor{"tsv": ctorFor(tc.format)},
				Log:      logr.Discard(),
			})
			valid, report, err := h.ValidateSingle(Params{})
			if err != nil {
				t.Fatalf("\n%s\nValidateSingle(...): %v", tc.reason, err)
			}
			if valid != tc.wantValid {
				t.Errorf("\n%s\nValidateSingle(...): want valid=%v, got %v", tc.reason, tc.wantValid, valid)
			}
			for _, want := range tc.wantInText {
				if !strings.Contains(report, want) {
					t.Errorf("\n%s\nValidateSingle(...): report missing %q:\n%s", tc.reason, want, report)
				}
			}
		})
	}
}

func TestParamsCheck(t *testing.T) {
	p := Params{ProjectID: "syn123", Center: "SAGE"}
	if err := p.Check([]string{ParamProjectID, ParamCenter}); err != nil {
		t.Errorf("Check(...): unexpected error: %v", err)
	}
	err := p.Check([]string{ParamTableID})
	if !IsMissingParameter(err) {
		t.Fatalf("Check(...): want missing parameter, got %v", err)
	}
	if want := "TableID not in parameter list"; err.Error() != want {
		t.Errorf("Check(...): want %q, got %q", want, err.Error())
	}
}

func TestCollectFormatTypes(t *testing.T) {
	match := func([]string) bool { return false }
	RegisterPackage("zz-test-a", Descriptor{Formats: []Ctor{ctorFor(&fakeFormat{tag: "dup", match: match})}})
	RegisterPackage("zz-test-b", Descriptor{Formats: []Ctor{
		ctorFor(&fakeFormat{tag: "dup", match: match}),
		ctorFor(&fakeFormat{tag: "other", match: match}),
	}})

	got, err := CollectFormatTypes([]string{"zz-test-b", "zz-test-a"}, logr.Discard())
	if err != nil {
		t.Fatalf("CollectFormatTypes(...): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("CollectFormatTypes(...): want 2 tags, got %d", len(got))
	}

	if _, err := CollectFormatTypes([]string{"nope"}, logr.Discard()); err == nil {
		t.Error("CollectFormatTypes(...): expected error for unknown package")
	}
}

func TestCollectValidationHelper(t *testing.T) {
	RegisterPackage("zz-test-helper", Descriptor{Validator: NewHelper})

	ctor, err := CollectValidationHelper([]string{"zz-test-helper"})
	if err != nil || ctor == nil {
		t.Fatalf("CollectValidationHelper(...): ctor=%v err=%v", ctor, err)
	}

	RegisterPackage("zz-test-empty", Descriptor{})
	if _, err := CollectValidationHelper([]string{"zz-test-empty"}); err == nil {
		t.Error("CollectValidationHelper(...): expected error when no package contributes one")
	}
}
