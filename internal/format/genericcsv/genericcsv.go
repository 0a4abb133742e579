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

// Package genericcsv is the built-in format registry package. It handles
// tab-separated ".csv" submissions: one file per unit, "#"-prefixed comment
// lines, column names normalized to upper case, and a CENTER column injected
// during processing.
package genericcsv

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

// PackageName is the name callers pass via --format-registry-packages.
const PackageName = "genericcsv"

const (
	errOneFile     = "csv submissions are a single file"
	errOpenFileFmt = "cannot open %s"
)

func init() {
	format.RegisterPackage(PackageName, format.Descriptor{
		Formats:   []format.Ctor{New},
		Validator: format.NewHelper,
	})
}

// Csv is the built-in tab-separated file format.
type Csv struct{}

var _ format.Format = &Csv{}

// New constructs a Csv format.
func New() format.Format {
	return &Csv{}
}

// FiletypeTag returns "csv".
func (c *Csv) FiletypeTag() string {
	return "csv"
}

// MatchesFilename accepts a single file with a ".csv" extension.
func (c *Csv) MatchesFilename(filenames []string) bool {
	return len(filenames) == 1 && strings.HasSuffix(filenames[0], ".csv")
}

// Read loads the submission as tab-separated text with "#" comment lines.
func (c *Csv) Read(entities []*platform.Entity) (*table.Frame, error) {
	if len(entities) != 1 {
		return nil, errors.New(errOneFile)
	}
	f, err := os.Open(entities[0].Path)
	if err != nil {
		return nil, errors.Wrapf(err, errOpenFileFmt, entities[0].Path)
	}
	defer f.Close() // nolint:errcheck
	return readTSV(f)
}

func readTSV(r io.Reader) (*table.Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return table.New(), nil
	}
	fr := table.New(records[0]...)
	for _, rec := range records[1:] {
		row := make(table.Row, len(records[0]))
		copy(row, rec)
		if err := fr.Append(row); err != nil {
			return nil, err
		}
	}
	return fr, nil
}

// Validate requires a non-empty dataset with an "id" column.
func (c *Csv) Validate(data *table.Frame, _ format.Params) (string, string, error) {
	var total []string
	var warnings []string
	if len(data.Columns()) == 0 || data.Len() == 0 {
		total = append(total, "csv: File must not be empty")
	}
	if len(data.Columns()) > 0 && !hasColumnFold(data, "id") {
		total = append(total, "csv: File must have an id column")
	}
	if hasColumnFold(data, "center") {
		warnings = append(warnings, "csv: CENTER column is set during processing and will be overwritten")
	}
	return strings.Join(total, "\n"), strings.Join(warnings, "\n"), nil
}

func hasColumnFold(data *table.Frame, name string) bool {
	for _, col := range data.Columns() {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// Process normalizes column names to upper case and stamps every row with
// the submitting center. Any CENTER column in the submission is replaced.
func (c *Csv) Process(data *table.Frame, p format.Params) (*table.Frame, error) {
	if err := p.Check(c.RequiredProcessParams()); err != nil {
		return nil, err
	}
	var keep []string
	for _, col := range data.Columns() {
		if !strings.EqualFold(col, "center") {
			keep = append(keep, col)
		}
	}
	projected, err := data.Select(keep)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(keep)+1)
	for _, col := range keep {
		columns = append(columns, strings.ToUpper(col))
	}
	columns = append(columns, "CENTER")
	out := table.New(columns...)
	for _, row := range projected.Rows() {
		if err := out.Append(append(row.Clone(), p.Center)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PrimaryKey identifies a logical row by center and id.
func (c *Csv) PrimaryKey() []string {
	return []string{"CENTER", "ID"}
}

// RequiredValidateParams returns the parameters Validate depends on.
func (c *Csv) RequiredValidateParams() []string {
	return nil
}

// RequiredProcessParams returns the parameters Process depends on.
func (c *Csv) RequiredProcessParams() []string {
	return []string{format.ParamCenter}
}
