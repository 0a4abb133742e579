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

// Package table models tabular data exchanged with the platform. A Frame is
// an ordered collection of string-valued rows; the empty string is the only
// representation of a missing value. A Snapshot pairs a Frame with the row
// locators returned by a tabular query.
package table

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	errColumnNotFoundFmt = "column not found: %s"
	errRowWidthFmt       = "row has %d values, frame has %d columns"
	errLocatorFmt        = "malformed row locator: %q"
	errIndexLenFmt       = "snapshot has %d locators for %d rows"
)

// A Row is one record of a Frame. Values align with the owning Frame's
// column order.
type Row []string

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// A Frame is a column-ordered, row-oriented dataset.
type Frame struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New constructs an empty Frame with the given column order.
func New(columns ...string) *Frame {
	f := &Frame{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range f.columns {
		f.index[c] = i
	}
	return f
}

// Columns returns the column order of the frame.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Row returns the i-th row.
func (f *Frame) Row(i int) Row {
	return f.rows[i]
}

// Rows returns all rows in order.
func (f *Frame) Rows() []Row {
	return f.rows
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Append adds a row to the frame. The row width must match the column count.
func (f *Frame) Append(r Row) error {
	if len(r) != len(f.columns) {
		return errors.Errorf(errRowWidthFmt, len(r), len(f.columns))
	}
	f.rows = append(f.rows, r)
	return nil
}

// MustAppend adds a row and panics on width mismatch. For use with rows
// constructed in the same function as the frame.
func (f *Frame) MustAppend(r Row) {
	if err := f.Append(r); err != nil {
		panic(err)
	}
}

// Value returns the named column's value of the i-th row.
func (f *Frame) Value(i int, column string) string {
	ci, ok := f.index[column]
	if !ok {
		return ""
	}
	return f.rows[i][ci]
}

// SetValue sets the named column's value on the i-th row.
func (f *Frame) SetValue(i int, column, value string) error {
	ci, ok := f.index[column]
	if !ok {
		return errors.Errorf(errColumnNotFoundFmt, column)
	}
	f.rows[i][ci] = value
	return nil
}

// Lookup returns the index of the first row whose column equals value.
func (f *Frame) Lookup(column, value string) (int, bool) {
	ci, ok := f.index[column]
	if !ok {
		return 0, false
	}
	for i, r := range f.rows {
		if r[ci] == value {
			return i, true
		}
	}
	return 0, false
}

// Filter returns a new frame holding the rows for which keep returns true.
// Row order is preserved and rows are shared, not copied.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := New(f.columns...)
	for _, r := range f.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Select reprojects the frame to the given column order. Every requested
// column must exist.
func (f *Frame) Select(columns []string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		ci, ok := f.index[c]
		if !ok {
			return nil, errors.Errorf(errColumnNotFoundFmt, c)
		}
		idx[i] = ci
	}
	out := New(columns...)
	for _, r := range f.rows {
		nr := make(Row, len(columns))
		for i, ci := range idx {
			nr[i] = r[ci]
		}
		out.rows = append(out.rows, nr)
	}
	return out, nil
}

// Key synthesizes the reconciliation key of the i-th row: the space-joined
// values of the primary key columns, in order.
func (f *Frame) Key(i int, primaryKey []string) (string, error) {
	parts := make([]string, len(primaryKey))
	for j, c := range primaryKey {
		ci, ok := f.index[c]
		if !ok {
			return "", errors.Errorf(errColumnNotFoundFmt, c)
		}
		parts[j] = f.rows[i][ci]
	}
	return strings.Join(parts, " "), nil
}

// A RowLocator addresses an existing row of a platform table. Locators are
// opaque to the pipeline and are carried through unchanged between query and
// update.
type RowLocator struct {
	RowID      string
	RowVersion string
}

// ParseRowLocator parses the platform's "<rowId>_<rowVersion>" form.
func ParseRowLocator(s string) (RowLocator, error) {
	id, version, ok := strings.Cut(s, "_")
	if !ok || id == "" || version == "" {
		return RowLocator{}, errors.Errorf(errLocatorFmt, s)
	}
	return RowLocator{RowID: id, RowVersion: version}, nil
}

// String serializes the locator back to the platform's wire form.
func (l RowLocator) String() string {
	return l.RowID + "_" + l.RowVersion
}

// A Snapshot is a queried table state: a frame plus one locator per row.
type Snapshot struct {
	Frame    *Frame
	Locators []RowLocator
}

// Validate checks the locator index aligns with the frame.
func (s *Snapshot) Validate() error {
	if len(s.Locators) != s.Frame.Len() {
		return errors.Errorf(errIndexLenFmt, len(s.Locators), s.Frame.Len())
	}
	return nil
}
