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
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/table"
)

const errEncodeDelta = "cannot encode delta"

// A RowUpdate replaces the full value vector of an existing row.
type RowUpdate struct {
	Locator table.RowLocator
	Values  table.Row
}

// A Delta is a row-level change set for one table: appended rows, updated
// rows carrying their locators, and deleted rows by locator.
type Delta struct {
	Columns []string
	Appends []table.Row
	Updates []RowUpdate
	Deletes []table.RowLocator
}

// Empty reports whether applying the delta would change nothing.
func (d *Delta) Empty() bool {
	return len(d.Appends) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

// Size returns the total number of row changes.
func (d *Delta) Size() int {
	return len(d.Appends) + len(d.Updates) + len(d.Deletes)
}

// Encode serializes the delta to the platform's bulk update form: a CSV
// whose header is ROW_ID,ROW_VERSION followed by the table columns. Appends
// and updates come first, then deletes as bare locators.
func (d *Delta) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string{"ROW_ID", "ROW_VERSION"}, d.Columns...)
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, errEncodeDelta)
	}
	for _, r := range d.Appends {
		if err := w.Write(append([]string{"", ""}, r...)); err != nil {
			return nil, errors.Wrap(err, errEncodeDelta)
		}
	}
	for _, u := range d.Updates {
		rec := append([]string{u.Locator.RowID, u.Locator.RowVersion}, u.Values...)
		if err := w.Write(rec); err != nil {
			return nil, errors.Wrap(err, errEncodeDelta)
		}
	}
	for _, l := range d.Deletes {
		if err := w.Write([]string{l.RowID, l.RowVersion}); err != nil {
			return nil, errors.Wrap(err, errEncodeDelta)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, errEncodeDelta)
	}
	return []byte(sanitizeIntegers(buf.String())), nil
}

// sanitizeIntegers strips the trailing ".0" an integer column picks up when
// a blank cell forces a floating representation, so the persisted form stays
// integral. Only values immediately before a field separator or record
// terminator are touched.
func sanitizeIntegers(s string) string {
	s = strings.ReplaceAll(s, ".0,", ",")
	s = strings.ReplaceAll(s, ".0\n", "\n")
	s = strings.ReplaceAll(s, ".0\r\n", "\r\n")
	return s
}
