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

// Package reconcile computes the row-level delta between a table snapshot
// and a desired dataset, keyed on a composite primary key, and applies it
// through the platform gateway. Reconciliation is idempotent: applying the
// same desired dataset twice emits no changes the second time.
package reconcile

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

const errApplyFmt = "cannot apply delta to table %s"

// schemaMismatchError indicates the desired dataset does not carry the
// existing table's columns.
type schemaMismatchError struct {
	err error
}

// Error calls the underlying error's Error method.
func (s *schemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s", s.err.Error())
}

// SchemaMismatch indicates that this is a schema mismatch error.
func (s *schemaMismatchError) SchemaMismatch() bool {
	return true
}

// Unwrap returns the underlying error.
func (s *schemaMismatchError) Unwrap() error {
	return s.err
}

type schemaMismatch interface {
	SchemaMismatch() bool
}

// IsSchemaMismatch checks whether an error reports desired/existing column
// disagreement.
func IsSchemaMismatch(err error) bool {
	var serr schemaMismatch
	return errors.As(err, &serr) && serr.SchemaMismatch()
}

func rowsEqual(a, b table.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Diff computes the append/update/delete set that makes the existing table
// content match desired. Rows are keyed on the space-joined values of the
// primary key columns. Updates carry the existing row's locator; deletes are
// emitted only when allowDeletes is set.
func Diff(existing *table.Snapshot, desired *table.Frame, primaryKey []string, allowDeletes bool, log logr.Logger) (*platform.Delta, error) {
	if err := existing.Validate(); err != nil {
		return nil, err
	}
	columns := existing.Frame.Columns()

	// The desired dataset must cover the table's columns; extra columns are
	// dropped by the reprojection.
	projected, err := desired.Select(columns)
	if err != nil {
		return nil, &schemaMismatchError{err: err}
	}

	existingIdx := make(map[string]int, existing.Frame.Len())
	for i := 0; i < existing.Frame.Len(); i++ {
		key, err := existing.Frame.Key(i, primaryKey)
		if err != nil {
			return nil, &schemaMismatchError{err: err}
		}
		// Duplicate keys in the existing table are unexpected; keep the
		// first and carry on.
		if _, ok := existingIdx[key]; !ok {
			existingIdx[key] = i
		}
	}

	delta := &platform.Delta{Columns: columns}
	desiredKeys := make(map[string]struct{}, projected.Len())
	for i := 0; i < projected.Len(); i++ {
		key, err := projected.Key(i, primaryKey)
		if err != nil {
			return nil, &schemaMismatchError{err: err}
		}
		if _, seen := desiredKeys[key]; seen {
			log.Info("duplicate key in desired dataset, keeping first", "key", key)
			continue
		}
		desiredKeys[key] = struct{}{}

		ei, ok := existingIdx[key]
		if !ok {
			delta.Appends = append(delta.Appends, projected.Row(i).Clone())
			continue
		}
		if !rowsEqual(projected.Row(i), existing.Frame.Row(ei)) {
			delta.Updates = append(delta.Updates, platform.RowUpdate{
				Locator: existing.Locators[ei],
				Values:  projected.Row(i).Clone(),
			})
		}
	}

	if allowDeletes {
		for i := 0; i < existing.Frame.Len(); i++ {
			key, err := existing.Frame.Key(i, primaryKey)
			if err != nil {
				return nil, &schemaMismatchError{err: err}
			}
			if _, ok := desiredKeys[key]; !ok {
				delta.Deletes = append(delta.Deletes, existing.Locators[i])
			}
		}
	}

	log.V(1).Info("computed delta",
		"appends", len(delta.Appends),
		"updates", len(delta.Updates),
		"deletes", len(delta.Deletes))
	return delta, nil
}

// Update diffs and applies in one step. An empty delta issues no gateway
// call.
func Update(ctx context.Context, client platform.Client, tableID string, existing *table.Snapshot, desired *table.Frame, primaryKey []string, allowDeletes bool, log logr.Logger) (*platform.Delta, error) {
	delta, err := Diff(existing, desired, primaryKey, allowDeletes, log)
	if err != nil {
		return nil, err
	}
	if delta.Empty() {
		log.V(1).Info("table already converged", "table", tableID)
		return delta, nil
	}
	log.Info("updating table", "table", tableID, "changes", delta.Size())
	if err := client.ApplyDelta(ctx, tableID, delta); err != nil {
		return nil, errors.Wrapf(err, errApplyFmt, tableID)
	}
	return delta, nil
}
