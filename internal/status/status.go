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

// Package status decides, per submission unit, whether a full revalidation
// is needed or the cached validation outcome can be reused.
package status

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

// Validation states recorded in the status table.
const (
	Validated = "VALIDATED"
	Invalid   = "INVALID"
)

const errTooManyEntities = "at most two entities per submission unit"

// A Decision is the outcome of checking a submission unit against the
// cached status and error tables.
type Decision struct {
	// Revalidate is true when any entity of the unit needs a fresh
	// validation run.
	Revalidate bool

	// Statuses are the cached statuses of the unit's entities, in order,
	// for entities that have one.
	Statuses []string

	// Errors are the cached error texts of the unit's entities, for
	// entities that have one.
	Errors []string
}

// CheckExisting applies the reuse rule to one submission unit: revalidate
// iff an entity is unknown, its md5 or name changed, or it is marked INVALID
// without a matching error row. Otherwise the cached status is reused
// verbatim.
func CheckExisting(statusFrame, errorFrame *table.Frame, entities []*platform.Entity, log logr.Logger) (Decision, error) {
	if len(entities) > 2 {
		return Decision{}, errors.New(errTooManyEntities)
	}

	var d Decision
	for _, ent := range entities {
		si, known := statusFrame.Lookup("id", ent.ID)
		if !known {
			d.Revalidate = true
			continue
		}
		cached := statusFrame.Value(si, "status")
		d.Statuses = append(d.Statuses, cached)

		ei, hasError := errorFrame.Lookup("id", ent.ID)
		if hasError {
			d.Errors = append(d.Errors, errorFrame.Value(ei, "errors"))
		} else if cached == Invalid {
			// An INVALID status without a recorded reason cannot be
			// reused; the error text would be lost.
			d.Revalidate = true
		}

		if statusFrame.Value(si, "md5") != ent.MD5 || statusFrame.Value(si, "name") != ent.Name {
			d.Revalidate = true
		} else {
			log.Info("cached file status", "name", ent.Name, "id", ent.ID, "status", cached)
		}
	}
	return d, nil
}
