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

// Package dbmap resolves the project's database-to-table mapping: the
// dbMapping table whose id is carried on the project annotation, mapping
// logical database names to entity ids.
package dbmap

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

// Names of the fixed databases every project carries.
const (
	DBCenterMapping    = "centerMapping"
	DBValidationStatus = "validationStatus"
	DBErrorTracker     = "errorTracker"
	DBMapping          = "dbMapping"
	DBLogs             = "logs"
)

// AnnotationKey is the project annotation holding the dbMapping table id.
const AnnotationKey = "dbMapping"

const (
	errNoAnnotationFmt = "project %s has no %s annotation"
	errNoDatabaseFmt   = "no database named %q in mapping table %s"
	errFetchProject    = "cannot fetch project"
	errFetchMapping    = "cannot fetch database mapping table"
)

// A Mapping is the loaded database-to-id mapping of one project.
type Mapping struct {
	// TableID is the id of the dbMapping table itself.
	TableID string

	snapshot *table.Snapshot
}

// Fetch loads the mapping table referenced by the project's annotation.
func Fetch(ctx context.Context, client platform.Client, projectID string) (*Mapping, error) {
	project, err := client.GetEntity(ctx, projectID, false)
	if err != nil {
		return nil, errors.Wrap(err, errFetchProject)
	}
	tableID := project.Annotations[AnnotationKey]
	if tableID == "" {
		return nil, errors.Errorf(errNoAnnotationFmt, projectID, AnnotationKey)
	}
	snap, err := client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s", tableID))
	if err != nil {
		return nil, errors.Wrap(err, errFetchMapping)
	}
	return &Mapping{TableID: tableID, snapshot: snap}, nil
}

// ID returns the entity id mapped to the given database name.
func (m *Mapping) ID(database string) (string, error) {
	i, ok := m.snapshot.Frame.Lookup("Database", database)
	if !ok {
		return "", errors.Errorf(errNoDatabaseFmt, database, m.TableID)
	}
	return m.snapshot.Frame.Value(i, "Id"), nil
}

// Has reports whether the mapping carries the given database name.
func (m *Mapping) Has(database string) bool {
	_, ok := m.snapshot.Frame.Lookup("Database", database)
	return ok
}

// Snapshot returns the queried mapping table state.
func (m *Mapping) Snapshot() *table.Snapshot {
	return m.snapshot
}
