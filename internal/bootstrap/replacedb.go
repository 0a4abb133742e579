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

package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/platform"
)

const (
	errOldTable      = "cannot load current destination table"
	errNewTable      = "cannot create replacement table"
	errRewireMapping = "cannot rewire database mapping"
	errArchiveTable  = "cannot archive old table"
)

// archivedNameFmt names an archived table: "ARCHIVED <date>-<old name>".
const archivedNameFmt = "ARCHIVED %s-%s"

// ReplaceResult reports the outcome of a destination-table replacement.
type ReplaceResult struct {
	NewTableID string
	OldTableID string
}

// ReplaceTable creates a fresh destination table for a filetype, carrying
// the old table's columns and annotations, rewires the database mapping to
// it, and moves the old table to the archive project under a date-stamped
// name. Rows are not copied; the new table starts empty.
func ReplaceTable(ctx context.Context, client platform.Client, projectID, fileType, archiveProjectID, tableName string, log logr.Logger) (*ReplaceResult, error) {
	dbm, err := dbmap.Fetch(ctx, client, projectID)
	if err != nil {
		return nil, err
	}
	oldID, err := dbm.ID(fileType)
	if err != nil {
		return nil, err
	}

	old, err := client.GetEntity(ctx, oldID, false)
	if err != nil {
		return nil, errors.Wrap(err, errOldTable)
	}
	columns, err := client.TableColumns(ctx, oldID)
	if err != nil {
		return nil, errors.Wrap(err, errOldTable)
	}

	annotations := map[string]string{}
	for k, v := range old.Annotations {
		annotations[k] = v
	}
	fresh, err := client.CreateTable(ctx, platform.TableSchema{
		Name:        tableName,
		ParentID:    projectID,
		Columns:     columns,
		Annotations: annotations,
	})
	if err != nil {
		return nil, errors.Wrap(err, errNewTable)
	}
	log.Info("created replacement table", "filetype", fileType, "table", fresh.ID)

	if err := rewireMapping(ctx, client, dbm, fileType, fresh.ID); err != nil {
		return nil, errors.Wrap(err, errRewireMapping)
	}

	old.Name = fmt.Sprintf(archivedNameFmt, time.Now().Format("2006-01-02"), old.Name)
	old.ParentID = archiveProjectID
	if _, err := client.UpdateEntity(ctx, old); err != nil {
		return nil, errors.Wrap(err, errArchiveTable)
	}
	log.Info("archived old table", "table", old.ID, "name", old.Name)

	return &ReplaceResult{NewTableID: fresh.ID, OldTableID: old.ID}, nil
}

// rewireMapping points the filetype's mapping row at the new table id.
func rewireMapping(ctx context.Context, client platform.Client, dbm *dbmap.Mapping, fileType, newID string) error {
	snap := dbm.Snapshot()
	i, ok := snap.Frame.Lookup("Database", fileType)
	if !ok {
		return errors.Errorf("no database named %q", fileType)
	}
	delta := &platform.Delta{
		Columns: snap.Frame.Columns(),
		Updates: []platform.RowUpdate{{
			Locator: snap.Locators[i],
			Values:  []string{fileType, newID},
		}},
	}
	return client.ApplyDelta(ctx, dbm.TableID, delta)
}
