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

package pipeline

import (
	"strconv"

	"github.com/go-logr/logr"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/status"
	"github.com/geniehub/genie/internal/table"
)

// statusRow is one entity's validation outcome before it is laid out into
// the status frame.
type statusRow struct {
	entity   *platform.Entity
	status   string
	fileType string
}

// errorRow is one entity's validation report before it is laid out into the
// error frame.
type errorRow struct {
	entity   *platform.Entity
	errors   string
	fileType string
}

// unitMessage is the notification produced by one invalid submission unit.
type unitMessage struct {
	filenames []string
	body      string
	users     []string
}

// validateUnit validates one submission unit, reusing the cached outcome
// when the reuse rule allows it. A returned message is non-nil only for a
// freshly invalid unit.
func (p *Pipeline) validateUnit(center, scratch string, unit []*platform.Entity, statusFrame, errorFrame *table.Frame, dbm *dbmap.Mapping, log logr.Logger) ([]statusRow, []errorRow, *unitMessage, error) {
	decision, err := status.CheckExisting(statusFrame, errorFrame, unit, log)
	if err != nil {
		return nil, nil, nil, err
	}

	validator := p.newValidator(format.ValidatorOptions{
		ProjectID: p.projectID,
		Center:    center,
		Entities:  unit,
		Formats:   p.formats,
		FileType:  unit[0].FiletypeHint(),
		Log:       log,
	})
	fileType := validator.FileType()

	if !decision.Revalidate {
		return reuseCached(unit, fileType, statusFrame, errorFrame), cachedErrors(unit, fileType, errorFrame), nil, nil
	}

	params := format.Params{
		ProjectID:  p.projectID,
		Center:     center,
		ScratchDir: scratch,
		DBMapping:  dbm.Snapshot().Frame,
	}
	valid, report, err := validator.ValidateSingle(params)
	if err != nil {
		return nil, nil, nil, err
	}

	state := status.Validated
	if !valid {
		state = status.Invalid
	}
	statuses := make([]statusRow, 0, len(unit))
	for _, ent := range unit {
		statuses = append(statuses, statusRow{entity: ent, status: state, fileType: fileType})
		log.Info("validated file", "name", ent.Name, "id", ent.ID, "status", state)
	}
	if valid {
		return statuses, nil, nil, nil
	}

	errorRows := make([]errorRow, 0, len(unit))
	names := make([]string, 0, len(unit))
	for _, ent := range unit {
		errorRows = append(errorRows, errorRow{entity: ent, errors: report, fileType: fileType})
		names = append(names, ent.Name)
	}
	return statuses, errorRows, &unitMessage{
		filenames: names,
		body:      report,
		users:     submitters(unit),
	}, nil
}

// reuseCached replays the cached status of every entity of the unit.
func reuseCached(unit []*platform.Entity, fileType string, statusFrame, errorFrame *table.Frame) []statusRow {
	out := make([]statusRow, 0, len(unit))
	for _, ent := range unit {
		i, ok := statusFrame.Lookup("id", ent.ID)
		if !ok {
			continue
		}
		out = append(out, statusRow{entity: ent, status: statusFrame.Value(i, "status"), fileType: fileType})
	}
	return out
}

// cachedErrors replays the cached error text of every entity that has one.
func cachedErrors(unit []*platform.Entity, fileType string, errorFrame *table.Frame) []errorRow {
	var out []errorRow
	for _, ent := range unit {
		i, ok := errorFrame.Lookup("id", ent.ID)
		if !ok {
			continue
		}
		out = append(out, errorRow{entity: ent, errors: errorFrame.Value(i, "errors"), fileType: fileType})
	}
	return out
}

// submitters returns the unit's deduplicated creator and modifier ids.
func submitters(unit []*platform.Entity) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, ent := range unit {
		for _, u := range []string{ent.ModifiedBy, ent.CreatedBy} {
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// buildStatusFrame lays validation outcomes into the status table's shape.
func buildStatusFrame(rows []statusRow, center string) *table.Frame {
	f := table.New(statusColumns...)
	for _, r := range rows {
		f.MustAppend(table.Row{
			r.entity.ID,
			r.entity.MD5,
			r.status,
			r.entity.Name,
			center,
			strconv.FormatInt(r.entity.ModifiedOn.UnixMilli(), 10),
			r.fileType,
		})
	}
	return f
}

// buildErrorFrame lays validation reports into the error table's shape.
func buildErrorFrame(rows []errorRow, center string) *table.Frame {
	f := table.New(errorColumns...)
	for _, r := range rows {
		f.MustAppend(table.Row{
			r.entity.ID,
			center,
			r.errors,
			r.entity.Name,
			r.fileType,
		})
	}
	return f
}
