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

// Package pipeline orchestrates the per-center run: enumerate inputs,
// validate, reconcile the status and error tables, notify submitters, and
// project valid files into their format tables. Centers are independent and
// run one worker each; inside a center the step order is strict.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/logcapture"
	"github.com/geniehub/genie/internal/notify"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/reconcile"
	"github.com/geniehub/genie/internal/status"
	"github.com/geniehub/genie/internal/table"
)

const (
	errCentersFailedFmt = "%d of %d centers failed"
	errListInputsFmt    = "cannot list input files for %s"
	errQueryTableFmt    = "cannot query %s table"
	errScratchDirFmt    = "cannot prepare scratch directory for %s"
)

// statusColumns is the persisted layout of the validation status table.
var statusColumns = []string{"id", "md5", "status", "name", "center", "modifiedOn", "fileType"}

// errorColumns is the persisted layout of the error tracker table.
var errorColumns = []string{"id", "center", "errors", "name", "fileType"}

// Options tune one pipeline run.
type Options struct {
	// OnlyValidate skips projecting valid files into their format tables.
	OnlyValidate bool

	// DeleteOld wipes the center's scratch directory before the run.
	DeleteOld bool

	// DownloadFiles fetches file content, not just metadata.
	DownloadFiles bool

	// ScratchRoot is the local working directory root.
	ScratchRoot string
}

// Pipeline validates and processes each center's input files.
type Pipeline struct {
	client       platform.Client
	projectID    string
	formats      map[string]format.Ctor
	newValidator format.ValidatorCtor
	fs           afero.Fs
	log          logr.Logger
}

// New constructs a Pipeline.
func New(client platform.Client, projectID string, formats map[string]format.Ctor, newValidator format.ValidatorCtor, fs afero.Fs, log logr.Logger) *Pipeline {
	return &Pipeline{
		client:       client,
		projectID:    projectID,
		formats:      formats,
		newValidator: newValidator,
		fs:           fs,
		log:          log,
	}
}

// Run processes the given centers, one worker per center. A center's
// failure does not interrupt the others; the returned error is non-nil iff
// any center failed fatally.
func (p *Pipeline) Run(ctx context.Context, centers []string, centerMap *table.Frame, dbm *dbmap.Mapping, opts Options) error {
	results := make([]error, len(centers))
	var g errgroup.Group
	for i, center := range centers {
		i, center := i, center
		g.Go(func() error {
			results[i] = p.runCenter(ctx, center, centerMap, dbm, opts)
			return nil
		})
	}
	_ = g.Wait() // nolint:errcheck // workers report through results

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			p.log.Error(err, "center failed", "center", centers[i])
		}
	}
	if failed > 0 {
		return errors.Errorf(errCentersFailedFmt, failed, len(centers))
	}
	return nil
}

// runCenter executes the strict per-center sequence: enumerate, validate
// all, reconcile status and error tables, notify, process, upload log.
func (p *Pipeline) runCenter(ctx context.Context, center string, centerMap *table.Frame, dbm *dbmap.Mapping, opts Options) error {
	scratch, err := p.prepareScratch(center, opts)
	if err != nil {
		return err
	}

	capture, err := logcapture.Start(p.fs, opts.ScratchRoot, center, opts.OnlyValidate)
	if err != nil {
		return err
	}
	log := capture.Logger(p.log.WithName(center))
	defer p.storeLog(ctx, capture, dbm, log)

	log.Info("processing center", "center", center)

	units, err := p.centerInputFiles(ctx, center, centerMap, opts.DownloadFiles, log)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		log.Info("center has not uploaded any files", "center", center)
		return nil
	}
	log.Info("center input enumerated", "center", center, "files", len(units))

	validFiles, err := p.validateCenter(ctx, center, scratch, units, dbm, log)
	if err != nil {
		return err
	}

	if opts.OnlyValidate {
		log.Info("only validation occurred", "center", center)
		return nil
	}
	if validFiles.Len() == 0 {
		log.Info("center has no valid files", "center", center)
		return nil
	}
	return p.processValidFiles(ctx, center, scratch, validFiles, dbm, log)
}

// prepareScratch ensures the center's input and staging directories exist,
// wiping the center directory first when requested.
func (p *Pipeline) prepareScratch(center string, opts Options) (string, error) {
	dir := filepath.Join(opts.ScratchRoot, center)
	if opts.DeleteOld {
		if err := p.fs.RemoveAll(dir); err != nil {
			return "", errors.Wrapf(err, errScratchDirFmt, center)
		}
	}
	for _, sub := range []string{"input", "staging"} {
		if err := p.fs.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", errors.Wrapf(err, errScratchDirFmt, center)
		}
	}
	return dir, nil
}

// centerInputFiles walks the center's input container and fetches each
// entity, one submission unit per file.
func (p *Pipeline) centerInputFiles(ctx context.Context, center string, centerMap *table.Frame, download bool, log logr.Logger) ([][]*platform.Entity, error) {
	i, ok := centerMap.Lookup("center", center)
	if !ok {
		return nil, errors.Errorf("center %q is not in the center mapping table", center)
	}
	inputID := centerMap.Value(i, "inputSynId")
	if inputID == "" {
		return nil, errors.Errorf("center %q has no input container", center)
	}

	children, err := p.client.ListChildren(ctx, inputID)
	if err != nil {
		return nil, errors.Wrapf(err, errListInputsFmt, center)
	}
	var units [][]*platform.Entity
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ent, err := p.client.GetEntity(ctx, child.ID, download)
		if err != nil {
			return nil, errors.Wrapf(err, errListInputsFmt, center)
		}
		units = append(units, []*platform.Entity{ent})
	}
	return units, nil
}

// validateCenter runs validation over every submission unit, applies
// duplicate detection, reconciles the status and error tables, and sends
// the consolidated notifications. It returns the frame of valid files.
func (p *Pipeline) validateCenter(ctx context.Context, center, scratch string, units [][]*platform.Entity, dbm *dbmap.Mapping, log logr.Logger) (*table.Frame, error) {
	statusTableID, err := dbm.ID(dbmap.DBValidationStatus)
	if err != nil {
		return nil, err
	}
	errorTableID, err := dbm.ID(dbmap.DBErrorTracker)
	if err != nil {
		return nil, err
	}

	statusSnap, err := p.client.QueryTable(ctx, centerQuery(statusTableID, center))
	if err != nil {
		return nil, errors.Wrapf(err, errQueryTableFmt, dbmap.DBValidationStatus)
	}
	errorSnap, err := p.client.QueryTable(ctx, centerQuery(errorTableID, center))
	if err != nil {
		return nil, errors.Wrapf(err, errQueryTableFmt, dbmap.DBErrorTracker)
	}

	var statuses []statusRow
	var errorRows []errorRow
	byRecipient := map[string][]notify.Message{}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, e, msg, err := p.validateUnit(center, scratch, unit, statusSnap.Frame, errorSnap.Frame, dbm, log)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s...)
		errorRows = append(errorRows, e...)
		if msg != nil {
			for _, user := range msg.users {
				byRecipient[user] = append(byRecipient[user], notify.Message{Filenames: msg.filenames, Body: msg.body})
			}
		}
	}

	statusFrame := buildStatusFrame(statuses, center)
	errorFrame := buildErrorFrame(errorRows, center)
	statusFrame, errorFrame, duplicated := updateTablesContent(statusFrame, errorFrame, entitiesByID(units), log)
	appendDuplicationErrors(duplicated, byRecipient)

	notifier := notify.New(p.client, log)
	notifier.SendAll(ctx, byRecipient)

	// The error tracker converges first so an interrupted run never leaves
	// an INVALID status without its reason.
	log.Info("updating validation status database")
	if _, err := reconcile.Update(ctx, p.client, errorTableID, errorSnap, errorFrame, []string{"id"}, true, log); err != nil {
		return nil, err
	}
	if _, err := reconcile.Update(ctx, p.client, statusTableID, statusSnap, statusFrame, []string{"id"}, true, log); err != nil {
		return nil, err
	}

	return statusFrame.Filter(func(r table.Row) bool {
		return r[statusColumnIndex("status")] == status.Validated
	}), nil
}

// processValidFiles projects each valid file through its format's processor
// and reconciles the produced dataset into the format's destination table.
func (p *Pipeline) processValidFiles(ctx context.Context, center, scratch string, validFiles *table.Frame, dbm *dbmap.Mapping, log logr.Logger) error {
	log.Info("processing valid files", "center", center, "files", validFiles.Len())

	for i := 0; i < validFiles.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fileType := validFiles.Value(i, "fileType")
		ctor, ok := p.formats[fileType]
		if !ok {
			log.Info("no format handler for valid file, skipping", "filetype", fileType, "id", validFiles.Value(i, "id"))
			continue
		}
		if !dbm.Has(fileType) {
			log.Info("no destination table for filetype, skipping", "filetype", fileType)
			continue
		}
		tableID, err := dbm.ID(fileType)
		if err != nil {
			return err
		}

		ent, err := p.client.GetEntity(ctx, validFiles.Value(i, "id"), true)
		if err != nil {
			return err
		}

		f := ctor()
		params := format.Params{
			ProjectID:  p.projectID,
			Center:     center,
			TableID:    tableID,
			ScratchDir: scratch,
			DBMapping:  dbm.Snapshot().Frame,
		}
		if err := params.Check(f.RequiredProcessParams()); err != nil {
			return err
		}

		data, err := f.Read([]*platform.Entity{ent})
		if err != nil {
			log.Error(err, "cannot read valid file, skipping", "id", ent.ID)
			continue
		}
		processed, err := f.Process(data, params)
		if err != nil {
			if format.IsMissingParameter(err) || platform.IsFatal(err) {
				return err
			}
			log.Error(err, "cannot process valid file, skipping", "id", ent.ID)
			continue
		}

		existing, err := p.client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s WHERE CENTER = '%s'", tableID, center))
		if err != nil {
			return errors.Wrapf(err, errQueryTableFmt, fileType)
		}
		if _, err := reconcile.Update(ctx, p.client, tableID, existing, processed, f.PrimaryKey(), true, log); err != nil {
			return err
		}
	}
	log.Info("all data stored in database", "center", center)
	return nil
}

// storeLog deposits the center log to the platform's log folder.
func (p *Pipeline) storeLog(ctx context.Context, capture *logcapture.Capture, dbm *dbmap.Mapping, log logr.Logger) {
	if !dbm.Has(dbmap.DBLogs) {
		_ = capture.Close() // nolint:errcheck
		return
	}
	folderID, err := dbm.ID(dbmap.DBLogs)
	if err != nil {
		_ = capture.Close() // nolint:errcheck
		return
	}
	if err := capture.Store(ctx, p.client, folderID); err != nil {
		p.log.Error(err, "cannot store center log")
	}
}

func centerQuery(tableID, center string) string {
	return fmt.Sprintf("SELECT * FROM %s WHERE center = '%s'", tableID, center)
}

func entitiesByID(units [][]*platform.Entity) map[string]*platform.Entity {
	out := map[string]*platform.Entity{}
	for _, unit := range units {
		for _, ent := range unit {
			out[ent.ID] = ent
		}
	}
	return out
}

func statusColumnIndex(name string) int {
	for i, c := range statusColumns {
		if c == name {
			return i
		}
	}
	return -1
}
