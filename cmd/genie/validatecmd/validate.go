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

// Package validatecmd validates a local submission against the registered
// formats without touching the state tables.
package validatecmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/genie"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/httpapi"
)

const (
	errCentersFmt       = "Must specify one of these centers: %s"
	errFetchCenterTable = "cannot fetch center mapping table"
	errInvalidFile      = "submission is invalid"
	errBadParent        = "provided id must be your input folder id or the id of a folder inside your input directory"
	errUploadFmt        = "cannot upload %s"
)

// AfterApply constructs and binds the run context and platform client.
func (c *Cmd) AfterApply(kongCtx *kong.Context, v genie.Verbosity) error {
	runCtx, err := genie.NewFromFlags(c.Flags, int(v))
	if err != nil {
		return err
	}
	client, err := httpapi.New(runCtx.APIEndpoint, runCtx.Token,
		httpapi.WithCacheDir(filepath.Join(runCtx.ScratchDir, "downloads")))
	if err != nil {
		return err
	}
	kongCtx.Bind(runCtx)
	kongCtx.BindTo(client, (*platform.Client)(nil))
	return nil
}

// Cmd validates one submission unit from local files.
type Cmd struct {
	genie.Flags

	Filepath []string `arg:"" help:"File(s) forming one submission unit."`
	Center   string   `arg:"" help:"Center the submission belongs to."`

	ProjectID              string   `name:"project-id" required:"" help:"Project holding the pipeline state tables."`
	Filetype               string   `name:"filetype" help:"Skip filename-based detection and use this filetype."`
	ParentID               string   `name:"parentid" help:"Container to upload the files to when they are valid."`
	FormatRegistryPackages []string `name:"format-registry-packages" default:"genericcsv" predictor:"packages" help:"Format registry packages to use."`
}

// Run executes the validate-single-file command.
func (c *Cmd) Run(ctx context.Context, runCtx *genie.Context, client platform.Client, p pterm.TextPrinter) error {
	if err := c.checkParent(ctx, client); err != nil {
		return err
	}

	dbm, err := dbmap.Fetch(ctx, client, c.ProjectID)
	if err != nil {
		return err
	}
	if err := c.checkCenter(ctx, client, dbm); err != nil {
		return err
	}

	formats, err := format.CollectFormatTypes(c.FormatRegistryPackages, runCtx.Log)
	if err != nil {
		return err
	}
	newValidator, err := format.CollectValidationHelper(c.FormatRegistryPackages)
	if err != nil {
		return err
	}

	entities := make([]*platform.Entity, 0, len(c.Filepath))
	for _, path := range c.Filepath {
		entities = append(entities, &platform.Entity{Name: filepath.Base(path), Path: path})
	}

	validator := newValidator(format.ValidatorOptions{
		ProjectID: c.ProjectID,
		Center:    c.Center,
		Entities:  entities,
		Formats:   formats,
		FileType:  c.Filetype,
		Log:       runCtx.Log,
	})
	valid, report, err := validator.ValidateSingle(format.Params{
		ProjectID:  c.ProjectID,
		Center:     c.Center,
		ScratchDir: runCtx.ScratchDir,
		DBMapping:  dbm.Snapshot().Frame,
	})
	if err != nil {
		return err
	}
	p.Printfln("%s", report)

	if !valid {
		return errors.New(errInvalidFile)
	}
	if c.ParentID == "" {
		return nil
	}
	for _, path := range c.Filepath {
		runCtx.Log.Info("uploading file", "path", path, "parent", c.ParentID)
		if _, err := client.StoreFile(ctx, path, c.ParentID); err != nil {
			return errors.Wrapf(err, errUploadFmt, path)
		}
	}
	return nil
}

// checkParent verifies the upload target exists and is a container.
func (c *Cmd) checkParent(ctx context.Context, client platform.Client) error {
	if c.ParentID == "" {
		return nil
	}
	ent, err := client.GetEntity(ctx, c.ParentID, false)
	if err != nil || !ent.Container {
		return errors.New(errBadParent)
	}
	return nil
}

// checkCenter verifies the center is present in the center mapping table.
func (c *Cmd) checkCenter(ctx context.Context, client platform.Client, dbm *dbmap.Mapping) error {
	centerMapID, err := dbm.ID(dbmap.DBCenterMapping)
	if err != nil {
		return err
	}
	snap, err := client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s", centerMapID))
	if err != nil {
		return errors.Wrap(err, errFetchCenterTable)
	}
	known := make([]string, 0, snap.Frame.Len())
	for i := 0; i < snap.Frame.Len(); i++ {
		known = append(known, snap.Frame.Value(i, "center"))
	}
	for _, center := range known {
		if center == c.Center {
			return nil
		}
	}
	return errors.Errorf(errCentersFmt, strings.Join(known, ", "))
}
