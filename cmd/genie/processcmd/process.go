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

// Package processcmd runs the per-center validation and processing
// pipeline.
package processcmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/genie"
	"github.com/geniehub/genie/internal/pipeline"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/httpapi"
	"github.com/geniehub/genie/internal/table"
)

const (
	errCentersFmt       = "Must specify one of these centers: %s"
	errNoReleased       = "no center has the release flag set"
	errFetchCenterTable = "cannot fetch center mapping table"
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

// Cmd runs the pipeline for one center, or for every released center.
type Cmd struct {
	genie.Flags

	ProjectID string `name:"project-id" required:"" help:"Project holding the pipeline state tables."`

	Center                 string   `name:"center" help:"Process only this center. Defaults to all released centers."`
	OnlyValidate           bool     `name:"only-validate" help:"Validate inputs without processing valid files."`
	DeleteOld              bool     `name:"delete-old" help:"Wipe per-center scratch directories before the run."`
	OnlyGetEntity          bool     `name:"only-get-entity" help:"Fetch entity metadata without downloading file content."`
	FormatRegistryPackages []string `name:"format-registry-packages" default:"genericcsv" predictor:"packages" help:"Format registry packages to use."`
}

// Run executes the process command.
func (c *Cmd) Run(ctx context.Context, runCtx *genie.Context, client platform.Client) error {
	log := runCtx.Log

	dbm, err := dbmap.Fetch(ctx, client, c.ProjectID)
	if err != nil {
		return err
	}
	centerMapID, err := dbm.ID(dbmap.DBCenterMapping)
	if err != nil {
		return err
	}
	centerSnap, err := client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s", centerMapID))
	if err != nil {
		return errors.Wrap(err, errFetchCenterTable)
	}

	centers, err := selectCenters(centerSnap.Frame, c.Center)
	if err != nil {
		return err
	}

	formats, err := format.CollectFormatTypes(c.FormatRegistryPackages, log)
	if err != nil {
		return err
	}
	newValidator, err := format.CollectValidationHelper(c.FormatRegistryPackages)
	if err != nil {
		return err
	}

	pipe := pipeline.New(client, c.ProjectID, formats, newValidator, afero.NewOsFs(), log)
	return pipe.Run(ctx, centers, centerSnap.Frame, dbm, pipeline.Options{
		OnlyValidate:  c.OnlyValidate,
		DeleteOld:     c.DeleteOld,
		DownloadFiles: !c.OnlyGetEntity,
		ScratchRoot:   runCtx.ScratchDir,
	})
}

// selectCenters resolves the run's center list: an explicit center must be
// known, otherwise every center with the release flag set is processed.
func selectCenters(centerMap *table.Frame, explicit string) ([]string, error) {
	known := make([]string, 0, centerMap.Len())
	for i := 0; i < centerMap.Len(); i++ {
		known = append(known, centerMap.Value(i, "center"))
	}

	if explicit != "" {
		for _, c := range known {
			if c == explicit {
				return []string{explicit}, nil
			}
		}
		return nil, errors.Errorf(errCentersFmt, strings.Join(known, ", "))
	}

	var released []string
	for i := 0; i < centerMap.Len(); i++ {
		if strings.EqualFold(centerMap.Value(i, "release"), "true") {
			released = append(released, centerMap.Value(i, "center"))
		}
	}
	if len(released) == 0 {
		return nil, errors.New(errNoReleased)
	}
	return released, nil
}
