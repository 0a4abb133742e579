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

// Package errorscmd prints a center's recorded validation errors.
package errorscmd

import (
	"context"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/pterm/pterm"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/genie"
	"github.com/geniehub/genie/internal/pipeline"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/httpapi"
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

// Cmd prints the concatenated error texts recorded for a center.
type Cmd struct {
	genie.Flags

	Center string `arg:"" help:"Center to print errors for."`

	ProjectID string `name:"project-id" required:"" help:"Project holding the pipeline state tables."`
}

// Run executes the get-file-errors command.
func (c *Cmd) Run(ctx context.Context, client platform.Client, p pterm.TextPrinter) error {
	dbm, err := dbmap.Fetch(ctx, client, c.ProjectID)
	if err != nil {
		return err
	}
	out, err := pipeline.CenterErrors(ctx, client, dbm, c.Center)
	if err != nil {
		return err
	}
	p.Printfln("%s", out)
	return nil
}
