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

// Package bootstrapcmd provisions a project with the pipeline's
// infrastructure.
package bootstrapcmd

import (
	"context"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/pterm/pterm"

	"github.com/geniehub/genie/internal/bootstrap"
	"github.com/geniehub/genie/internal/genie"
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

// Cmd provisions the state tables, folders, and format tables of a project.
type Cmd struct {
	genie.Flags

	ProjectName string `name:"project-name" xor:"project" required:"" help:"Name of a new project to create."`
	ProjectID   string `name:"project-id" xor:"project" required:"" help:"Id of an existing project to converge."`

	Centers                []string `name:"centers" required:"" help:"Center abbreviations to provision."`
	FormatRegistryPackages []string `name:"format-registry-packages" default:"genericcsv" predictor:"packages" help:"Format registry packages to provision tables for."`
}

// Run executes the bootstrap-infra command.
func (c *Cmd) Run(ctx context.Context, runCtx *genie.Context, client platform.Client, p pterm.TextPrinter) error {
	res, err := bootstrap.Run(ctx, client, bootstrap.Options{
		ProjectName: c.ProjectName,
		ProjectID:   c.ProjectID,
		Centers:     c.Centers,
		Packages:    c.FormatRegistryPackages,
	}, runCtx.Log)
	if err != nil {
		return err
	}
	p.Printfln("Project %s bootstrapped, database mapping table %s", res.ProjectID, res.MappingTableID)
	return nil
}
