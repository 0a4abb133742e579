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

// Package dbcmd replaces a filetype's destination table.
package dbcmd

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

// Cmd swaps in a fresh destination table for a filetype and archives the
// old one under the archive project.
type Cmd struct {
	genie.Flags

	Filetype         string `arg:"" help:"Filetype whose destination table is replaced."`
	ArchiveProjectID string `arg:"" help:"Project the old table is archived under."`
	TableName        string `arg:"" help:"Name of the replacement table."`

	ProjectID string `name:"project-id" required:"" help:"Project holding the pipeline state tables."`
}

// Run executes the replace-db command.
func (c *Cmd) Run(ctx context.Context, runCtx *genie.Context, client platform.Client, p pterm.TextPrinter) error {
	res, err := bootstrap.ReplaceTable(ctx, client, c.ProjectID, c.Filetype, c.ArchiveProjectID, c.TableName, runCtx.Log)
	if err != nil {
		return err
	}
	p.Printfln("Replaced %s table: new %s, archived %s", c.Filetype, res.NewTableID, res.OldTableID)
	return nil
}
