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

package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/pterm/pterm"
	"github.com/willabides/kongplete"

	"github.com/geniehub/genie/cmd/genie/bootstrapcmd"
	"github.com/geniehub/genie/cmd/genie/dbcmd"
	"github.com/geniehub/genie/cmd/genie/errorscmd"
	"github.com/geniehub/genie/cmd/genie/processcmd"
	"github.com/geniehub/genie/cmd/genie/validatecmd"
	"github.com/geniehub/genie/internal/format/genericcsv"
	"github.com/geniehub/genie/internal/genie"
)

// AfterApply configures global settings before executing commands.
func (c *cli) AfterApply(ctx *kong.Context) error { //nolint:unparam
	if c.Quiet {
		ctx.Stdout, ctx.Stderr = io.Discard, io.Discard
	}
	ctx.BindTo(pterm.DefaultBasicText.WithWriter(ctx.Stdout), (*pterm.TextPrinter)(nil))
	if !c.Pretty {
		// Styling can make processing output with other tooling difficult.
		pterm.DisableStyling()
	}
	ctx.Bind(genie.Verbosity(c.Verbose))
	return nil
}

type cli struct {
	Quiet   bool `short:"q" name:"quiet" help:"Suppress all output."`
	Pretty  bool `name:"pretty" help:"Pretty print output."`
	Verbose int  `short:"v" name:"verbose" type:"counter" help:"Increase log verbosity."`

	Help               helpCmd                      `cmd:"" help:"Show help."`
	ValidateSingleFile validatecmd.Cmd              `cmd:"" name:"validate-single-file" help:"Validate a submission locally, optionally uploading it when valid."`
	BootstrapInfra     bootstrapcmd.Cmd             `cmd:"" name:"bootstrap-infra" help:"Provision a project with the pipeline's tables and folders."`
	Process            processcmd.Cmd               `cmd:"" help:"Validate and process the input files of one or all centers."`
	ReplaceDB          dbcmd.Cmd                    `cmd:"" name:"replace-db" help:"Replace a filetype's destination table and archive the old one."`
	GetFileErrors      errorscmd.Cmd                `cmd:"" name:"get-file-errors" help:"Print a center's recorded validation errors."`
	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

type helpCmd struct{}

func (h *helpCmd) Run(ctx *kong.Context) error {
	_, err := ctx.Parse([]string{"--help"})
	return err
}

func main() {
	c := cli{}

	parser := kong.Must(&c,
		kong.Name("genie"),
		kong.Description("The GENIE data ingestion CLI"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}))

	kongplete.Complete(parser,
		kongplete.WithPredictor("packages", complete.PredictSet(genericcsv.PackageName)))

	if len(os.Args) == 1 {
		_, err := parser.Parse([]string{"--help"})
		parser.FatalIfErrorf(err)
		return
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.Errorf("%s", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		defer cancel()
		<-sigCh
		kongCtx.Exit(1)
	}()

	kongCtx.BindTo(ctx, (*context.Context)(nil))
	kongCtx.FatalIfErrorf(kongCtx.Run())
}
