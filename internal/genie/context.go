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

// Package genie assembles the per-run context every command receives:
// endpoint, credentials, scratch location, and logger. Nothing here is
// global; the context is threaded explicitly through the pipeline.
package genie

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/geniehub/genie/internal/config"
)

// UserAgent is the default user agent used to make requests to the
// platform API.
const UserAgent = "genie-cli"

// SecretsEnvVar carries JSON credential material for scheduled jobs. When
// set, it takes priority over the profile chain.
const SecretsEnvVar = "SCHEDULED_JOB_SECRETS"

// TokenEnvVar is the direct auth token override.
const TokenEnvVar = "GENIE_AUTH_TOKEN"

// secretsTokenKey is the key holding the token inside SCHEDULED_JOB_SECRETS.
const secretsTokenKey = "GENIE_AUTH_TOKEN"

const (
	errParseSecrets = "cannot parse " + SecretsEnvVar
	errNoToken      = "login error: please make sure you have correctly configured your client"
)

// Verbosity is the bound value of the root -v counter flag.
type Verbosity int

// Flags are common flags used by commands that interact with the platform.
type Flags struct {
	// Optional
	Domain  *url.URL `env:"GENIE_DOMAIN" default:"https://genie.example.org" help:"Root platform domain."`
	Profile string   `env:"GENIE_PROFILE" help:"Profile used to execute command."`

	APIEndpoint *url.URL `env:"OVERRIDE_API_ENDPOINT" hidden:"" name:"override-api-endpoint" help:"Overrides the default API endpoint."`
}

// Context includes common data genie consumers may utilize.
type Context struct {
	Profile     config.Profile
	Token       string
	APIEndpoint *url.URL
	Cfg         *config.Config
	CfgSrc      config.Source

	// ScratchDir is the root of the per-center working directories.
	ScratchDir string

	Log logr.Logger
}

// NewFromFlags constructs a new context from flags. The credential chain is
// scheduled-job secrets, then the token environment variable, then the
// selected (or default) profile.
func NewFromFlags(f Flags, verbosity int) (*Context, error) {
	src, err := config.NewFSSource()
	if err != nil {
		return nil, err
	}
	conf, err := src.GetConfig()
	if err != nil {
		return nil, err
	}

	c := &Context{
		Cfg:    conf,
		CfgSrc: src,
		Log:    newLogger(verbosity),
	}

	c.APIEndpoint = f.APIEndpoint
	if c.APIEndpoint == nil {
		u := *f.Domain
		u.Host = "api." + u.Host
		c.APIEndpoint = &u
	}

	// If profile identifier is not provided, use the default, or empty if
	// the default cannot be obtained.
	c.Profile = config.Profile{}
	if f.Profile == "" {
		if p, err := c.Cfg.GetDefaultProfile(); err == nil {
			c.Profile = p
		}
	} else {
		if p, err := c.Cfg.GetProfile(f.Profile); err == nil {
			c.Profile = p
		}
	}

	if c.Token, err = resolveToken(c.Profile); err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	c.ScratchDir = filepath.Join(home, ".genieCache")
	return c, nil
}

func resolveToken(p config.Profile) (string, error) {
	if raw := os.Getenv(SecretsEnvVar); raw != "" {
		secrets := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &secrets); err != nil {
			return "", errors.Wrap(err, errParseSecrets)
		}
		if tok := secrets[secretsTokenKey]; tok != "" {
			return tok, nil
		}
	}
	if tok := os.Getenv(TokenEnvVar); tok != "" {
		return tok, nil
	}
	if p.Token != "" {
		return p.Token, nil
	}
	return "", errors.New(errNoToken)
}

// newLogger builds the root logger. Records at or below the verbosity level
// go to stderr through pterm.
func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			pterm.DefaultBasicText.WithWriter(os.Stderr).Printfln("[%s] %s", prefix, args)
			return
		}
		pterm.DefaultBasicText.WithWriter(os.Stderr).Printfln("%s", args)
	}, funcr.Options{Verbosity: verbosity})
}
