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

package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Source is a source for interacting with a Config.
type Source interface {
	GetConfig() (*Config, error)
	UpdateConfig(*Config) error
}

// NewFSSource constructs a new FSSource.
func NewFSSource(modifiers ...FSSourceModifier) (*FSSource, error) {
	src := &FSSource{
		fs:   afero.NewOsFs(),
		home: os.UserHomeDir,
	}
	for _, m := range modifiers {
		m(src)
	}
	h, err := src.home()
	if err != nil {
		return nil, err
	}
	src.dirPath = filepath.Join(h, ConfigDir)
	src.path = filepath.Join(src.dirPath, ConfigFile)
	_, err = src.fs.Stat(src.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := src.fs.MkdirAll(src.dirPath, 0755); err != nil {
			return nil, err
		}
		f, err := src.fs.OpenFile(src.path, os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		defer f.Close() // nolint:errcheck
	}
	return src, nil
}

// FSSourceModifier modifies an FSSource.
type FSSourceModifier func(*FSSource)

// WithFS sets the filesystem the source reads from.
func WithFS(fs afero.Fs) FSSourceModifier {
	return func(src *FSSource) {
		src.fs = fs
	}
}

// WithHomeDirFn sets the home directory lookup.
func WithHomeDirFn(fn HomeDirFn) FSSourceModifier {
	return func(src *FSSource) {
		src.home = fn
	}
}

// FSSource provides a filesystem source for interacting with a Config.
type FSSource struct {
	fs      afero.Fs
	home    HomeDirFn
	path    string
	dirPath string
}

// HomeDirFn indicates the location of a user's home directory.
type HomeDirFn func() (string, error)

// GetConfig fetches the config from a filesystem.
func (src *FSSource) GetConfig() (*Config, error) {
	f, err := src.fs.Open(src.path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	conf := &Config{}
	if len(b) == 0 {
		return conf, nil
	}
	if err := json.Unmarshal(b, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// UpdateConfig updates the Config in the filesystem.
func (src *FSSource) UpdateConfig(c *Config) error {
	f, err := src.fs.OpenFile(src.path, os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	// Close is both deferred and called explicitly so a failed write buffer
	// flush surfaces as an error.
	defer f.Close() // nolint:errcheck
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Close()
}
