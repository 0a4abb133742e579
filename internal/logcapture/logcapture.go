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

// Package logcapture writes a per-center run log to a local file and
// deposits it to the platform's log folder when the run finishes.
package logcapture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/geniehub/genie/internal/platform"
)

const (
	errCreateLog = "cannot create log file"
	errStoreLog  = "cannot store log file"
)

// A Capture is an open per-center log file.
type Capture struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	file afero.File
	now  func() time.Time
}

// Start opens the center's log file under dir: "<center>_log.txt", or
// "<center>_validation_log.txt" in only-validate mode. An existing file is
// truncated.
func Start(fs afero.Fs, dir, center string, onlyValidate bool) (*Capture, error) {
	name := center + "_log.txt"
	if onlyValidate {
		name = center + "_validation_log.txt"
	}
	path := filepath.Join(dir, name)
	f, err := fs.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errCreateLog)
	}
	return &Capture{fs: fs, path: path, file: f, now: time.Now}, nil
}

// Path returns the local path of the log file.
func (c *Capture) Path() string {
	return c.path
}

// Logger returns a logger that appends timestamped lines to the capture
// file in addition to the given mirror logger.
func (c *Capture) Logger(mirror logr.Logger) logr.Logger {
	sink := funcr.New(func(prefix, args string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.file == nil {
			return
		}
		stamp := c.now().Format("2006-01-02 15:04:05")
		if prefix != "" {
			fmt.Fprintf(c.file, "%s [%s] %s\n", stamp, prefix, args)
			return
		}
		fmt.Fprintf(c.file, "%s %s\n", stamp, args)
	}, funcr.Options{Verbosity: 1})
	return newTeeLogger(sink, mirror)
}

// Close flushes and closes the log file. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// Store closes the capture, uploads it under the given log folder, and
// removes the local file.
func (c *Capture) Store(ctx context.Context, client platform.Client, logFolderID string) error {
	if err := c.Close(); err != nil {
		return errors.Wrap(err, errStoreLog)
	}
	if _, err := client.StoreFile(ctx, c.path, logFolderID); err != nil {
		return errors.Wrap(err, errStoreLog)
	}
	return errors.Wrap(c.fs.Remove(c.path), errStoreLog)
}

// teeLogger duplicates every record to a file sink and a mirror logger.
type teeSink struct {
	file   logr.Logger
	mirror logr.Logger
}

func newTeeLogger(file logr.Logger, mirror logr.Logger) logr.Logger {
	return logr.New(&teeSink{file: file, mirror: mirror})
}

func (t *teeSink) Init(logr.RuntimeInfo) {}

func (t *teeSink) Enabled(int) bool { return true }

func (t *teeSink) Info(level int, msg string, kv ...any) {
	t.file.V(level).Info(msg, kv...)
	t.mirror.V(level).Info(msg, kv...)
}

func (t *teeSink) Error(err error, msg string, kv ...any) {
	t.file.Error(err, msg, kv...)
	t.mirror.Error(err, msg, kv...)
}

func (t *teeSink) WithValues(kv ...any) logr.LogSink {
	return &teeSink{file: t.file.WithValues(kv...), mirror: t.mirror.WithValues(kv...)}
}

func (t *teeSink) WithName(name string) logr.LogSink {
	return &teeSink{file: t.file.WithName(name), mirror: t.mirror.WithName(name)}
}
