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

package logcapture

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/mocks"
)

func TestStart(t *testing.T) {
	fs := afero.NewMemMapFs()

	c, err := Start(fs, "/logs", "SAGE", false)
	if err != nil {
		t.Fatalf("Start(...): %v", err)
	}
	if want := "/logs/SAGE_log.txt"; c.Path() != want {
		t.Errorf("Path(): want %s, got %s", want, c.Path())
	}

	v, err := Start(fs, "/logs", "SAGE", true)
	if err != nil {
		t.Fatalf("Start(...): %v", err)
	}
	if want := "/logs/SAGE_validation_log.txt"; v.Path() != want {
		t.Errorf("Path(): want %s, got %s", want, v.Path())
	}
}

func TestLoggerWritesTimestampedLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := Start(fs, "/logs", "SAGE", false)
	if err != nil {
		t.Fatalf("Start(...): %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	log := c.Logger(logr.Discard())
	log.Info("validating", "center", "SAGE")
	log.Error(errors.New("boom"), "processing failed")
	if err := c.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	got, err := afero.ReadFile(fs, c.Path())
	if err != nil {
		t.Fatalf("ReadFile(...): %v", err)
	}
	for _, want := range []string{
		`2024-03-01 12:00:00 "level"=0 "msg"="validating" "center"="SAGE"`,
		`"msg"="processing failed" "error"="boom"`,
	} {
		if !strings.Contains(string(got), want) {
			t.Errorf("log missing %q:\n%s", want, got)
		}
	}
}

func TestStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := Start(fs, "/logs", "SAGE", false)
	if err != nil {
		t.Fatalf("Start(...): %v", err)
	}
	c.Logger(logr.Discard()).Info("done")

	var storedPath, storedParent string
	client := &mocks.MockClient{
		StoreFileFn: func(_ context.Context, path, parentID string) (*platform.Entity, error) {
			storedPath = path
			storedParent = parentID
			return &platform.Entity{ID: "synLog1"}, nil
		},
	}

	if err := c.Store(context.Background(), client, "synLogs"); err != nil {
		t.Fatalf("Store(...): %v", err)
	}
	if storedPath != c.Path() || storedParent != "synLogs" {
		t.Errorf("stored %s under %s", storedPath, storedParent)
	}
	if _, err := fs.Stat(c.Path()); err == nil {
		t.Error("local log file should be removed after upload")
	}
}

func TestCloseIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := Start(fs, "/logs", "SAGE", false)
	if err != nil {
		t.Fatalf("Start(...): %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close(): %v", err)
	}
}
