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

package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/mocks"
	"github.com/geniehub/genie/internal/status"
	"github.com/geniehub/genie/internal/table"
)

// txtFormat is a trivial single-file format for pipeline tests.
type txtFormat struct{}

func (f *txtFormat) FiletypeTag() string { return "txt" }

func (f *txtFormat) MatchesFilename(names []string) bool {
	return len(names) == 1 && strings.HasSuffix(names[0], ".txt")
}

func (f *txtFormat) Read(entities []*platform.Entity) (*table.Frame, error) {
	fr := table.New("ID")
	fr.MustAppend(table.Row{entities[0].ID})
	return fr, nil
}

func (f *txtFormat) Validate(_ *table.Frame, _ format.Params) (string, string, error) {
	return "", "", nil
}

func (f *txtFormat) Process(data *table.Frame, p format.Params) (*table.Frame, error) {
	out := table.New("ID", "CENTER")
	for _, r := range data.Rows() {
		out.MustAppend(table.Row{r[0], p.Center})
	}
	return out, nil
}

func (f *txtFormat) PrimaryKey() []string             { return []string{"CENTER", "ID"} }
func (f *txtFormat) RequiredValidateParams() []string { return nil }
func (f *txtFormat) RequiredProcessParams() []string  { return []string{format.ParamCenter} }

// nameValidator marks files whose name contains "bad" invalid.
type nameValidator struct {
	opts format.ValidatorOptions
}

func (v *nameValidator) FileType() string { return "txt" }

func (v *nameValidator) ValidateSingle(_ format.Params) (bool, string, error) {
	if strings.Contains(v.opts.Entities[0].Name, "bad") {
		return false, "bad content", nil
	}
	return true, format.MsgFileValidated, nil
}

func newNameValidator(opts format.ValidatorOptions) format.Validator {
	return &nameValidator{opts: opts}
}

// harness wires a MockClient around fixed table state.
type harness struct {
	mu       sync.Mutex
	applied  []string
	deltas   map[string]*platform.Delta
	messages []string
	stored   []string

	inputs map[string]*platform.Entity
}

const (
	projectID      = "synProject"
	mappingTableID = "synMap"
	statusTableID  = "synStatus"
	errorTableID   = "synErr"
	centerTableID  = "synCenter"
	logsFolderID   = "synLogs"
	txtTableID     = "synTxt"
)

func emptySnapshot(columns ...string) *table.Snapshot {
	return &table.Snapshot{Frame: table.New(columns...)}
}

func (h *harness) client() *mocks.MockClient {
	return &mocks.MockClient{
		GetEntityFn: func(_ context.Context, id string, _ bool) (*platform.Entity, error) {
			if id == projectID {
				return &platform.Entity{
					ID:          projectID,
					Annotations: map[string]string{dbmap.AnnotationKey: mappingTableID},
				}, nil
			}
			return h.inputs[id], nil
		},
		ListChildrenFn: func(_ context.Context, _ string) ([]*platform.Entity, error) {
			out := make([]*platform.Entity, 0, len(h.inputs))
			for _, id := range []string{"syn1", "syn2", "syn3", "syn4"} {
				if ent, ok := h.inputs[id]; ok {
					out = append(out, ent)
				}
			}
			return out, nil
		},
		QueryTableFn: func(_ context.Context, query string) (*table.Snapshot, error) {
			switch {
			case strings.Contains(query, mappingTableID):
				f := table.New("Database", "Id")
				f.MustAppend(table.Row{dbmap.DBValidationStatus, statusTableID})
				f.MustAppend(table.Row{dbmap.DBErrorTracker, errorTableID})
				f.MustAppend(table.Row{dbmap.DBCenterMapping, centerTableID})
				f.MustAppend(table.Row{dbmap.DBLogs, logsFolderID})
				f.MustAppend(table.Row{"txt", txtTableID})
				locs := make([]table.RowLocator, f.Len())
				for i := range locs {
					locs[i] = table.RowLocator{RowID: "1", RowVersion: "1"}
				}
				return &table.Snapshot{Frame: f, Locators: locs}, nil
			case strings.Contains(query, statusTableID):
				return emptySnapshot(statusColumns...), nil
			case strings.Contains(query, errorTableID):
				return emptySnapshot(errorColumns...), nil
			case strings.Contains(query, txtTableID):
				return emptySnapshot("ID", "CENTER"), nil
			}
			return emptySnapshot(), nil
		},
		ApplyDeltaFn: func(_ context.Context, tableID string, delta *platform.Delta) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.applied = append(h.applied, tableID)
			h.deltas[tableID] = delta
			return nil
		},
		StoreFileFn: func(_ context.Context, path, _ string) (*platform.Entity, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.stored = append(h.stored, path)
			return &platform.Entity{ID: "synLog1"}, nil
		},
		GetUserProfileFn: func(_ context.Context, userID string) (*platform.UserProfile, error) {
			return &platform.UserProfile{OwnerID: userID, UserName: "User One"}, nil
		},
		SendMessageFn: func(_ context.Context, _ []string, _, body string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.messages = append(h.messages, body)
			return nil
		},
	}
}

func centerMapFrame() *table.Frame {
	f := table.New("name", "center", "inputSynId", "release")
	f.MustAppend(table.Row{"Sage", "SAGE", "synInput", "true"})
	return f
}

func entity(id, name string) *platform.Entity {
	return &platform.Entity{
		ID:         id,
		Name:       name,
		MD5:        "md5-" + id,
		CreatedBy:  "user1",
		ModifiedBy: "user1",
		ModifiedOn: time.UnixMilli(1700000000000),
		Path:       "/tmp/" + name,
	}
}

func TestPipelineRun(t *testing.T) {
	h := &harness{
		deltas: map[string]*platform.Delta{},
		inputs: map[string]*platform.Entity{
			"syn1": entity("syn1", "good.txt"),
			"syn2": entity("syn2", "bad.txt"),
			"syn3": entity("syn3", "dup.txt"),
			"syn4": entity("syn4", "dup.txt"),
		},
	}
	client := h.client()

	dbm, err := dbmap.Fetch(context.Background(), client, projectID)
	if err != nil {
		t.Fatalf("dbmap.Fetch(...): %v", err)
	}

	formats := map[string]format.Ctor{"txt": func() format.Format { return &txtFormat{} }}
	pipe := New(client, projectID, formats, newNameValidator, afero.NewMemMapFs(), logr.Discard())

	err = pipe.Run(context.Background(), []string{"SAGE"}, centerMapFrame(), dbm, Options{
		ScratchRoot:   "/scratch",
		DownloadFiles: true,
	})
	if err != nil {
		t.Fatalf("Run(...): %v", err)
	}

	// The error tracker converges before the status table, destination
	// tables after both.
	if len(h.applied) != 3 || h.applied[0] != errorTableID || h.applied[1] != statusTableID || h.applied[2] != txtTableID {
		t.Fatalf("applied tables: want [%s %s %s], got %v", errorTableID, statusTableID, txtTableID, h.applied)
	}

	statusDelta := h.deltas[statusTableID]
	if len(statusDelta.Appends) != 4 {
		t.Fatalf("status appends: want 4, got %d", len(statusDelta.Appends))
	}
	wantStatus := map[string]string{
		"syn1": status.Validated,
		"syn2": status.Invalid,
		"syn3": status.Invalid,
		"syn4": status.Invalid,
	}
	for _, row := range statusDelta.Appends {
		if got := row[2]; got != wantStatus[row[0]] {
			t.Errorf("status of %s: want %s, got %s", row[0], wantStatus[row[0]], got)
		}
	}

	errorDelta := h.deltas[errorTableID]
	if len(errorDelta.Appends) != 3 {
		t.Fatalf("error appends: want 3, got %d", len(errorDelta.Appends))
	}
	wantErrors := map[string]string{
		"syn2": "bad content",
		"syn3": DuplicatedFileError,
		"syn4": DuplicatedFileError,
	}
	for _, row := range errorDelta.Appends {
		if got := row[2]; got != wantErrors[row[0]] {
			t.Errorf("error of %s: want %q, got %q", row[0], wantErrors[row[0]], got)
		}
	}

	txtDelta := h.deltas[txtTableID]
	if len(txtDelta.Appends) != 1 || txtDelta.Appends[0][0] != "syn1" {
		t.Errorf("destination appends: want one row for syn1, got %+v", txtDelta.Appends)
	}

	// Both the validation failure and the duplication error reach the one
	// owner in a single message.
	if len(h.messages) != 1 {
		t.Fatalf("messages: want 1, got %d", len(h.messages))
	}
	if !strings.Contains(h.messages[0], "bad content") || !strings.Contains(h.messages[0], DuplicatedFileError) {
		t.Errorf("message body missing reports:\n%s", h.messages[0])
	}

	if len(h.stored) != 1 || !strings.HasSuffix(h.stored[0], "SAGE_log.txt") {
		t.Errorf("stored log: want SAGE_log.txt upload, got %v", h.stored)
	}
}

func TestPipelineRunOnlyValidateReusesCache(t *testing.T) {
	ent := entity("syn1", "good.txt")
	h := &harness{
		deltas: map[string]*platform.Delta{},
		inputs: map[string]*platform.Entity{"syn1": ent},
	}
	client := h.client()

	// The status table already carries the entity's current md5 and name,
	// so the run must reuse the cached outcome and change nothing.
	cached := table.New(statusColumns...)
	cached.MustAppend(table.Row{
		"syn1", ent.MD5, status.Validated, ent.Name, "SAGE", "1700000000000", "txt",
	})
	base := client.QueryTableFn
	client.QueryTableFn = func(ctx context.Context, query string) (*table.Snapshot, error) {
		if strings.Contains(query, statusTableID) {
			return &table.Snapshot{
				Frame:    cached,
				Locators: []table.RowLocator{{RowID: "5", RowVersion: "1"}},
			}, nil
		}
		return base(ctx, query)
	}

	formats := map[string]format.Ctor{"txt": func() format.Format { return &txtFormat{} }}
	pipe := New(client, projectID, formats, newNameValidator, afero.NewMemMapFs(), logr.Discard())

	dbm, err := dbmap.Fetch(context.Background(), client, projectID)
	if err != nil {
		t.Fatalf("dbmap.Fetch(...): %v", err)
	}

	err = pipe.Run(context.Background(), []string{"SAGE"}, centerMapFrame(), dbm, Options{
		ScratchRoot:   "/scratch",
		DownloadFiles: true,
		OnlyValidate:  true,
	})
	if err != nil {
		t.Fatalf("Run(...): %v", err)
	}

	if len(h.applied) != 0 {
		t.Errorf("converged cached state should apply no deltas, got %v", h.applied)
	}
	if len(h.messages) != 0 {
		t.Errorf("no notifications expected, got %d", len(h.messages))
	}
}
