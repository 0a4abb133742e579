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

// Package platform defines the narrow contract the pipeline has with the
// remote object/table service, along with the entity and delta types that
// cross it.
package platform

import (
	"context"
	"time"

	"github.com/geniehub/genie/internal/table"
)

// An Entity is an object on the platform: a file, folder, project, or table.
type Entity struct {
	ID          string
	Name        string
	ParentID    string
	MD5         string
	Size        int64
	CreatedBy   string
	ModifiedBy  string
	ModifiedOn  time.Time
	Container   bool
	Annotations map[string]string

	// Path is the local filesystem path of the downloaded content. Empty
	// until the entity is fetched with download enabled.
	Path string
}

// FiletypeHint returns the filetype annotation if the submitter set one.
func (e *Entity) FiletypeHint() string {
	return e.Annotations["filetype"]
}

// A Column describes one column of a platform table schema.
type Column struct {
	Name         string `json:"name"`
	Type         string `json:"columnType"`
	MaximumSize  int    `json:"maximumSize,omitempty"`
	FacetType    string `json:"facetType,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
}

// A TableSchema describes a table to create.
type TableSchema struct {
	Name        string
	ParentID    string
	Columns     []Column
	Annotations map[string]string
}

// A UserProfile identifies a platform user.
type UserProfile struct {
	OwnerID  string `json:"ownerId"`
	UserName string `json:"userName"`
}

// Client is the gateway to the platform. Implementations must be safe for
// concurrent use; the pipeline runs one worker per center against a shared
// client.
type Client interface {
	// GetEntity fetches entity metadata and, when download is set, its file
	// content to a local path recorded on the returned entity.
	GetEntity(ctx context.Context, id string, download bool) (*Entity, error)

	// ListChildren enumerates the direct and nested file children of a
	// container, metadata only.
	ListChildren(ctx context.Context, containerID string) ([]*Entity, error)

	// QueryTable runs a tabular query and returns the matching rows with
	// their locators.
	QueryTable(ctx context.Context, query string) (*table.Snapshot, error)

	// ApplyDelta applies a row-level delta to a table: appends, updates by
	// locator, deletes by locator, in one call.
	ApplyDelta(ctx context.Context, tableID string, delta *Delta) error

	// StoreFile uploads a local file under the given container.
	StoreFile(ctx context.Context, path, parentID string) (*Entity, error)

	// CreateProject creates a new project.
	CreateProject(ctx context.Context, name string) (*Entity, error)

	// CreateFolder creates a folder under the given parent, returning the
	// existing folder if one with that name is already present.
	CreateFolder(ctx context.Context, name, parentID string) (*Entity, error)

	// CreateTable creates a table from a schema.
	CreateTable(ctx context.Context, schema TableSchema) (*Entity, error)

	// TableColumns returns the column schema of an existing table.
	TableColumns(ctx context.Context, tableID string) ([]Column, error)

	// UpdateEntity stores changed entity fields: name, parent, annotations.
	UpdateEntity(ctx context.Context, ent *Entity) (*Entity, error)

	// GetUserProfile resolves a user id to a profile.
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)

	// SendMessage sends a message to the given users.
	SendMessage(ctx context.Context, userIDs []string, subject, body string) error
}
