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

// Package mocks provides a function-field mock of the platform client.
package mocks

import (
	"context"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

var _ platform.Client = &MockClient{}

// MockClient is a mock platform client.
type MockClient struct {
	GetEntityFn      func(ctx context.Context, id string, download bool) (*platform.Entity, error)
	ListChildrenFn   func(ctx context.Context, containerID string) ([]*platform.Entity, error)
	QueryTableFn     func(ctx context.Context, query string) (*table.Snapshot, error)
	ApplyDeltaFn     func(ctx context.Context, tableID string, delta *platform.Delta) error
	StoreFileFn      func(ctx context.Context, path, parentID string) (*platform.Entity, error)
	CreateProjectFn  func(ctx context.Context, name string) (*platform.Entity, error)
	CreateFolderFn   func(ctx context.Context, name, parentID string) (*platform.Entity, error)
	CreateTableFn    func(ctx context.Context, schema platform.TableSchema) (*platform.Entity, error)
	TableColumnsFn   func(ctx context.Context, tableID string) ([]platform.Column, error)
	UpdateEntityFn   func(ctx context.Context, ent *platform.Entity) (*platform.Entity, error)
	GetUserProfileFn func(ctx context.Context, userID string) (*platform.UserProfile, error)
	SendMessageFn    func(ctx context.Context, userIDs []string, subject, body string) error
}

// GetEntity calls the underlying GetEntityFn.
func (m *MockClient) GetEntity(ctx context.Context, id string, download bool) (*platform.Entity, error) {
	return m.GetEntityFn(ctx, id, download)
}

// ListChildren calls the underlying ListChildrenFn.
func (m *MockClient) ListChildren(ctx context.Context, containerID string) ([]*platform.Entity, error) {
	return m.ListChildrenFn(ctx, containerID)
}

// QueryTable calls the underlying QueryTableFn.
func (m *MockClient) QueryTable(ctx context.Context, query string) (*table.Snapshot, error) {
	return m.QueryTableFn(ctx, query)
}

// ApplyDelta calls the underlying ApplyDeltaFn.
func (m *MockClient) ApplyDelta(ctx context.Context, tableID string, delta *platform.Delta) error {
	return m.ApplyDeltaFn(ctx, tableID, delta)
}

// StoreFile calls the underlying StoreFileFn.
func (m *MockClient) StoreFile(ctx context.Context, path, parentID string) (*platform.Entity, error) {
	return m.StoreFileFn(ctx, path, parentID)
}

// CreateProject calls the underlying CreateProjectFn.
func (m *MockClient) CreateProject(ctx context.Context, name string) (*platform.Entity, error) {
	return m.CreateProjectFn(ctx, name)
}

// CreateFolder calls the underlying CreateFolderFn.
func (m *MockClient) CreateFolder(ctx context.Context, name, parentID string) (*platform.Entity, error) {
	return m.CreateFolderFn(ctx, name, parentID)
}

// CreateTable calls the underlying CreateTableFn.
func (m *MockClient) CreateTable(ctx context.Context, schema platform.TableSchema) (*platform.Entity, error) {
	return m.CreateTableFn(ctx, schema)
}

// TableColumns calls the underlying TableColumnsFn.
func (m *MockClient) TableColumns(ctx context.Context, tableID string) ([]platform.Column, error) {
	return m.TableColumnsFn(ctx, tableID)
}

// UpdateEntity calls the underlying UpdateEntityFn.
func (m *MockClient) UpdateEntity(ctx context.Context, ent *platform.Entity) (*platform.Entity, error) {
	return m.UpdateEntityFn(ctx, ent)
}

// GetUserProfile calls the underlying GetUserProfileFn.
func (m *MockClient) GetUserProfile(ctx context.Context, userID string) (*platform.UserProfile, error) {
	return m.GetUserProfileFn(ctx, userID)
}

// SendMessage calls the underlying SendMessageFn.
func (m *MockClient) SendMessage(ctx context.Context, userIDs []string, subject, body string) error {
	return m.SendMessageFn(ctx, userIDs, subject, body)
}
