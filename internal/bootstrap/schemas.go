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

package bootstrap

import "github.com/geniehub/genie/internal/platform"

// Display names of the fixed state tables.
const (
	statusTableName  = "Status Table"
	centerTableName  = "Center Table"
	errorTableName   = "Error Table"
	mappingTableName = "DB Mapping Table"
)

// statusTableSchema holds the validation status of every submitted file.
func statusTableSchema(projectID string) platform.TableSchema {
	return platform.TableSchema{
		Name:     statusTableName,
		ParentID: projectID,
		Columns: []platform.Column{
			{Name: "id", Type: "ENTITYID"},
			{Name: "md5", Type: "STRING", MaximumSize: 1000},
			{Name: "status", Type: "STRING", MaximumSize: 50, FacetType: "enumeration"},
			{Name: "name", Type: "STRING", MaximumSize: 1000},
			{Name: "center", Type: "STRING", MaximumSize: 20, FacetType: "enumeration"},
			{Name: "modifiedOn", Type: "DATE"},
			{Name: "fileType", Type: "STRING", MaximumSize: 50},
		},
	}
}

// centerTableSchema maps center abbreviations to their input folders.
func centerTableSchema(projectID string) platform.TableSchema {
	return platform.TableSchema{
		Name:     centerTableName,
		ParentID: projectID,
		Columns: []platform.Column{
			{Name: "name", Type: "STRING", MaximumSize: 250},
			{Name: "center", Type: "STRING", MaximumSize: 50},
			{Name: "inputSynId", Type: "ENTITYID"},
			{Name: "release", Type: "BOOLEAN", DefaultValue: "false"},
		},
	}
}

// errorTableSchema records the validation report of every invalid file.
func errorTableSchema(projectID string) platform.TableSchema {
	return platform.TableSchema{
		Name:     errorTableName,
		ParentID: projectID,
		Columns: []platform.Column{
			{Name: "id", Type: "ENTITYID"},
			{Name: "center", Type: "STRING", MaximumSize: 50, FacetType: "enumeration"},
			{Name: "errors", Type: "LARGETEXT"},
			{Name: "name", Type: "STRING", MaximumSize: 500},
			{Name: "fileType", Type: "STRING", MaximumSize: 50},
		},
	}
}

// mappingTableSchema maps logical database names to entity ids.
func mappingTableSchema(projectID string) platform.TableSchema {
	return platform.TableSchema{
		Name:     mappingTableName,
		ParentID: projectID,
		Columns: []platform.Column{
			{Name: "Database", Type: "STRING", MaximumSize: 50},
			{Name: "Id", Type: "ENTITYID"},
		},
	}
}
