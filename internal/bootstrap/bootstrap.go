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

// Package bootstrap provisions a project with the fixed infrastructure the
// pipeline expects: the four state tables, the log and center folders, one
// destination table and output folder per registered format, and the
// dbMapping annotation tying it together. Bootstrapping an already
// provisioned project converges rather than duplicates.
package bootstrap

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/format"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/reconcile"
	"github.com/geniehub/genie/internal/table"
)

// PrimaryKeyAnnotation marks the column set a format table is keyed on.
// Freshly created format tables carry the placeholder until the operator
// sets the real key.
const PrimaryKeyAnnotation = "primaryKey"

// defaultPrimaryKey is the placeholder value for a fresh format table.
const defaultPrimaryKey = "PRIMARY_KEY"

const (
	errCreateProject   = "cannot create project"
	errFetchProject    = "cannot fetch project"
	errCreateFolderFmt = "cannot create folder %s"
	errCreateTableFmt  = "cannot create table %s"
	errSeedCenters     = "cannot seed center mapping table"
	errSeedMapping     = "cannot seed database mapping table"
	errAnnotateProject = "cannot record mapping annotation on project"
)

// Options configure one bootstrap run. Exactly one of ProjectName and
// ProjectID must be set: a name creates a fresh project, an id converges an
// existing one.
type Options struct {
	ProjectName string
	ProjectID   string

	// Centers are the center abbreviations to provision input folders and
	// mapping rows for.
	Centers []string

	// Packages are the format registry packages whose formats get a
	// destination table and output folder.
	Packages []string
}

// Result reports what a bootstrap run provisioned.
type Result struct {
	ProjectID      string
	MappingTableID string
}

// Run provisions the project infrastructure.
func Run(ctx context.Context, client platform.Client, opts Options, log logr.Logger) (*Result, error) {
	project, err := resolveProject(ctx, client, opts)
	if err != nil {
		return nil, err
	}
	log.Info("bootstrapping project", "project", project.ID)

	logsFolder, err := client.CreateFolder(ctx, "Logs", project.ID)
	if err != nil {
		return nil, errors.Wrapf(err, errCreateFolderFmt, "Logs")
	}
	centersRoot, err := client.CreateFolder(ctx, "Centers", project.ID)
	if err != nil {
		return nil, errors.Wrapf(err, errCreateFolderFmt, "Centers")
	}
	centerFolders := make(map[string]*platform.Entity, len(opts.Centers))
	for _, center := range opts.Centers {
		folder, err := client.CreateFolder(ctx, center, centersRoot.ID)
		if err != nil {
			return nil, errors.Wrapf(err, errCreateFolderFmt, center)
		}
		centerFolders[center] = folder
	}

	statusTable, err := client.CreateTable(ctx, statusTableSchema(project.ID))
	if err != nil {
		return nil, errors.Wrapf(err, errCreateTableFmt, statusTableName)
	}
	centerTable, err := client.CreateTable(ctx, centerTableSchema(project.ID))
	if err != nil {
		return nil, errors.Wrapf(err, errCreateTableFmt, centerTableName)
	}
	errorTable, err := client.CreateTable(ctx, errorTableSchema(project.ID))
	if err != nil {
		return nil, errors.Wrapf(err, errCreateTableFmt, errorTableName)
	}
	mappingTable, err := client.CreateTable(ctx, mappingTableSchema(project.ID))
	if err != nil {
		return nil, errors.Wrapf(err, errCreateTableFmt, mappingTableName)
	}

	if err := seedCenters(ctx, client, centerTable.ID, opts.Centers, centerFolders, log); err != nil {
		return nil, err
	}

	if project.Annotations == nil {
		project.Annotations = map[string]string{}
	}
	project.Annotations[dbmap.AnnotationKey] = mappingTable.ID
	if _, err := client.UpdateEntity(ctx, project); err != nil {
		return nil, errors.Wrap(err, errAnnotateProject)
	}

	desired := table.New("Database", "Id")
	desired.MustAppend(table.Row{dbmap.DBCenterMapping, centerTable.ID})
	desired.MustAppend(table.Row{dbmap.DBValidationStatus, statusTable.ID})
	desired.MustAppend(table.Row{dbmap.DBErrorTracker, errorTable.ID})
	desired.MustAppend(table.Row{dbmap.DBMapping, mappingTable.ID})
	desired.MustAppend(table.Row{dbmap.DBLogs, logsFolder.ID})

	if err := provisionFormats(ctx, client, project.ID, opts.Packages, desired, log); err != nil {
		return nil, err
	}

	existing, err := client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s", mappingTable.ID))
	if err != nil {
		return nil, errors.Wrap(err, errSeedMapping)
	}
	// Mapping rows added by operators after bootstrap survive: no deletes.
	if _, err := reconcile.Update(ctx, client, mappingTable.ID, existing, desired, []string{"Database"}, false, log); err != nil {
		return nil, errors.Wrap(err, errSeedMapping)
	}

	log.Info("bootstrap complete", "project", project.ID, "mappingTable", mappingTable.ID)
	return &Result{ProjectID: project.ID, MappingTableID: mappingTable.ID}, nil
}

func resolveProject(ctx context.Context, client platform.Client, opts Options) (*platform.Entity, error) {
	if opts.ProjectName != "" {
		project, err := client.CreateProject(ctx, opts.ProjectName)
		return project, errors.Wrap(err, errCreateProject)
	}
	project, err := client.GetEntity(ctx, opts.ProjectID, false)
	return project, errors.Wrap(err, errFetchProject)
}

// seedCenters converges the center mapping table to the requested center
// list, each released by default and wired to its input folder.
func seedCenters(ctx context.Context, client platform.Client, tableID string, centers []string, folders map[string]*platform.Entity, log logr.Logger) error {
	desired := table.New("name", "center", "inputSynId", "release")
	for _, center := range centers {
		desired.MustAppend(table.Row{center, center, folders[center].ID, "true"})
	}
	existing, err := client.QueryTable(ctx, fmt.Sprintf("SELECT * FROM %s", tableID))
	if err != nil {
		return errors.Wrap(err, errSeedCenters)
	}
	if _, err := reconcile.Update(ctx, client, tableID, existing, desired, []string{"center"}, true, log); err != nil {
		return errors.Wrap(err, errSeedCenters)
	}
	return nil
}

// provisionFormats creates, per registered filetype, an output folder and a
// destination table, and records both in the desired mapping frame. The
// Database keys are "<filetype>" for the table and "<filetype>_folder" for
// the folder.
func provisionFormats(ctx context.Context, client platform.Client, projectID string, packages []string, desired *table.Frame, log logr.Logger) error {
	formats, err := format.CollectFormatTypes(packages, log)
	if err != nil {
		return err
	}

	outputFolder, err := client.CreateFolder(ctx, "Output", projectID)
	if err != nil {
		return errors.Wrapf(err, errCreateFolderFmt, "Output")
	}

	fileTypes := make([]string, 0, len(formats))
	for fileType := range formats {
		fileTypes = append(fileTypes, fileType)
	}
	sort.Strings(fileTypes)

	for _, fileType := range fileTypes {
		folder, err := client.CreateFolder(ctx, fileType, outputFolder.ID)
		if err != nil {
			return errors.Wrapf(err, errCreateFolderFmt, fileType)
		}
		desired.MustAppend(table.Row{fileType + "_folder", folder.ID})

		schema := platform.TableSchema{
			Name:        fileType,
			ParentID:    projectID,
			Annotations: map[string]string{PrimaryKeyAnnotation: defaultPrimaryKey},
		}
		ft, err := client.CreateTable(ctx, schema)
		if err != nil {
			return errors.Wrapf(err, errCreateTableFmt, fileType)
		}
		desired.MustAppend(table.Row{fileType, ft.ID})
	}
	return nil
}
