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
	"github.com/go-logr/logr"

	"github.com/geniehub/genie/internal/notify"
	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/status"
	"github.com/geniehub/genie/internal/table"
)

// DuplicatedFileError is the canonical report recorded for every file whose
// name collides with another file of the same center.
const DuplicatedFileError = "Duplicated filename! Files should be uploaded " +
	"as new versions and the entire dataset should be uploaded."

// defaultFileType replaces a blank filetype in the persisted frames.
const defaultFileType = "other"

// duplicatedIDs returns the ids of status rows sharing a name with another
// row, deduplicated, in frame order.
func duplicatedIDs(statusFrame *table.Frame) []string {
	nameCount := map[string]int{}
	for i := 0; i < statusFrame.Len(); i++ {
		nameCount[statusFrame.Value(i, "name")]++
	}
	seen := map[string]struct{}{}
	var ids []string
	for i := 0; i < statusFrame.Len(); i++ {
		if nameCount[statusFrame.Value(i, "name")] < 2 {
			continue
		}
		id := statusFrame.Value(i, "id")
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// updateTablesContent applies the duplicate-filename rule to the freshly
// built frames: duplicated files become INVALID with the canonical report,
// previously recorded duplicate errors whose files are no longer duplicated
// are purged from both frames, and the error frame is restricted to files
// that are actually invalid. It returns the adjusted frames and the
// duplicated entities.
func updateTablesContent(statusFrame, errorFrame *table.Frame, ents map[string]*platform.Entity, log logr.Logger) (*table.Frame, *table.Frame, []*platform.Entity) {
	log.Info("check for duplicated files")
	dupIDs := duplicatedIDs(statusFrame)
	log.Info("duplicated files found", "count", len(dupIDs))

	dup := map[string]struct{}{}
	for _, id := range dupIDs {
		dup[id] = struct{}{}
	}

	for i := 0; i < statusFrame.Len(); i++ {
		if _, ok := dup[statusFrame.Value(i, "id")]; ok {
			_ = statusFrame.SetValue(i, "status", status.Invalid) // nolint:errcheck
		}
	}
	for i := 0; i < errorFrame.Len(); i++ {
		if _, ok := dup[errorFrame.Value(i, "id")]; ok {
			_ = errorFrame.SetValue(i, "errors", DuplicatedFileError) // nolint:errcheck
		}
	}

	// Old duplicate errors are pulled down by the reuse path; ones whose
	// files are no longer duplicated are dropped from both frames so the
	// reconciler deletes their rows and the files are revalidated next run.
	fixed := map[string]struct{}{}
	for i := 0; i < errorFrame.Len(); i++ {
		id := errorFrame.Value(i, "id")
		if errorFrame.Value(i, "errors") != DuplicatedFileError {
			continue
		}
		if _, ok := dup[id]; !ok {
			fixed[id] = struct{}{}
		}
	}
	errorFrame = errorFrame.Filter(func(r table.Row) bool {
		_, ok := fixed[r[0]]
		return !ok
	})
	statusFrame = statusFrame.Filter(func(r table.Row) bool {
		_, ok := fixed[r[0]]
		return !ok
	})

	// Duplicated files without an error row of their own get one.
	for _, id := range dupIDs {
		if _, ok := errorFrame.Lookup("id", id); ok {
			continue
		}
		si, ok := statusFrame.Lookup("id", id)
		if !ok {
			continue
		}
		errorFrame.MustAppend(table.Row{
			id,
			statusFrame.Value(si, "center"),
			DuplicatedFileError,
			statusFrame.Value(si, "name"),
			statusFrame.Value(si, "fileType"),
		})
	}

	// Centers may have fixed their files, so errors are kept only for files
	// still marked invalid.
	invalid := map[string]struct{}{}
	for i := 0; i < statusFrame.Len(); i++ {
		if statusFrame.Value(i, "status") == status.Invalid {
			invalid[statusFrame.Value(i, "id")] = struct{}{}
		}
	}
	errorFrame = errorFrame.Filter(func(r table.Row) bool {
		_, ok := invalid[r[0]]
		return ok
	})

	fillBlankFileType(statusFrame)
	fillBlankFileType(errorFrame)

	var duplicated []*platform.Entity
	for _, id := range dupIDs {
		if ent, ok := ents[id]; ok {
			duplicated = append(duplicated, ent)
		}
	}
	return statusFrame, errorFrame, duplicated
}

func fillBlankFileType(f *table.Frame) {
	if !f.HasColumn("fileType") {
		return
	}
	for i := 0; i < f.Len(); i++ {
		if f.Value(i, "fileType") == "" {
			_ = f.SetValue(i, "fileType", defaultFileType) // nolint:errcheck
		}
	}
}

// appendDuplicationErrors adds the duplicate-filename report to the messages
// of every owner of a duplicated file.
func appendDuplicationErrors(duplicated []*platform.Entity, byRecipient map[string][]notify.Message) {
	if len(duplicated) == 0 {
		return
	}
	filenames := make([]string, 0, len(duplicated))
	for _, ent := range duplicated {
		filenames = append(filenames, ent.Name)
	}
	msg := notify.Message{Filenames: filenames, Body: DuplicatedFileError}
	for _, user := range submitters(duplicated) {
		byRecipient[user] = append(byRecipient[user], msg)
	}
}
