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
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/dbmap"
	"github.com/geniehub/genie/internal/platform"
)

// CenterErrors returns the concatenated error texts recorded for a center,
// one block per invalid file, in error-table order.
func CenterErrors(ctx context.Context, client platform.Client, dbm *dbmap.Mapping, center string) (string, error) {
	tableID, err := dbm.ID(dbmap.DBErrorTracker)
	if err != nil {
		return "", err
	}
	snap, err := client.QueryTable(ctx, centerQuery(tableID, center))
	if err != nil {
		return "", errors.Wrapf(err, errQueryTableFmt, dbmap.DBErrorTracker)
	}

	var b strings.Builder
	for i := 0; i < snap.Frame.Len(); i++ {
		fmt.Fprintf(&b, "%s (%s):\n\n%s\n\n",
			snap.Frame.Value(i, "name"),
			snap.Frame.Value(i, "id"),
			snap.Frame.Value(i, "errors"))
	}
	return b.String(), nil
}
