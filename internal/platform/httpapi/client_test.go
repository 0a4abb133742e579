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

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c, err := New(base, "secret", WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewRequiresBase(t *testing.T) {
	_, err := New(nil, "secret")
	assert.Error(t, err)
}

func TestGetEntityDecoratesRequest(t *testing.T) {
	var gotAuth, gotAgent, gotRequestID string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get("X-Request-Id")
		json.NewEncoder(w).Encode(map[string]any{"id": "syn1", "name": "a.csv"}) // nolint:errcheck
	}))

	ent, err := c.GetEntity(context.Background(), "syn1", false)
	require.NoError(t, err)
	assert.Equal(t, "syn1", ent.ID)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, UserAgent, gotAgent)
	assert.NotEmpty(t, gotRequestID)
}

func TestRequestPathJoining(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"id": "syn1"}) // nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	// Endpoint segments join onto the base path with forward slashes on
	// every platform.
	base, err := url.Parse(srv.URL + "/api/v1")
	require.NoError(t, err)
	c, err := New(base, "secret")
	require.NoError(t, err)

	_, err = c.GetEntity(context.Background(), "syn1", false)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/entity/syn1", gotPath)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	attempts := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "syn1"}) // nolint:errcheck
	}))

	_, err := c.GetEntity(context.Background(), "syn1", false)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnFatalStatus(t *testing.T) {
	attempts := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.GetEntity(context.Background(), "syn1", false)
	require.Error(t, err)
	assert.True(t, platform.IsFatal(err))
	assert.Equal(t, 1, attempts, "auth failures do not converge on retry")
}

func TestQueryTable(t *testing.T) {
	null := func() *string { return nil }
	str := func(s string) *string { return &s }

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req struct {
			SQL string `json:"sql"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SELECT * FROM syn1", req.SQL)

		json.NewEncoder(w).Encode(queryResponse{ // nolint:errcheck
			Columns:  []string{"id", "center"},
			Rows:     [][]*string{{str("syn2"), str("SAGE")}, {str("syn3"), null()}},
			Locators: []string{"1_2", "4_1"},
		})
	}))

	snap, err := c.QueryTable(context.Background(), "SELECT * FROM syn1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Frame.Len())
	// Null cells decode to the empty string.
	assert.Equal(t, "", snap.Frame.Value(1, "center"))
	assert.Equal(t, table.RowLocator{RowID: "1", RowVersion: "2"}, snap.Locators[0])
}

func TestQueryTableMisalignedLocators(t *testing.T) {
	str := "syn2"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(queryResponse{ // nolint:errcheck
			Columns:  []string{"id"},
			Rows:     [][]*string{{&str}},
			Locators: nil,
		})
	}))

	_, err := c.QueryTable(context.Background(), "SELECT * FROM syn1")
	assert.Error(t, err)
}

func TestApplyDelta(t *testing.T) {
	requests := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "text/csv", r.Header.Get("Content-Type"))
	}))

	// An empty delta never reaches the wire.
	require.NoError(t, c.ApplyDelta(context.Background(), "syn1", &platform.Delta{}))
	assert.Equal(t, 0, requests)

	delta := &platform.Delta{Columns: []string{"id"}, Appends: []table.Row{{"syn2"}}}
	require.NoError(t, c.ApplyDelta(context.Background(), "syn1", delta))
	assert.Equal(t, 1, requests)
}
