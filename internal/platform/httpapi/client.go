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

// Package httpapi implements the platform gateway over the service's REST
// API. Every call has a bounded per-call timeout and transient failures are
// retried with exponential backoff.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/table"
)

const (
	// UserAgent identifies the CLI to the platform API.
	UserAgent = "genie-cli"

	defaultTimeout  = 3 * time.Second
	defaultAttempts = 5
	defaultBackoff  = 1 * time.Second
)

const (
	errMissingBase    = "base endpoint is required"
	errRequestFmt     = "request %s %s failed"
	errStatusFmt      = "%s %s returned status %d"
	errDecodeResponse = "cannot decode response"
	errEncodeRequest  = "cannot encode request"
	errDownloadFile   = "cannot download file content"
	errUploadFile     = "cannot upload file content"
	errSnapshotIndex  = "query returned misaligned row locators"
)

// Doer sends a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry overrides the retry policy.
func WithRetry(attempts uint64, base time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.backoff = base
	}
}

// WithCacheDir sets the directory downloaded file content is written to.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// Client talks to the platform REST API.
type Client struct {
	http     Doer
	base     *url.URL
	token    string
	timeout  time.Duration
	attempts uint64
	backoff  time.Duration
	cacheDir string
}

var _ platform.Client = &Client{}

// New constructs a platform client for the given API endpoint.
func New(base *url.URL, token string, opts ...Option) (*Client, error) {
	if base == nil {
		return nil, errors.New(errMissingBase)
	}
	c := &Client{
		http:     http.DefaultClient,
		base:     base,
		token:    token,
		timeout:  defaultTimeout,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		cacheDir: filepath.Join(os.TempDir(), "genie-cache"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// do runs one API call with timeout and retry. out, when non-nil, receives
// the decoded JSON response body.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, errEncodeRequest)
		}
	}
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		u := *c.base
		u.Path = path.Join(u.Path, endpoint)
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(callCtx, method, u.String(), rdr)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.decorate(req)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		res, err := c.http.Do(req)
		if err != nil {
			// Connection-level failures are worth another attempt.
			return platform.NewTransient(errors.Wrapf(err, errRequestFmt, method, endpoint))
		}
		defer res.Body.Close() // nolint:errcheck
		if err := classifyStatus(res.StatusCode, method, endpoint); err != nil {
			if platform.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return backoff.Permanent(errors.Wrap(err, errDecodeResponse))
		}
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.backoff),
	), c.attempts-1)
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyStatus maps HTTP status codes onto the transient/fatal taxonomy.
func classifyStatus(code int, method, path string) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return platform.NewTransient(errors.Errorf(errStatusFmt, method, path, code))
	default:
		// Auth, permission, and not-found failures do not converge on
		// retry.
		return platform.NewFatal(errors.Errorf(errStatusFmt, method, path, code))
	}
}

type entityBody struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ParentID    string            `json:"parentId"`
	MD5         string            `json:"md5,omitempty"`
	Size        int64             `json:"size,omitempty"`
	CreatedBy   string            `json:"createdBy,omitempty"`
	ModifiedBy  string            `json:"modifiedBy,omitempty"`
	ModifiedOn  time.Time         `json:"modifiedOn,omitempty"`
	Container   bool              `json:"isContainer,omitempty"`
	ConcreteTyp string            `json:"concreteType,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func (b *entityBody) toEntity() *platform.Entity {
	return &platform.Entity{
		ID:          b.ID,
		Name:        b.Name,
		ParentID:    b.ParentID,
		MD5:         b.MD5,
		Size:        b.Size,
		CreatedBy:   b.CreatedBy,
		ModifiedBy:  b.ModifiedBy,
		ModifiedOn:  b.ModifiedOn,
		Container:   b.Container,
		Annotations: b.Annotations,
	}
}

// GetEntity fetches entity metadata and optionally its file content.
func (c *Client) GetEntity(ctx context.Context, id string, download bool) (*platform.Entity, error) {
	var body entityBody
	if err := c.do(ctx, http.MethodGet, "/entity/"+id, nil, &body); err != nil {
		return nil, err
	}
	ent := body.toEntity()
	if download && !ent.Container {
		path, err := c.downloadContent(ctx, ent)
		if err != nil {
			return nil, err
		}
		ent.Path = path
	}
	return ent, nil
}

func (c *Client) downloadContent(ctx context.Context, ent *platform.Entity) (string, error) {
	if err := os.MkdirAll(filepath.Join(c.cacheDir, ent.ID), 0o755); err != nil {
		return "", errors.Wrap(err, errDownloadFile)
	}
	dest := filepath.Join(c.cacheDir, ent.ID, ent.Name)
	callCtx, cancel := context.WithTimeout(ctx, c.timeout*10)
	defer cancel()
	u := *c.base
	u.Path = path.Join(u.Path, "/entity/"+ent.ID+"/file")
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, errDownloadFile)
	}
	c.decorate(req)
	res, err := c.http.Do(req)
	if err != nil {
		return "", platform.NewTransient(errors.Wrap(err, errDownloadFile))
	}
	defer res.Body.Close() // nolint:errcheck
	if err := classifyStatus(res.StatusCode, http.MethodGet, "/entity/"+ent.ID+"/file"); err != nil {
		return "", err
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, errDownloadFile)
	}
	defer f.Close() // nolint:errcheck
	if _, err := io.Copy(f, res.Body); err != nil {
		return "", errors.Wrap(err, errDownloadFile)
	}
	return dest, f.Close()
}

type childrenBody struct {
	Children []entityBody `json:"children"`
}

// ListChildren enumerates the file children of a container, descending into
// nested folders.
func (c *Client) ListChildren(ctx context.Context, containerID string) ([]*platform.Entity, error) {
	var body childrenBody
	if err := c.do(ctx, http.MethodGet, "/entity/"+containerID+"/children", nil, &body); err != nil {
		return nil, err
	}
	var out []*platform.Entity
	for i := range body.Children {
		child := body.Children[i].toEntity()
		if child.Container {
			nested, err := c.ListChildren(ctx, child.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, child)
	}
	return out, nil
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns  []string    `json:"columns"`
	Rows     [][]*string `json:"rows"`
	Locators []string    `json:"rowLocators"`
}

// QueryTable runs a tabular query. Null cells come back as the empty string;
// the empty string is the only representation of "no value" downstream.
func (c *Client) QueryTable(ctx context.Context, query string) (*table.Snapshot, error) {
	var body queryResponse
	if err := c.do(ctx, http.MethodPost, "/table/query", queryRequest{SQL: query}, &body); err != nil {
		return nil, err
	}
	if len(body.Rows) != len(body.Locators) {
		return nil, errors.New(errSnapshotIndex)
	}
	fr := table.New(body.Columns...)
	locs := make([]table.RowLocator, 0, len(body.Rows))
	for i, raw := range body.Rows {
		row := make(table.Row, len(raw))
		for j, cell := range raw {
			if cell != nil {
				row[j] = *cell
			}
		}
		if err := fr.Append(row); err != nil {
			return nil, err
		}
		loc, err := table.ParseRowLocator(body.Locators[i])
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return &table.Snapshot{Frame: fr, Locators: locs}, nil
}

// ApplyDelta applies a row-level delta through the bulk table update call.
func (c *Client) ApplyDelta(ctx context.Context, tableID string, delta *platform.Delta) error {
	if delta.Empty() {
		return nil
	}
	payload, err := delta.Encode()
	if err != nil {
		return err
	}
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout*10)
		defer cancel()
		u := *c.base
		u.Path = path.Join(u.Path, "/table/"+tableID+"/rows")
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, u.String(), bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		c.decorate(req)
		req.Header.Set("Content-Type", "text/csv")
		res, err := c.http.Do(req)
		if err != nil {
			return platform.NewTransient(errors.Wrapf(err, errRequestFmt, http.MethodPost, "/table/"+tableID+"/rows"))
		}
		defer res.Body.Close() // nolint:errcheck
		if err := classifyStatus(res.StatusCode, http.MethodPost, "/table/"+tableID+"/rows"); err != nil {
			if platform.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.backoff),
	), c.attempts-1)
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// StoreFile uploads a local file under the given container.
func (c *Client) StoreFile(ctx context.Context, path, parentID string) (*platform.Entity, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errUploadFile)
	}
	req := struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
		Content  []byte `json:"content"`
	}{Name: filepath.Base(path), ParentID: parentID, Content: content}
	var body entityBody
	if err := c.do(ctx, http.MethodPost, "/file", req, &body); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

// CreateProject creates a new project.
func (c *Client) CreateProject(ctx context.Context, name string) (*platform.Entity, error) {
	req := struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}{Name: name, Type: "project"}
	var body entityBody
	if err := c.do(ctx, http.MethodPost, "/entity", req, &body); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

// CreateFolder creates a folder under the given parent.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*platform.Entity, error) {
	req := struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
		Type     string `json:"type"`
	}{Name: name, ParentID: parentID, Type: "folder"}
	var body entityBody
	if err := c.do(ctx, http.MethodPost, "/entity", req, &body); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

// CreateTable creates a table from a schema.
func (c *Client) CreateTable(ctx context.Context, schema platform.TableSchema) (*platform.Entity, error) {
	req := struct {
		Name        string            `json:"name"`
		ParentID    string            `json:"parentId"`
		Type        string            `json:"type"`
		Columns     []platform.Column `json:"columns,omitempty"`
		Annotations map[string]string `json:"annotations,omitempty"`
	}{Name: schema.Name, ParentID: schema.ParentID, Type: "table", Columns: schema.Columns, Annotations: schema.Annotations}
	var body entityBody
	if err := c.do(ctx, http.MethodPost, "/entity", req, &body); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

// TableColumns returns the column schema of an existing table.
func (c *Client) TableColumns(ctx context.Context, tableID string) ([]platform.Column, error) {
	var body struct {
		Columns []platform.Column `json:"columns"`
	}
	if err := c.do(ctx, http.MethodGet, "/table/"+tableID+"/columns", nil, &body); err != nil {
		return nil, err
	}
	return body.Columns, nil
}

// UpdateEntity stores changed entity fields.
func (c *Client) UpdateEntity(ctx context.Context, ent *platform.Entity) (*platform.Entity, error) {
	req := entityBody{
		ID:          ent.ID,
		Name:        ent.Name,
		ParentID:    ent.ParentID,
		Annotations: ent.Annotations,
	}
	var body entityBody
	if err := c.do(ctx, http.MethodPut, "/entity/"+ent.ID, req, &body); err != nil {
		return nil, err
	}
	return body.toEntity(), nil
}

// GetUserProfile resolves a user id to a profile.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*platform.UserProfile, error) {
	var body platform.UserProfile
	if err := c.do(ctx, http.MethodGet, "/user/"+userID, nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// SendMessage sends a message to the given users.
func (c *Client) SendMessage(ctx context.Context, userIDs []string, subject, body string) error {
	req := struct {
		Recipients []string `json:"recipients"`
		Subject    string   `json:"subject"`
		Body       string   `json:"body"`
	}{Recipients: userIDs, Subject: subject, Body: body}
	return c.do(ctx, http.MethodPost, "/message", req, nil)
}
