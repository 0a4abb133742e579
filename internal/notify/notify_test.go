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

package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
	"github.com/geniehub/genie/internal/platform/mocks"
)

func TestSend(t *testing.T) {
	var gotSubject, gotBody string
	var gotRecipients []string
	client := &mocks.MockClient{
		GetUserProfileFn: func(_ context.Context, userID string) (*platform.UserProfile, error) {
			return &platform.UserProfile{OwnerID: userID, UserName: "jdoe"}, nil
		},
		SendMessageFn: func(_ context.Context, userIDs []string, subject, body string) error {
			gotRecipients = userIDs
			gotSubject = subject
			gotBody = body
			return nil
		},
	}

	n := New(client, logr.Discard())
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	err := n.Send(context.Background(), "user1", []Message{
		{Filenames: []string{"a.csv"}, Body: "bad header"},
		{Filenames: []string{"b.csv", "c.csv"}, Body: "missing id"},
	})
	if err != nil {
		t.Fatalf("Send(...): %v", err)
	}

	if diff := cmp.Diff([]string{"user1"}, gotRecipients); diff != "" {
		t.Errorf("recipients: -want, +got:\n%s", diff)
	}
	if want := "GENIE Validation Error - 2024-03-01 12:00:00"; gotSubject != want {
		t.Errorf("subject: want %q, got %q", want, gotSubject)
	}
	for _, want := range []string{
		"Dear jdoe,",
		"You have invalid files!",
		"Filenames: a.csv, Errors:\n bad header",
		"Filenames: b.csv, c.csv, Errors:\n missing id",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("body missing %q:\n%s", want, gotBody)
		}
	}
}

func TestSendAll(t *testing.T) {
	var order []string
	client := &mocks.MockClient{
		GetUserProfileFn: func(_ context.Context, userID string) (*platform.UserProfile, error) {
			if userID == "broken" {
				return nil, errors.New("no such user")
			}
			return &platform.UserProfile{OwnerID: userID, UserName: userID}, nil
		},
		SendMessageFn: func(_ context.Context, userIDs []string, _, _ string) error {
			order = append(order, userIDs[0])
			return nil
		},
	}

	n := New(client, logr.Discard())
	n.SendAll(context.Background(), map[string][]Message{
		"zeta":   {{Filenames: []string{"z.csv"}, Body: "z"}},
		"broken": {{Filenames: []string{"x.csv"}, Body: "x"}},
		"alpha":  {{Filenames: []string{"a.csv"}, Body: "a"}},
	})

	// The broken recipient is logged and skipped; the rest deliver in
	// sorted order.
	if diff := cmp.Diff([]string{"alpha", "zeta"}, order); diff != "" {
		t.Errorf("delivery order: -want, +got:\n%s", diff)
	}
}
