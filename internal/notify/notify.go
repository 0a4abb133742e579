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

// Package notify sends submitters one consolidated message per recipient
// describing their invalid files.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/geniehub/genie/internal/platform"
)

const (
	subjectFmt = "GENIE Validation Error - %s"

	bodyHeaderFmt = "Dear %s,\n\nYou have invalid files! Here are the reasons why:\n\n"
	bodyEntryFmt  = "Filenames: %s, Errors:\n %s\n\n"
)

const (
	errProfileFmt = "cannot resolve recipient %s"
	errSendFmt    = "cannot send message to %s"
)

// A Message is one invalid-file report destined for a recipient: the
// implicated filenames and the validation report.
type Message struct {
	Filenames []string
	Body      string
}

// Notifier delivers consolidated validation reports.
type Notifier struct {
	client platform.Client
	now    func() time.Time
	log    logr.Logger
}

// New constructs a Notifier.
func New(client platform.Client, log logr.Logger) *Notifier {
	return &Notifier{client: client, now: time.Now, log: log}
}

// Send delivers one message to the recipient enumerating every report.
func (n *Notifier) Send(ctx context.Context, recipientID string, messages []Message) error {
	profile, err := n.client.GetUserProfile(ctx, recipientID)
	if err != nil {
		return errors.Wrapf(err, errProfileFmt, recipientID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, bodyHeaderFmt, profile.UserName)
	for _, m := range messages {
		fmt.Fprintf(&b, bodyEntryFmt, strings.Join(m.Filenames, ", "), m.Body)
	}

	subject := fmt.Sprintf(subjectFmt, n.now().Format("2006-01-02 15:04:05"))
	n.log.Info("sending validation report", "recipient", recipientID, "reports", len(messages))
	if err := n.client.SendMessage(ctx, []string{recipientID}, subject, b.String()); err != nil {
		return errors.Wrapf(err, errSendFmt, recipientID)
	}
	return nil
}

// SendAll delivers each recipient's messages in a stable recipient order.
// Delivery failures are logged and do not interrupt remaining recipients.
func (n *Notifier) SendAll(ctx context.Context, byRecipient map[string][]Message) {
	recipients := make([]string, 0, len(byRecipient))
	for r := range byRecipient {
		recipients = append(recipients, r)
	}
	sort.Strings(recipients)
	for _, r := range recipients {
		if err := n.Send(ctx, r, byRecipient[r]); err != nil {
			n.log.Error(err, "cannot notify recipient", "recipient", r)
		}
	}
}
