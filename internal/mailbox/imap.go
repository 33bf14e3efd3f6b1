// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mailbox implements the IMAP transport the scanner pulls
// messages from: connect, UID-windowed fetch since a watermark, close.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/talentsift/extractor/internal/config"
	"github.com/talentsift/extractor/internal/mail"
)

// Envelope pairs a message with its mailbox UID.
type Envelope struct {
	UID string
	Msg *mail.Message
}

// IMAPClient reads one account's INBOX over IMAP.
type IMAPClient struct {
	account config.Account
	log     *slog.Logger

	c    *client.Client
	mbox *imap.MailboxStatus
}

// NewIMAPClient creates an unconnected client for the account.
func NewIMAPClient(account config.Account, log *slog.Logger) *IMAPClient {
	return &IMAPClient{
		account: account,
		log:     log.With("account", account.Address),
	}
}

// Connect dials the server, logs in and selects INBOX read-only.
func (m *IMAPClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.account.IMAPServer, m.account.IMAPPort)
	tlsConfig := &tls.Config{ServerName: m.account.IMAPServer}

	var (
		c   *client.Client
		err error
	)
	if m.account.UseTLS {
		c, err = client.DialTLS(addr, tlsConfig)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := c.Login(m.account.Address, m.account.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("login %s: %w", m.account.Address, err)
	}

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		_ = c.Logout()
		return fmt.Errorf("select INBOX: %w", err)
	}

	m.c = c
	m.mbox = mbox
	m.log.Info("connected to mailbox", "server", addr, "messages", mbox.Messages)
	return nil
}

// Fetch returns up to batchSize messages with UIDs strictly greater than
// sinceUID, ordered ascending by numeric UID. An empty sinceUID starts
// from the beginning of the mailbox.
func (m *IMAPClient) Fetch(ctx context.Context, sinceUID string, batchSize int) ([]Envelope, error) {
	if m.c == nil {
		return nil, fmt.Errorf("fetch before connect")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.mbox.Messages == 0 {
		return nil, nil
	}

	var since uint32
	if sinceUID != "" {
		n, err := strconv.ParseUint(sinceUID, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid watermark UID %q: %w", sinceUID, err)
		}
		since = uint32(n)
	}

	// Search since+1:MAX, not since+1:*. A '*' upper bound always
	// returns at least the last message, even below the floor.
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(since+1, math.MaxUint32)
	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqSet

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}

	kept := uids[:0]
	for _, uid := range uids {
		if uid > since {
			kept = append(kept, uid)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	if len(kept) == 0 {
		return nil, nil
	}
	if batchSize > 0 && len(kept) > batchSize {
		kept = kept[:batchSize]
	}

	fetchSet := new(imap.SeqSet)
	fetchSet.AddNum(kept...)

	// Peek keeps the server from flagging messages as seen
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(kept))
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(fetchSet, items, messages)
	}()

	var out []Envelope
	for msg := range messages {
		if msg == nil || msg.Uid == 0 {
			continue
		}
		r := msg.GetBody(section)
		if r == nil {
			m.log.Warn("server returned no body", "uid", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			m.log.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		out = append(out, Envelope{
			UID: strconv.FormatUint(uint64(msg.Uid), 10),
			Msg: mail.Parse(raw, m.log),
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("uid fetch: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseUint(out[i].UID, 10, 64)
		b, _ := strconv.ParseUint(out[j].UID, 10, 64)
		return a < b
	})

	return out, nil
}

// Close logs out from the server.
func (m *IMAPClient) Close() error {
	if m.c == nil {
		return nil
	}
	err := m.c.Logout()
	m.c = nil
	m.mbox = nil
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
