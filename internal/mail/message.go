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

// Package mail converts raw RFC 822 messages into the normalized read-only
// view the classifier and extractors consume: a header map, the decoded
// subject, the concatenated plain-text body and the parsed sender.
package mail

import (
	"bytes"
	"io"
	"log/slog"
	netmail "net/mail"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

func init() {
	// Decode non-UTF-8 message parts instead of erroring out on them.
	message.CharsetReader = charset.Reader
}

// Message is a normalized view of one fetched message. It is constructed
// once from the raw bytes and read-only afterwards.
type Message struct {
	headers    map[string]string
	subject    string
	body       string
	senderName string
	senderAddr string
}

// Parse builds a Message from raw RFC 822 bytes. Parsing is best-effort:
// undecodable headers keep their raw value, unreadable body parts are
// skipped, and invalid bytes are dropped from the body. A message whose
// headers cannot be read at all yields an empty Message, never an error.
func Parse(raw []byte, log *slog.Logger) *Message {
	m := &Message{headers: map[string]string{}}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		log.Warn("unreadable message, treating as empty", "error", err)
		return m
	}
	if err != nil {
		log.Debug("partial message parse", "error", err)
	}
	defer mr.Close()

	fields := mr.Header.Fields()
	for fields.Next() {
		text, err := fields.Text()
		if err != nil {
			text = fields.Value()
		}
		m.headers[textprotoKey(fields.Key())] = text
	}

	if subject, err := mr.Header.Subject(); err == nil {
		m.subject = subject
	} else {
		m.subject = mr.Header.Get("Subject")
	}

	m.senderName, m.senderAddr = parseSender(mr.Header.Get("From"))

	var body strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Debug("skipping unreadable body part", "error", err)
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil || contentType != "text/plain" {
			continue
		}
		if data, err := io.ReadAll(part.Body); err == nil {
			body.Write(data)
		}
	}
	// CRLF line endings would defeat line-anchored extraction patterns.
	m.body = strings.ToValidUTF8(strings.ReplaceAll(body.String(), "\r\n", "\n"), "")

	return m
}

// parseSender splits a From header into display name and address.
func parseSender(from string) (name, address string) {
	if from == "" {
		return "", ""
	}
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		// Sloppy From headers still often carry a bare address
		if strings.Contains(from, "@") {
			return "", strings.ToLower(strings.TrimSpace(from))
		}
		return "", ""
	}
	return strings.TrimSpace(addr.Name), strings.ToLower(addr.Address)
}

// Header returns the decoded value of a header, or "" when absent.
func (m *Message) Header(name string) string {
	return m.headers[textprotoKey(name)]
}

// Subject returns the decoded subject line.
func (m *Message) Subject() string { return m.subject }

// Body returns the concatenation of all decoded text/plain body parts.
func (m *Message) Body() string { return m.body }

// Sender returns the parsed From display name and lower-cased address.
func (m *Message) Sender() (name, address string) {
	return m.senderName, m.senderAddr
}

// SenderDomain returns the part of the sender address after the last "@",
// lower-cased, or "" when the sender has no address.
func (m *Message) SenderDomain() string {
	if i := strings.LastIndex(m.senderAddr, "@"); i >= 0 {
		return strings.ToLower(m.senderAddr[i+1:])
	}
	return ""
}

// textprotoKey canonicalises a header name so stored keys and lookups
// agree ("subject" -> "Subject", "message-ID" -> "Message-Id").
func textprotoKey(name string) string {
	var b strings.Builder
	upper := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-':
			upper = true
			b.WriteByte(c)
		case upper && 'a' <= c && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			upper = false
		case !upper && 'A' <= c && c <= 'Z':
			b.WriteByte(c - 'A' + 'a')
		default:
			b.WriteByte(c)
			upper = false
		}
	}
	return b.String()
}
