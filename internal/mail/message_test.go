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

package mail

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParsePlainMessage(t *testing.T) {
	raw := "From: Jane Doe <Jane@BigCorp.com>\r\n" +
		"To: me@inbox.example\r\n" +
		"Subject: Hello there\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"First line\r\nSecond line\r\n"

	m := Parse([]byte(raw), discardLogger())

	if m.Subject() != "Hello there" {
		t.Errorf("Subject = %q", m.Subject())
	}
	name, addr := m.Sender()
	if name != "Jane Doe" || addr != "jane@bigcorp.com" {
		t.Errorf("Sender = %q, %q", name, addr)
	}
	if m.SenderDomain() != "bigcorp.com" {
		t.Errorf("SenderDomain = %q", m.SenderDomain())
	}
	if m.Body() != "First line\nSecond line\n" {
		t.Errorf("Body = %q, want line endings normalised", m.Body())
	}
}

func TestParseHeaderLookupIsCaseInsensitive(t *testing.T) {
	raw := "From: jane@bigcorp.com\r\n" +
		"Message-ID: <abc@bigcorp.com>\r\n" +
		"Subject: Hi\r\n" +
		"\r\n" +
		"body\r\n"

	m := Parse([]byte(raw), discardLogger())

	for _, key := range []string{"Message-ID", "message-id", "MESSAGE-ID"} {
		if got := m.Header(key); got != "<abc@bigcorp.com>" {
			t.Errorf("Header(%q) = %q", key, got)
		}
	}
	if m.Header("X-Not-Present") != "" {
		t.Error("absent header should be empty")
	}
}

func TestParseEncodedSubject(t *testing.T) {
	raw := "From: jane@bigcorp.com\r\n" +
		"Subject: =?utf-8?q?Hello_W=C3=B6rld?=\r\n" +
		"\r\n" +
		"body\r\n"

	m := Parse([]byte(raw), discardLogger())
	if m.Subject() != "Hello Wörld" {
		t.Errorf("Subject = %q, want decoded", m.Subject())
	}
}

func TestParseMultipartKeepsOnlyPlainText(t *testing.T) {
	raw := "From: jane@bigcorp.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain part\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html part</p>\r\n" +
		"--BOUNDARY--\r\n"

	m := Parse([]byte(raw), discardLogger())

	if !strings.Contains(m.Body(), "plain part") {
		t.Errorf("Body = %q, missing text/plain part", m.Body())
	}
	if strings.Contains(m.Body(), "html part") {
		t.Errorf("Body = %q, html part should be skipped", m.Body())
	}
}

func TestParseQuotedPrintableBody(t *testing.T) {
	raw := "From: jane@bigcorp.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=C3=A9 tomorrow?\r\n"

	m := Parse([]byte(raw), discardLogger())
	if !strings.Contains(m.Body(), "Café tomorrow?") {
		t.Errorf("Body = %q, want decoded quoted-printable", m.Body())
	}
}

func TestParseSloppyFromHeader(t *testing.T) {
	raw := "From: JANE@BIGCORP.COM,\r\n" +
		"Subject: Hi\r\n" +
		"\r\n" +
		"body\r\n"

	m := Parse([]byte(raw), discardLogger())
	_, addr := m.Sender()
	if !strings.Contains(addr, "jane@bigcorp.com") {
		t.Errorf("Sender address = %q, want bare-address fallback", addr)
	}
}

func TestParseMissingFrom(t *testing.T) {
	raw := "Subject: Hi\r\n\r\nbody\r\n"

	m := Parse([]byte(raw), discardLogger())
	name, addr := m.Sender()
	if name != "" || addr != "" {
		t.Errorf("Sender = %q, %q, want empty", name, addr)
	}
	if m.SenderDomain() != "" {
		t.Errorf("SenderDomain = %q, want empty", m.SenderDomain())
	}
}

func TestParseGarbageYieldsEmptyMessage(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("\x00\x01\x02")} {
		m := Parse(raw, discardLogger())
		if m == nil {
			t.Fatal("Parse must never return nil")
		}
		if m.Subject() != "" {
			t.Errorf("Subject = %q, want empty", m.Subject())
		}
		if _, addr := m.Sender(); addr != "" {
			t.Errorf("Sender = %q, want empty", addr)
		}
	}
}
