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

package extract

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/talentsift/extractor/internal/mail"
	"github.com/talentsift/extractor/internal/rules"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	set := rules.Compile(rules.Raw{
		SignaturePatterns: map[string][]string{
			rules.FieldPhone: {
				`\+?\d{1,3}[-.\s]?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`,
				`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}`,
			},
			rules.FieldLinkedIn: {
				`(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9\-_%]+`,
				`(?:https?://)?linkedin\.com/pub/[A-Za-z0-9\-]+`,
			},
		},
		GenericCompanyWords: []string{"gmail", "mail", "team"},
	}, discardLogger())
	return New(set, "US", discardLogger())
}

func testMessage(t *testing.T, from, subject, body string) *mail.Message {
	t.Helper()
	raw := fmt.Sprintf(
		"From: %s\r\nTo: me@inbox.example\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		from, subject, body,
	)
	return mail.Parse([]byte(raw), discardLogger())
}

func TestNameFromDisplayName(t *testing.T) {
	e := testExtractor(t)
	msg := testMessage(t, `"Jane Doe" <jane@bigcorp.com>`, "Hello", "no signature here")
	if got := e.Name(msg); got != "Jane Doe" {
		t.Errorf("Name = %q, want %q", got, "Jane Doe")
	}
}

func TestNameFallsBackToSalutation(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		from string
		body string
		want string
	}{
		{"all caps display rejected", `"JANE DOE" <jane@bigcorp.com>`, "Hi,\r\n\r\nThanks,\r\nJane Doe\r\n", "Jane Doe"},
		{"single word rejected", "jane <jane@bigcorp.com>", "Best regards,\r\nJane Doe\r\n", "Jane Doe"},
		{"salutation on same line", "jane@bigcorp.com", "ttyl\r\n\r\nRegards, Jane Doe\r\n", "Jane Doe"},
		{"standalone name line", "jane@bigcorp.com", "Let's chat.\r\n\r\nJane Doe\r\n555-0100\r\n", "Jane Doe"},
		{"no name anywhere", "jane@bigcorp.com", "nothing useful in lowercase\r\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage(t, tt.from, "Hello", tt.body)
			if got := e.Name(msg); got != tt.want {
				t.Errorf("Name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNameRejections(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		in   string
	}{
		{"email shaped", "jane@bigcorp.com"},
		{"contains digits", "Jane Doe2"},
		{"single word", "Jane"},
		{"all uppercase", "JANE DOE"},
		{"all lowercase", "jane doe"},
		{"system words", "Recruiting Team"},
		{"generic word", "Gmail User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if e.validName(tt.in) {
				t.Errorf("validName(%q) = true, want false", tt.in)
			}
		})
	}
	if !e.validName("Jane Doe") {
		t.Error(`validName("Jane Doe") = false, want true`)
	}
}

func TestEmailPrefersSender(t *testing.T) {
	e := testExtractor(t)
	msg := testMessage(t, "Jane <Jane.Doe@BigCorp.com>", "Hello", "also reach me at other@elsewhere.com")
	if got := e.Email(msg); got != "jane.doe@bigcorp.com" {
		t.Errorf("Email = %q, want sender address lower-cased", got)
	}
}

func TestEmailFallsBackToBody(t *testing.T) {
	e := testExtractor(t)

	msg := testMessage(t, "info@bigcorp.com", "Hello", "Write to Jane.Doe@bigcorp.com for details.")
	if got := e.Email(msg); got != "jane.doe@bigcorp.com" {
		t.Errorf("Email = %q, want body address", got)
	}

	// Generic addresses are rejected in the body too
	msg = testMessage(t, "noreply@bigcorp.com", "Hello", "Contact jobs@bigcorp.com")
	if got := e.Email(msg); got != "" {
		t.Errorf("Email = %q, want empty when only generic addresses exist", got)
	}
}

func TestPhone(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"valid US normalised", "Call me at (415) 555-0123 anytime", "+14155550123"},
		{"invalid kept as found", "Call me at 123-456-7890", "123-456-7890"},
		{"repeated digit rejected", "Call me at 111-111-1111", ""},
		{"too few digits", "ext. 555-0123", ""},
		{"no phone", "no numbers here", ""},
		{"repeated digit then valid", "Try 111-111-1111 or (415) 555-0123", "+14155550123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Phone(tt.body); got != tt.want {
				t.Errorf("Phone = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompanyFromDomain(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		from string
		body string
		want string
	}{
		{"two label domain", "jane@bigcorp.com", "", "Bigcorp"},
		{"country suffix", "jane@bigcorp.co.uk", "", "Bigcorp"},
		{"subdomain with country suffix", "jane@mail.bigcorp.co.uk", "", "Bigcorp"},
		{"domain beats body", "jane@bigcorp.com", "Company: Northwind Traders", "Bigcorp"},
		{"generic domain falls back", "jane@gmail.com", "Company: Northwind Traders\r\n", "Northwind Traders"},
		{"at pattern", "jane@gmail.com", "I work at Acme Corp. Let's talk.\r\n", "Acme Corp"},
		{"nothing usable", "jane@gmail.com", "no employer mentioned here\r\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage(t, tt.from, "Hello", tt.body)
			if got := e.Company(msg); got != tt.want {
				t.Errorf("Company = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebsite(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		from string
		body string
		want string
	}{
		{"sender domain", "jane@bigcorp.com", "", "https://bigcorp.com"},
		{"freemail scans body", "jane@gmail.com", "See https://acme.example/careers. Thanks!", "https://acme.example/careers"},
		{"social links skipped", "jane@gmail.com", "https://www.linkedin.com/in/jane then https://acme.example/", "https://acme.example/"},
		{"freemail with no urls", "jane@gmail.com", "nothing linked", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage(t, tt.from, "Hello", tt.body)
			if got := e.Website(msg); got != tt.want {
				t.Errorf("Website = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinkedIn(t *testing.T) {
	e := testExtractor(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare profile link", "find me at linkedin.com/in/janedoe", "janedoe"},
		{"full url with trailing slash", "https://www.linkedin.com/in/jane-doe-123/", "jane-doe-123"},
		{"signature pattern fallback", "old profile: linkedin.com/pub/jane-doe", "jane-doe"},
		{"no profile", "not on social media", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.LinkedIn(tt.body); got != tt.want {
				t.Errorf("LinkedIn = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssemble(t *testing.T) {
	e := testExtractor(t)
	body := "Hi,\r\n\r\nGreat role for you.\r\n\r\nRegards, Jane Doe\r\n(415) 555-0123\r\nlinkedin.com/in/janedoe\r\n"
	msg := testMessage(t, "Jane Doe <Recruiter.Jane@BigCorp.com>", "Opportunity", body)

	contact := e.Assemble(msg, "work-inbox")

	if contact.Name != "Jane Doe" {
		t.Errorf("Name = %q", contact.Name)
	}
	if contact.Email != "recruiter.jane@bigcorp.com" {
		t.Errorf("Email = %q, want lower-cased sender", contact.Email)
	}
	if contact.Phone != "+14155550123" {
		t.Errorf("Phone = %q", contact.Phone)
	}
	if contact.Company != "Bigcorp" {
		t.Errorf("Company = %q", contact.Company)
	}
	if contact.Website != "https://bigcorp.com" {
		t.Errorf("Website = %q", contact.Website)
	}
	if contact.LinkedInID != "janedoe" {
		t.Errorf("LinkedInID = %q", contact.LinkedInID)
	}
	if contact.Source != "work-inbox" {
		t.Errorf("Source = %q", contact.Source)
	}
	if contact.ExtractedAt.IsZero() {
		t.Error("ExtractedAt not set")
	}
}
