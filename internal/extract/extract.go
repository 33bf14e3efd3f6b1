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

// Package extract pulls validated contact fields out of message headers
// and body text. Every extractor follows the same shape: prefer the
// structured signal from the sender, fall back to prioritized free-text
// patterns, and validate whatever matched. The first pattern to produce a
// valid value wins; an empty string means the field is absent.
package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/talentsift/extractor/internal/classify"
	"github.com/talentsift/extractor/internal/mail"
	"github.com/talentsift/extractor/internal/models"
	"github.com/talentsift/extractor/internal/rules"
)

// Extractor derives contact fields from messages using the rule set's
// signature patterns. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	set    *rules.Set
	region string
	log    *slog.Logger
}

// New creates an extractor. region is the ISO country code used as the
// default when normalising phone numbers.
func New(set *rules.Set, region string, log *slog.Logger) *Extractor {
	if region == "" {
		region = "US"
	}
	return &Extractor{set: set, region: region, log: log}
}

// Assemble runs every field extractor over the message and composes one
// contact record. The record is returned even when every field is empty;
// the email-presence requirement is enforced at persistence, not here.
func (e *Extractor) Assemble(msg *mail.Message, source string) models.Contact {
	body := msg.Body()
	return models.Contact{
		Name:        e.Name(msg),
		Email:       strings.ToLower(strings.TrimSpace(e.Email(msg))),
		Phone:       e.Phone(body),
		Company:     e.Company(msg),
		Website:     e.Website(msg),
		LinkedInID:  e.LinkedIn(body),
		Source:      source,
		ExtractedAt: time.Now().UTC(),
	}
}

var (
	emailStrictRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	emailTokenRe  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// Salutation-anchored signature names: "Best, Jane Doe" on one line
	// or the name on the following line. The salutation alternatives are
	// spelled with explicit case so the captured name stays required to
	// be capitalized.
	salutationRe = regexp.MustCompile(`(?m)^[ \t]*(?:[Bb]est[ ][Rr]egards|[Kk]ind[ ][Rr]egards|[Ww]arm[ ][Rr]egards|[Bb]est[ ][Ww]ishes|[Rr]egards|[Bb]est|[Tt]hanks|[Tt]hank[ ][Yy]ou|[Ss]incerely|[Cc]heers)[,!.]?\s+([A-Z][a-z]+(?:[ ][A-Z][a-z]+)+)[ \t]*$`)
	// A standalone line of exactly two capitalized words.
	nameLineRe = regexp.MustCompile(`(?m)^[ \t]*([A-Z][a-z]+[ ][A-Z][a-z]+)[ \t]*$`)
)

// systemWords are display names that never identify a person.
var systemWords = map[string]bool{
	"team":          true,
	"support":       true,
	"careers":       true,
	"jobs":          true,
	"hr":            true,
	"recruiting":    true,
	"recruitment":   true,
	"talent":        true,
	"hiring":        true,
	"noreply":       true,
	"notifications": true,
	"admin":         true,
	"info":          true,
}

// Name extracts the contact's personal name. The sender display name is
// preferred; when it fails validation the body is searched for a
// salutation-anchored name or a standalone two-word capitalized line,
// subject to the same rejection rules.
func (e *Extractor) Name(msg *mail.Message) string {
	displayName, _ := msg.Sender()
	if name := cleanName(displayName); e.validName(name) {
		return name
	}

	body := msg.Body()
	if m := salutationRe.FindStringSubmatch(body); m != nil {
		if name := cleanName(m[1]); e.validName(name) {
			return name
		}
	}
	if m := nameLineRe.FindStringSubmatch(body); m != nil {
		if name := cleanName(m[1]); e.validName(name) {
			return name
		}
	}
	return ""
}

// Email extracts a validated email address, preferring the sender address
// over body matches. Generic system addresses are never accepted.
func (e *Extractor) Email(msg *mail.Message) string {
	_, senderAddr := msg.Sender()
	if e.validEmail(senderAddr) {
		return strings.ToLower(senderAddr)
	}

	for _, token := range emailTokenRe.FindAllString(msg.Body(), -1) {
		if e.validEmail(token) {
			return strings.ToLower(token)
		}
	}
	return ""
}

func (e *Extractor) validEmail(addr string) bool {
	if addr == "" || !emailStrictRe.MatchString(addr) {
		return false
	}
	return !classify.IsGenericSender(addr)
}

// cleanName normalises whitespace and strips surrounding quotes.
func cleanName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	return strings.Join(strings.Fields(name), " ")
}

// validName applies the name rejection rules: email-shaped, single-word,
// all-uppercase, all-lowercase, digit-bearing and generic/system names
// are all rejected.
func (e *Extractor) validName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "@") || emailTokenRe.MatchString(name) {
		return false
	}
	if strings.ContainsFunc(name, unicode.IsDigit) {
		return false
	}

	words := strings.Fields(name)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		lw := strings.ToLower(w)
		if systemWords[lw] || e.set.IsGenericCompany(lw) {
			return false
		}
	}

	hasUpper := strings.ContainsFunc(name, unicode.IsUpper)
	hasLower := strings.ContainsFunc(name, unicode.IsLower)
	return hasUpper && hasLower
}
