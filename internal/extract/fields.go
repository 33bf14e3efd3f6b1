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
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/talentsift/extractor/internal/mail"
	"github.com/talentsift/extractor/internal/rules"
)

// freeMailProviders are sender domains that never identify the sender's
// employer, so no website is derived from them.
var freeMailProviders = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"icloud.com":  true,
}

// socialHosts are excluded from website extraction; profile links are
// handled by the social-profile extractor instead.
var socialHosts = []string{
	"linkedin.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
}

var (
	urlRe = regexp.MustCompile(`https?://[^\s<>"']+`)

	// companyBodyPatterns are tried in priority order against the body
	// when the sender domain yields no usable company name.
	companyBodyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`Company:[ \t]*([A-Z][A-Za-z0-9&' ]+)`),
		regexp.MustCompile(`\bat[ ]+([A-Z][A-Za-z&' ]+)`),
		regexp.MustCompile(`([A-Z][A-Za-z&' ]+?)[ ]*,?[ ]*Inc\b`),
		regexp.MustCompile(`([A-Z][A-Za-z&' ]+?)[ ]*,?[ ]*LLC\b`),
		regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Za-z&]+(?:[ ][A-Z][A-Za-z&]+){0,3})[ \t]*$`),
	}

	// linkedinRe extracts the identifier segment of a profile URL; the
	// scheme is optional because signatures often omit it.
	linkedinRe = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z0-9\-]+\.)?linkedin\.com/in/([A-Za-z0-9\-_%]+)`)
)

// Phone scans the body with the rule set's phone signature patterns in
// priority order. A candidate must have 10–15 digits and not be a single
// repeated digit. Candidates that parse as valid numbers are normalised
// to E.164; otherwise the candidate is returned as found.
func (e *Extractor) Phone(body string) string {
	for _, re := range e.set.Signatures(rules.FieldPhone) {
		for _, candidate := range re.FindAllString(body, -1) {
			digits := digitsOf(candidate)
			if len(digits) < 10 || len(digits) > 15 {
				continue
			}
			if allSameDigit(digits) {
				continue
			}
			if num, err := phonenumbers.Parse(candidate, e.region); err == nil && phonenumbers.IsValidNumber(num) {
				return phonenumbers.Format(num, phonenumbers.E164)
			}
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

// Company derives the employer name, preferring the sender domain over
// body signature patterns.
func (e *Extractor) Company(msg *mail.Message) string {
	if domain := msg.SenderDomain(); domain != "" {
		if company := e.companyFromDomain(domain); company != "" {
			return company
		}
	}

	body := msg.Body()
	for _, re := range companyBodyPatterns {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		company := strings.TrimSpace(m[1])
		if e.validCompany(company) {
			return company
		}
	}
	return ""
}

// companyFromDomain strips the TLD (and a country suffix when the domain
// has three or more labels) and title-cases the remaining label.
func (e *Extractor) companyFromDomain(domain string) string {
	labels := strings.Split(domain, ".")
	label := labels[0]
	if len(labels) >= 3 {
		label = labels[len(labels)-3]
	}

	company := cases.Title(language.English).String(label)
	if !e.validCompany(company) {
		return ""
	}
	return company
}

// validCompany rejects generic words, too-short names and purely numeric
// strings.
func (e *Extractor) validCompany(name string) bool {
	if len(name) < 2 {
		return false
	}
	if e.set.IsGenericCompany(name) {
		return false
	}
	for _, w := range strings.Fields(name) {
		if e.set.IsGenericCompany(w) {
			return false
		}
	}

	numeric := true
	for _, r := range name {
		if !unicode.IsDigit(r) && r != ' ' {
			numeric = false
			break
		}
	}
	return !numeric
}

// Website prefers https://<sender-domain> unless the sender uses a free
// mail provider, in which case the body is scanned for the first
// non-social URL with a scheme and host.
func (e *Extractor) Website(msg *mail.Message) string {
	if domain := msg.SenderDomain(); domain != "" && !freeMailProviders[domain] {
		return "https://" + domain
	}

	for _, raw := range urlRe.FindAllString(msg.Body(), -1) {
		raw = strings.TrimRight(raw, ".,;)>]")
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if isSocialHost(u.Hostname()) {
			continue
		}
		return raw
	}
	return ""
}

// LinkedIn returns the profile identifier segment found in the body,
// "janedoe" from ".../in/janedoe", never the full URL. The built-in
// profile pattern is preferred; rule-set linkedin signatures are the
// fallback.
func (e *Extractor) LinkedIn(body string) string {
	if m := linkedinRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}

	for _, re := range e.set.Signatures(rules.FieldLinkedIn) {
		if match := re.FindString(body); match != "" {
			if id := profileID(match); id != "" {
				return id
			}
		}
	}
	return ""
}

// profileID extracts the identifier segment from a matched profile URL:
// the segment after "/in/" when present, else the last path segment.
func profileID(match string) string {
	match = strings.TrimRight(match, "/.,;)")

	lower := strings.ToLower(match)
	if idx := strings.LastIndex(lower, "/in/"); idx >= 0 {
		match = match[idx+len("/in/"):]
	} else if idx := strings.LastIndex(match, "/"); idx >= 0 {
		match = match[idx+1:]
	}

	if i := strings.IndexAny(match, "/?#"); i >= 0 {
		match = match[:i]
	}
	return match
}

func isSocialHost(host string) bool {
	host = strings.ToLower(host)
	for _, social := range socialHosts {
		if host == social || strings.HasSuffix(host, "."+social) {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return len(digits) > 0
}
