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

// Package rules loads and compiles the classification rule set from
// rules.yaml. The compiled set is immutable and safe for concurrent use
// by any number of account workers.
package rules

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy selects how sender domains are validated.
type Strategy string

const (
	StrategyWhitelist Strategy = "whitelist"
	StrategyBlacklist Strategy = "blacklist"
	StrategyHybrid    Strategy = "hybrid"
)

// Signature pattern keys recognised in rules.yaml.
const (
	FieldPhone    = "phone"
	FieldLinkedIn = "linkedin"
	FieldTitle    = "title"
)

// Raw mirrors the YAML structure of rules.yaml. Absent keys stay empty
// collections, never nil dereferences.
type Raw struct {
	RecruiterKeywords   []string            `yaml:"recruiter_keywords"`
	DomainStrategy      string              `yaml:"domain_strategy"`
	AlwaysWhitelist     []string            `yaml:"always_whitelist"`
	AlwaysBlacklist     []string            `yaml:"always_blacklist"`
	WhitelistDomains    []string            `yaml:"whitelist_domains"`
	BlacklistPatterns   []string            `yaml:"blacklist_patterns"`
	SignaturePatterns   map[string][]string `yaml:"signature_patterns"`
	GenericCompanyWords []string            `yaml:"generic_company_words"`
}

// Set is the compiled, read-only rule set. Domain/address patterns are
// anchored so they must consume the whole candidate string; signature
// patterns are case-insensitive free-text searches.
type Set struct {
	Keywords            []string
	Strategy            Strategy
	AlwaysWhitelist     []*regexp.Regexp
	AlwaysBlacklist     []*regexp.Regexp
	WhitelistDomains    []*regexp.Regexp
	BlacklistPatterns   []*regexp.Regexp
	GenericCompanyWords map[string]bool

	signatures map[string][]*regexp.Regexp
}

// Empty returns a rule set with every collection empty. With an empty set
// the domain validator denies everything and the classifier can never
// reach a positive score.
func Empty() *Set {
	return &Set{
		Strategy:            StrategyHybrid,
		GenericCompanyWords: map[string]bool{},
		signatures:          map[string][]*regexp.Regexp{},
	}
}

// Load reads and compiles rules.yaml. A read or parse failure is logged
// and degrades to the empty set rather than failing the run.
func Load(path string, log *slog.Logger) *Set {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read rules file, using empty rule set", "path", path, "error", err)
		return Empty()
	}

	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Error("failed to parse rules file, using empty rule set", "path", path, "error", err)
		return Empty()
	}

	return Compile(raw, log)
}

// Compile builds the immutable set from raw rule collections. Malformed
// patterns are logged and skipped; they never abort compilation.
func Compile(raw Raw, log *slog.Logger) *Set {
	s := Empty()

	for _, kw := range raw.RecruiterKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			s.Keywords = append(s.Keywords, kw)
		}
	}

	switch Strategy(raw.DomainStrategy) {
	case StrategyWhitelist, StrategyBlacklist:
		s.Strategy = Strategy(raw.DomainStrategy)
	default:
		s.Strategy = StrategyHybrid
	}

	s.AlwaysWhitelist = CompileAnchored(raw.AlwaysWhitelist, log)
	s.AlwaysBlacklist = CompileAnchored(raw.AlwaysBlacklist, log)
	s.WhitelistDomains = CompileAnchored(raw.WhitelistDomains, log)
	s.BlacklistPatterns = CompileAnchored(raw.BlacklistPatterns, log)

	for field, patterns := range raw.SignaturePatterns {
		s.signatures[field] = compileSearch(patterns, log)
	}

	for _, w := range raw.GenericCompanyWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s.GenericCompanyWords[w] = true
		}
	}

	return s
}

// Signatures returns the compiled signature patterns for a field, in
// priority order. A missing field yields an empty list.
func (s *Set) Signatures(field string) []*regexp.Regexp {
	return s.signatures[field]
}

// IsGenericCompany reports whether the word is in the generic-company list.
func (s *Set) IsGenericCompany(word string) bool {
	return s.GenericCompanyWords[strings.ToLower(word)]
}

// CompileAnchored compiles patterns for full-string matching, wrapping
// each in ^(?:...)$ so a match must consume the entire candidate.
// Malformed patterns are skipped.
func CompileAnchored(patterns []string, log *slog.Logger) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(fmt.Sprintf("^(?:%s)$", p))
		if err != nil {
			log.Warn("skipping malformed rule pattern", "pattern", p, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// compileSearch compiles free-text signature patterns. Matching is
// case-insensitive unless the pattern sets its own flags.
func compileSearch(patterns []string, log *slog.Logger) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr := p
		if !strings.HasPrefix(expr, "(?") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warn("skipping malformed signature pattern", "pattern", p, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// MatchAny reports whether any compiled pattern matches s.
func MatchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
