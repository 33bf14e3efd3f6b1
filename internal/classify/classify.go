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

// Package classify scores messages as recruiter/vendor outreach.
//
// Scoring is additive over independent signals, with hard exclusions
// evaluated first: a generic system sender or a blacklisted sender is
// forced to the excluded sentinel score no matter how many positive
// signals the message carries. The decision additionally requires the
// sender domain to pass the domain validator, so under a whitelist or
// hybrid strategy an unlisted domain never classifies positive.
package classify

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/talentsift/extractor/internal/mail"
	"github.com/talentsift/extractor/internal/models"
	"github.com/talentsift/extractor/internal/rules"
)

// Config holds the classifier's tunable constants.
type Config struct {
	// Threshold is the minimum score for is_recruiter.
	Threshold int
	// ExcludedScore is the sentinel assigned by a hard exclusion.
	ExcludedScore int
}

// DefaultConfig returns the default scoring constants.
func DefaultConfig() Config {
	return Config{
		Threshold:     2,
		ExcludedScore: -100,
	}
}

// genericSenders matches job-board, marketing and system addresses that
// are never personal recruiter outreach, regardless of content.
var genericSenders = []*regexp.Regexp{
	regexp.MustCompile(`^jobs-listings@linkedin\.com$`),
	regexp.MustCompile(`^newsletters-noreply@linkedin\.cc$`),
	regexp.MustCompile(`^noreply@.*$`),
	regexp.MustCompile(`^.*no-reply.*$`),
	regexp.MustCompile(`^do-not-reply@.*$`),
	regexp.MustCompile(`^notifications@.*$`),
	regexp.MustCompile(`^jobs@.*$`),
	regexp.MustCompile(`^info@.*$`),
}

// IsGenericSender reports whether the address belongs to the generic
// job-board/marketing/system sender set. The email extractor applies the
// same test so a noreply address never becomes a contact's email.
func IsGenericSender(address string) bool {
	return rules.MatchAny(genericSenders, strings.ToLower(address))
}

// Classifier scores messages against a rule set.
type Classifier struct {
	set *rules.Set
	cfg Config
	log *slog.Logger
}

// New creates a classifier. Zero Config fields fall back to defaults.
func New(set *rules.Set, cfg Config, log *slog.Logger) *Classifier {
	def := DefaultConfig()
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ExcludedScore == 0 {
		cfg.ExcludedScore = def.ExcludedScore
	}
	return &Classifier{set: set, cfg: cfg, log: log}
}

// Classify scores one message. A positive decision requires both the
// score threshold and the sender domain passing ValidateDomain under
// the rule set's strategy; the score itself is reported either way as
// signal strength. extraBlacklist carries account-level anchored sender
// patterns applied on top of the rule-set blacklist; it may be nil.
func (c *Classifier) Classify(msg *mail.Message, extraBlacklist []*regexp.Regexp) models.Classification {
	senderName, senderAddr := msg.Sender()
	domain := msg.SenderDomain()

	excluded := models.Classification{Score: c.cfg.ExcludedScore, IsRecruiter: false}

	if rules.MatchAny(genericSenders, senderAddr) {
		c.log.Debug("excluding generic sender", "sender", senderAddr)
		return excluded
	}

	// Rule-set blacklist unioned with the account-level blacklist,
	// matched against both the bare domain and the full address.
	if matchesBlacklist(c.set.BlacklistPatterns, domain, senderAddr) ||
		matchesBlacklist(extraBlacklist, domain, senderAddr) {
		c.log.Debug("excluding blacklisted sender", "sender", senderAddr)
		return excluded
	}

	// Base point for surviving exclusion
	score := 1

	subject := strings.ToLower(msg.Subject())
	name := strings.ToLower(senderName)
	for _, kw := range c.set.Keywords {
		if strings.Contains(subject, kw) || strings.Contains(name, kw) {
			score++
			break
		}
	}

	body := msg.Body()
	if rules.MatchAny(c.set.Signatures(rules.FieldTitle), body) {
		score += 2
	}
	if rules.MatchAny(c.set.Signatures(rules.FieldLinkedIn), body) {
		score++
	}

	recruiter := score >= c.cfg.Threshold
	if recruiter && !ValidateDomain(domain, c.set) {
		c.log.Debug("withholding recruiter match, domain not validated", "domain", domain)
		recruiter = false
	}

	return models.Classification{
		Score:       score,
		IsRecruiter: recruiter,
	}
}

func matchesBlacklist(patterns []*regexp.Regexp, domain, address string) bool {
	if domain != "" && rules.MatchAny(patterns, domain) {
		return true
	}
	return address != "" && rules.MatchAny(patterns, address)
}
