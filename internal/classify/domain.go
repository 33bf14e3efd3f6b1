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

package classify

import (
	"strings"

	"github.com/talentsift/extractor/internal/rules"
)

// ValidateDomain decides whether a sender domain is acceptable under the
// rule set. Evaluation order is fixed: the always-blacklist wins over the
// always-whitelist, which wins over the configured strategy.
func ValidateDomain(domain string, set *rules.Set) bool {
	if domain == "" {
		return false
	}
	domain = strings.ToLower(domain)

	if rules.MatchAny(set.AlwaysBlacklist, domain) {
		return false
	}
	if rules.MatchAny(set.AlwaysWhitelist, domain) {
		return true
	}

	switch set.Strategy {
	case rules.StrategyWhitelist:
		return rules.MatchAny(set.WhitelistDomains, domain)
	case rules.StrategyBlacklist:
		return !rules.MatchAny(set.BlacklistPatterns, domain)
	default:
		// hybrid: whitelisted and not blacklisted
		return rules.MatchAny(set.WhitelistDomains, domain) &&
			!rules.MatchAny(set.BlacklistPatterns, domain)
	}
}
