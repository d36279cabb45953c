package refdata

import (
	"fmt"
	"regexp"
	"sort"
)

// ClassificationRule maps a cost-line label pattern to a partner. Rules are
// evaluated in ascending priority order; the first match wins.
type ClassificationRule struct {
	Priority  int
	CompanyID string
	Pattern   string
}

// CompiledRule is a classification rule with its pattern compiled.
type CompiledRule struct {
	Priority  int
	CompanyID string
	Pattern   *regexp.Regexp
}

// CompileRules compiles and orders the rule set. A malformed pattern is a
// configuration error surfaced here, at load time, not per cost line.
func CompileRules(rules []ClassificationRule) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if rule.CompanyID == "" {
			return nil, fmt.Errorf("refdata: classification rule %q has no company id", rule.Pattern)
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("refdata: classification rule for %s: %w", rule.CompanyID, err)
		}
		compiled = append(compiled, CompiledRule{
			Priority:  rule.Priority,
			CompanyID: rule.CompanyID,
			Pattern:   re,
		})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return compiled, nil
}
