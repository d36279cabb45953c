package settle

import (
	"strings"

	"github.com/sharex-union/sharex/internal/refdata"
)

// Classifier tags cost lines as direct or indirect. It is a pure function of
// the rule set and the known partner ids; rules were compiled (and malformed
// patterns rejected) at reference data load time.
type Classifier struct {
	partners map[string]struct{}
	targets  map[string]string // upper-cased target alias -> company id
	rules    []refdata.CompiledRule
}

// NewClassifier builds a classifier over the snapshot's companies and rules.
func NewClassifier(snap *refdata.Snapshot) *Classifier {
	partners := make(map[string]struct{}, len(snap.Companies))
	targets := make(map[string]string, len(snap.Companies)*2)
	for id, company := range snap.Companies {
		partners[id] = struct{}{}
		targets[strings.ToUpper(id)] = id
		if name := strings.ToUpper(strings.TrimSpace(company.Name)); name != "" {
			targets[name] = id
		}
	}
	return &Classifier{partners: partners, targets: targets, rules: snap.Rules}
}

// Classify resolves a cost line. Precedence: explicit target field first, then
// ordered pattern rules over the label, else indirect. A line no rule matches
// is ordinary shared spend, not an error.
func (c *Classifier) Classify(line CostLine) Classification {
	if target := strings.ToUpper(strings.TrimSpace(line.Target)); target != "" {
		if id, ok := c.targets[target]; ok {
			return Direct(id)
		}
	}
	for _, rule := range c.rules {
		if _, known := c.partners[rule.CompanyID]; !known {
			continue
		}
		if rule.Pattern.MatchString(line.Label) {
			return Direct(rule.CompanyID)
		}
	}
	return Indirect()
}
