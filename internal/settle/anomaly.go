package settle

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckPeriodDelta names the period-over-period anomaly flag.
const CheckPeriodDelta = "period over period amount"

// DefaultAnomalyThreshold is the relative payout change beyond which a
// period-over-period comparison is flagged.
var DefaultAnomalyThreshold = decimal.RequireFromString("0.5")

// CompareRuns flags partners whose payout moved by more than threshold
// relative to the previous period's run. Like cross-validation, the output is
// advisory data for the reviewer, never control flow.
func CompareRuns(prev, curr Result, threshold decimal.Decimal) []ValidationIssue {
	if threshold.Sign() <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	prevAmounts := make(map[string]decimal.Decimal, len(prev.Settlements))
	for _, s := range prev.Settlements {
		prevAmounts[s.CompanyID] = s.Amount
	}

	issues := make([]ValidationIssue, 0)
	for _, s := range curr.Settlements {
		before, ok := prevAmounts[s.CompanyID]
		if !ok || before.IsZero() {
			// A new partner, or one settling up from zero, is not comparable.
			continue
		}
		delta := s.Amount.Sub(before)
		ratio := delta.Abs().Div(before.Abs())
		if ratio.LessThanOrEqual(threshold) {
			continue
		}
		issues = append(issues, ValidationIssue{
			CompanyID: s.CompanyID,
			Check:     CheckPeriodDelta,
			Expected:  before,
			Actual:    s.Amount,
			Delta:     delta,
			Message: fmt.Sprintf("%s: %s moved from %s to %s (delta %s, threshold %s)",
				CheckPeriodDelta, s.CompanyID, before, s.Amount, delta, threshold),
		})
	}
	return issues
}
