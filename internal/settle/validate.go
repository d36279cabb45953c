package settle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/refdata"
)

// Cross-validation check names. Each failing check yields one issue whose
// message is reproducible from the two values and the check name alone.
const (
	CheckRevenueTotal  = "revenue total"
	CheckCostTotal     = "cost total"
	CheckMarginTotal   = "margin total"
	CheckMarginFormula = "contribution margin formula"
	CheckAmount        = "settlement amount"
	CheckCourseMargin  = "course margin formula"
)

// Validate re-derives the aggregate figures for one partner from its ledger
// entries and flags every mismatch beyond tolerance. All checks run; none
// short-circuits, and issues never block the settlement.
func Validate(s PartnerSettlement, entries []LedgerEntry, window refdata.RatioWindow) []ValidationIssue {
	issues := make([]ValidationIssue, 0)

	sumRevenue := decimal.Zero
	sumCost := decimal.Zero
	sumMargin := decimal.Zero
	for _, entry := range entries {
		if entry.CompanyID != s.CompanyID {
			continue
		}
		sumRevenue = sumRevenue.Add(entry.Revenue)
		sumCost = sumCost.Add(entry.Cost)
		sumMargin = sumMargin.Add(entry.Margin)

		courseMargin := entry.Revenue.Sub(entry.Cost)
		if issue, bad := check(s.CompanyID, CheckCourseMargin, courseMargin, entry.Margin); bad {
			issue.CourseID = entry.CourseID
			issue.Message = fmt.Sprintf("course %s: %s", entry.CourseID, issue.Message)
			issues = append(issues, issue)
		}
	}

	if issue, bad := check(s.CompanyID, CheckRevenueTotal, sumRevenue, s.Revenue); bad {
		issues = append(issues, issue)
	}
	if issue, bad := check(s.CompanyID, CheckCostTotal, sumCost, s.Cost); bad {
		issues = append(issues, issue)
	}
	if issue, bad := check(s.CompanyID, CheckMarginTotal, sumMargin, s.Margin); bad {
		issues = append(issues, issue)
	}
	// Catches cost components reported on the settlement but absent from the
	// ledger, e.g. a separately tracked production cost.
	if issue, bad := check(s.CompanyID, CheckMarginFormula, s.Revenue.Sub(s.Cost), s.Margin); bad {
		issues = append(issues, issue)
	}
	if issue, bad := check(s.CompanyID, CheckAmount, settlementAmount(s.Margin, window), s.Amount); bad {
		issues = append(issues, issue)
	}
	return issues
}

// check compares actual against expected within Tolerance. The signed delta
// is actual minus expected.
func check(companyID, name string, expected, actual decimal.Decimal) (ValidationIssue, bool) {
	delta := actual.Sub(expected)
	if delta.Abs().LessThanOrEqual(Tolerance) {
		return ValidationIssue{}, false
	}
	return ValidationIssue{
		CompanyID: companyID,
		Check:     name,
		Expected:  expected,
		Actual:    actual,
		Delta:     delta,
		Message:   fmt.Sprintf("%s: expected %s, got %s (delta %s)", name, expected, actual, delta),
	}, true
}
