// Package settle implements the settlement computation and validation engine:
// cost classification, apportionment, aggregation and cross-validation. Every
// stage is a pure function of immutable inputs; results are recomputed in full
// on each run.
package settle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of the settlement currency minor unit.
const Scale = 2

// UnattributedCourse is the synthetic course id carrying partner-level direct
// cost that names no specific course.
const UnattributedCourse = "__unattributed__"

// Tolerance is the cross-validation tolerance: two minor units.
var Tolerance = decimal.New(2, -Scale)

// Course is one revenue line for the settlement period, immutable once built.
type Course struct {
	ID        string                     `json:"course_id"`
	Name      string                     `json:"course_name"`
	Revenue   decimal.Decimal            `json:"revenue"`
	Ownership map[string]decimal.Decimal `json:"ownership"`
	Excluded  bool                       `json:"excluded"`
}

// CostLine is one raw advertising cost row. Classification is derived by the
// classifier; the raw line only carries a target hint and a free-text label.
type CostLine struct {
	ID       string          `json:"cost_id"`
	Label    string          `json:"label"`
	Channel  string          `json:"channel"`
	Target   string          `json:"target,omitempty"`
	CourseID string          `json:"course_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Month    string          `json:"month"`
}

// Classification kinds.
const (
	KindDirect   = "direct"
	KindIndirect = "indirect"
)

// Classification tags a cost line as direct to one partner or indirect
// marketplace-wide spend.
type Classification struct {
	Kind      string `json:"kind"`
	CompanyID string `json:"company_id,omitempty"`
}

// Direct builds a direct classification for a partner.
func Direct(companyID string) Classification {
	return Classification{Kind: KindDirect, CompanyID: companyID}
}

// Indirect is the shared marketplace-wide classification.
func Indirect() Classification {
	return Classification{Kind: KindIndirect}
}

// LedgerEntry is the atomic per-course, per-partner attribution record from
// which all aggregates derive.
type LedgerEntry struct {
	CourseID     string          `json:"course_id"`
	CompanyID    string          `json:"company_id"`
	Revenue      decimal.Decimal `json:"revenue"`
	DirectCost   decimal.Decimal `json:"direct_cost"`
	IndirectCost decimal.Decimal `json:"indirect_cost"`
	Cost         decimal.Decimal `json:"cost"`
	Margin       decimal.Decimal `json:"margin"`
}

// PartnerSettlement is the per-partner roll-up for the period.
type PartnerSettlement struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Period      string `json:"period"`

	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Margin  decimal.Decimal `json:"margin"`

	RevenueShareRatio decimal.Decimal `json:"revenue_share_ratio"`
	UnionPayoutRatio  decimal.Decimal `json:"union_payout_ratio"`

	// Amount is the rounded payout. Zero for the operator, whose margin is
	// retained internally but still reported.
	Amount decimal.Decimal `json:"settlement_amount"`
}

// ValidationIssue records one failed cross-check. Issues annotate a
// settlement; they never abort it.
type ValidationIssue struct {
	CompanyID string          `json:"company_id"`
	Check     string          `json:"check"`
	CourseID  string          `json:"course_id,omitempty"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
	Delta     decimal.Decimal `json:"delta"`
	Message   string          `json:"message"`
}

// Input is the normalized ingestion output for one period. The engine does not
// care how it was produced.
type Input struct {
	Period    string     `json:"period"`
	Courses   []Course   `json:"courses"`
	CostLines []CostLine `json:"cost_lines"`
}

// Result is one complete settlement run.
type Result struct {
	RunID       string              `json:"run_id"`
	Period      string              `json:"period"`
	RefRevision int64               `json:"ref_revision"`
	Status      string              `json:"status"`
	Settlements []PartnerSettlement `json:"settlements"`
	Ledger      []LedgerEntry       `json:"ledger"`
	Issues      []ValidationIssue   `json:"issues"`
	ComputedAt  time.Time           `json:"computed_at"`
}

// TotalPayout sums the rounded settlement amounts of the run.
func (r Result) TotalPayout() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Settlements {
		total = total.Add(s.Amount)
	}
	return total
}
