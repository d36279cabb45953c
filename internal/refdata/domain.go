// Package refdata holds the partner, ownership and classification reference
// data a settlement computation reads. It is read-only for the duration of a
// run; the engine works from an immutable Snapshot.
package refdata

import (
	"github.com/shopspring/decimal"
)

// Company types. The operator retains contribution margin internally, so its
// payout ratio is zero while margin is still reported.
const (
	CompanyTypeOperator = "operator"
	CompanyTypeUnion    = "union"
)

// Company is a settlement partner.
type Company struct {
	ID           string
	Name         string
	Type         string
	Bank         string
	Account      string
	ContactName  string
	ContactEmail string

	// Ratios holds the effective-dated payout configuration. Windows never
	// overlap; overlap is rejected when the schedule is constructed.
	Ratios RatioSchedule
}

// IsOperator reports whether the company is the operating entity.
func (c Company) IsOperator() bool {
	return c.Type == CompanyTypeOperator
}

// Ownership maps course id to per-partner ownership fractions for a period.
type Ownership map[string]map[string]decimal.Decimal

// ExchangeRate converts one unit of Currency into the settlement currency for
// cost lines dated in Month.
type ExchangeRate struct {
	Month    string // "2006-01"
	Currency string
	Rate     decimal.Decimal
}

// RateKey builds the lookup key used by snapshots and the fx converter.
func RateKey(currency, month string) string {
	return currency + "|" + month
}

// Snapshot is one immutable view of reference data pinned to a revision.
// Re-running a computation against the same snapshot yields identical output.
type Snapshot struct {
	Revision  int64
	Currency  string
	Companies map[string]Company
	Ownership Ownership
	Rules     []CompiledRule
	Rates     map[string]decimal.Decimal // RateKey -> rate to settlement currency
}

// Company returns the company for id together with a presence flag.
func (s *Snapshot) Company(id string) (Company, bool) {
	c, ok := s.Companies[id]
	return c, ok
}
