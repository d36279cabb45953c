package settle

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/shared"
)

// Aggregate rolls ledger entries up to one settlement per partner and applies
// the partner's ratio chain effective for the period. Rounding happens exactly
// once, at the final multiplication; per-course shares stay unrounded so
// drift cannot compound across many courses.
func Aggregate(entries []LedgerEntry, snap *refdata.Snapshot, period string) ([]PartnerSettlement, error) {
	asOf, err := shared.PeriodStart(period)
	if err != nil {
		return nil, inputErrorf(period, period, "%v", err)
	}

	type totals struct {
		revenue decimal.Decimal
		cost    decimal.Decimal
		margin  decimal.Decimal
	}
	byCompany := make(map[string]*totals)
	for _, entry := range entries {
		t := byCompany[entry.CompanyID]
		if t == nil {
			t = &totals{}
			byCompany[entry.CompanyID] = t
		}
		t.revenue = t.revenue.Add(entry.Revenue)
		t.cost = t.cost.Add(entry.Cost)
		t.margin = t.margin.Add(entry.Margin)
	}

	ids := make([]string, 0, len(byCompany))
	for id := range byCompany {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	settlements := make([]PartnerSettlement, 0, len(ids))
	for _, id := range ids {
		company, ok := snap.Company(id)
		if !ok {
			return nil, configErrorf(period, "company", id, "ledger references unconfigured company")
		}
		window, err := company.Ratios.Resolve(asOf)
		if err != nil {
			return nil, configErrorf(period, "company", id, "%v", err)
		}
		t := byCompany[id]
		settlements = append(settlements, PartnerSettlement{
			CompanyID:         id,
			CompanyName:       company.Name,
			Period:            period,
			Revenue:           t.revenue,
			Cost:              t.cost,
			Margin:            t.margin,
			RevenueShareRatio: window.RevenueShare,
			UnionPayoutRatio:  window.UnionPayout,
			Amount:            settlementAmount(t.margin, window),
		})
	}
	return settlements, nil
}

// settlementAmount applies the ratio chain and rounds half-to-even to the
// settlement currency minor unit.
func settlementAmount(margin decimal.Decimal, window refdata.RatioWindow) decimal.Decimal {
	return margin.Mul(window.RevenueShare).Mul(window.UnionPayout).RoundBank(Scale)
}
