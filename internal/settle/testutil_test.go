package settle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/refdata"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func unionRatios() refdata.RatioSchedule {
	return refdata.MustRatioSchedule(refdata.RatioWindow{
		RevenueShare: d("0.75"),
		UnionPayout:  d("0.50"),
	})
}

func operatorRatios() refdata.RatioSchedule {
	return refdata.MustRatioSchedule(refdata.RatioWindow{
		RevenueShare: d("0.75"),
		UnionPayout:  d("0"),
	})
}

// testSnapshot configures an operator plus two union partners, a keyword rule
// per partner and a USD rate for 2024-10.
func testSnapshot() *refdata.Snapshot {
	rules, err := refdata.CompileRules([]refdata.ClassificationRule{
		{Priority: 10, CompanyID: "bkid", Pattern: `bkid|비케이아이디`},
		{Priority: 20, CompanyID: "heaz", Pattern: `heaz|헤즈`},
	})
	if err != nil {
		panic(err)
	}
	return &refdata.Snapshot{
		Revision: 7,
		Currency: "KRW",
		Companies: map[string]refdata.Company{
			"plusx": {ID: "plusx", Name: "PLUS X", Type: refdata.CompanyTypeOperator, Ratios: operatorRatios()},
			"bkid":  {ID: "bkid", Name: "BKID", Type: refdata.CompanyTypeUnion, Ratios: unionRatios()},
			"heaz":  {ID: "heaz", Name: "HEAZ", Type: refdata.CompanyTypeUnion, Ratios: unionRatios()},
		},
		Ownership: refdata.Ownership{},
		Rules:     rules,
		Rates: map[string]decimal.Decimal{
			refdata.RateKey("USD", "2024-10"): d("1400"),
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
