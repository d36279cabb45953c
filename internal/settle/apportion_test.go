package settle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sole(companyID string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{companyID: d("1")}
}

func apportionInput() Input {
	return Input{
		Period: "2024-Q4",
		Courses: []Course{
			{ID: "crs-1", Name: "Brand Identity", Revenue: d("10000000"), Ownership: sole("bkid")},
			{ID: "crs-2", Name: "Typography", Revenue: d("5000000"), Ownership: sole("heaz")},
			{ID: "crs-3", Name: "Joint Workshop", Revenue: d("0"), Ownership: map[string]decimal.Decimal{
				"bkid": d("0.5"),
				"heaz": d("0.5"),
			}},
		},
		CostLines: []CostLine{
			{ID: "ad-1", Label: "SA_sharex_generic", Amount: d("3000000"), Month: "2024-10"},
			{ID: "ad-2", Label: "DA_bkid_buy", Target: "BKID", Amount: d("1000000"), Month: "2024-11"},
		},
	}
}

func entryFor(t *testing.T, entries []LedgerEntry, courseID, companyID string) LedgerEntry {
	t.Helper()
	for _, e := range entries {
		if e.CourseID == courseID && e.CompanyID == companyID {
			return e
		}
	}
	t.Fatalf("no ledger entry for course %s company %s", courseID, companyID)
	return LedgerEntry{}
}

func runApportion(t *testing.T, in Input) []LedgerEntry {
	t.Helper()
	snap := testSnapshot()
	entries, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	require.NoError(t, err)
	return entries
}

func TestApportionReferenceScenario(t *testing.T) {
	entries := runApportion(t, apportionInput())

	// Denominator is 3 ownership units, so the indirect share per unit is
	// 1,000,000 and the shared course splits it in half.
	assert.True(t, entryFor(t, entries, "crs-1", "bkid").IndirectCost.Equal(d("1000000")))
	assert.True(t, entryFor(t, entries, "crs-2", "heaz").IndirectCost.Equal(d("1000000")))
	assert.True(t, entryFor(t, entries, "crs-3", "bkid").IndirectCost.Equal(d("500000")))
	assert.True(t, entryFor(t, entries, "crs-3", "heaz").IndirectCost.Equal(d("500000")))

	// The partner-level direct cost names no course and lands on the
	// synthetic unattributed line, untouched by ownership fractions.
	unattributed := entryFor(t, entries, UnattributedCourse, "bkid")
	assert.True(t, unattributed.DirectCost.Equal(d("1000000")))
	assert.True(t, unattributed.Revenue.IsZero())

	bkidCost := decimal.Zero
	for _, e := range entries {
		if e.CompanyID == "bkid" {
			bkidCost = bkidCost.Add(e.Cost)
		}
	}
	assert.True(t, bkidCost.Equal(d("2500000")), "bkid total cost = %s", bkidCost)
}

func TestApportionConservation(t *testing.T) {
	in := apportionInput()
	entries := runApportion(t, in)

	for _, course := range in.Courses {
		revenue := decimal.Zero
		for _, e := range entries {
			if e.CourseID == course.ID {
				revenue = revenue.Add(e.Revenue)
			}
		}
		assert.True(t, revenue.Equal(course.Revenue), "course %s revenue %s", course.ID, revenue)
	}

	// Margin identity holds exactly, not within tolerance.
	totalRevenue, totalCost, totalMargin := decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range entries {
		totalRevenue = totalRevenue.Add(e.Revenue)
		totalCost = totalCost.Add(e.Cost)
		totalMargin = totalMargin.Add(e.Margin)
		assert.True(t, e.Margin.Equal(e.Revenue.Sub(e.Cost)))
	}
	assert.True(t, totalMargin.Equal(totalRevenue.Sub(totalCost)))
}

func TestApportionIndirectEqualSplit(t *testing.T) {
	in := Input{
		Period: "2024-Q4",
		Courses: []Course{
			{ID: "a", Revenue: d("100"), Ownership: sole("bkid")},
			{ID: "b", Revenue: d("200"), Ownership: sole("heaz")},
			{ID: "c", Revenue: d("300"), Ownership: sole("plusx")},
			{ID: "e", Revenue: d("400"), Ownership: sole("bkid")},
		},
		CostLines: []CostLine{
			{ID: "pool", Label: "generic", Amount: d("1000"), Month: "2024-10"},
		},
	}
	entries := runApportion(t, in)
	for _, e := range entries {
		assert.True(t, e.IndirectCost.Equal(d("250")), "course %s share %s", e.CourseID, e.IndirectCost)
	}
}

func TestApportionExclusion(t *testing.T) {
	in := apportionInput()
	in.Courses[1].Excluded = true // drop Typography from the denominator

	entries := runApportion(t, in)

	// Two remaining units share the pool at 1,500,000 each.
	assert.True(t, entryFor(t, entries, "crs-1", "bkid").IndirectCost.Equal(d("1500000")))
	excluded := entryFor(t, entries, "crs-2", "heaz")
	assert.True(t, excluded.IndirectCost.IsZero())
	// Revenue attribution of the excluded course is unaffected.
	assert.True(t, excluded.Revenue.Equal(d("5000000")))
}

func TestApportionCourseTargetedDirectCost(t *testing.T) {
	in := apportionInput()
	in.CostLines = append(in.CostLines, CostLine{
		ID: "ad-3", Label: "DA_heaz_course", Target: "HEAZ", CourseID: "crs-2",
		Amount: d("250000"), Month: "2024-12",
	})
	entries := runApportion(t, in)

	// The full amount follows the explicit target onto the named course.
	assert.True(t, entryFor(t, entries, "crs-2", "heaz").DirectCost.Equal(d("250000")))
}

func TestApportionDirectCostToNonOwner(t *testing.T) {
	in := apportionInput()
	in.CostLines = append(in.CostLines, CostLine{
		ID: "ad-3", Label: "x", Target: "BKID", CourseID: "crs-2",
		Amount: d("100"), Month: "2024-10",
	})
	entries := runApportion(t, in)

	e := entryFor(t, entries, "crs-2", "bkid")
	assert.True(t, e.DirectCost.Equal(d("100")))
	assert.True(t, e.Revenue.IsZero())
	assert.True(t, e.IndirectCost.IsZero())
}

func TestApportionCurrencyConvertedPerLine(t *testing.T) {
	in := Input{
		Period: "2024-Q4",
		Courses: []Course{
			{ID: "a", Revenue: d("100000"), Ownership: sole("bkid")},
		},
		CostLines: []CostLine{
			{ID: "meta", Label: "meta_pmax", Amount: d("10"), Currency: "USD", Month: "2024-10"},
		},
	}
	entries := runApportion(t, in)
	assert.True(t, entryFor(t, entries, "a", "bkid").IndirectCost.Equal(d("14000")))
}

func TestApportionMissingRateFatal(t *testing.T) {
	in := Input{
		Period:  "2024-Q4",
		Courses: []Course{{ID: "a", Revenue: d("1"), Ownership: sole("bkid")}},
		CostLines: []CostLine{
			{ID: "meta", Label: "meta", Amount: d("10"), Currency: "USD", Month: "2024-12"},
		},
	}
	snap := testSnapshot()
	_, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "rate", cfgErr.Entity)
	assert.Equal(t, "meta", cfgErr.ID)
}

func TestApportionNoOwnersFatal(t *testing.T) {
	in := Input{
		Period:  "2024-Q4",
		Courses: []Course{{ID: "orphan", Revenue: d("100")}},
	}
	snap := testSnapshot()
	_, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "orphan", cfgErr.ID)
	assert.Contains(t, cfgErr.Reason, "no owners")
}

func TestApportionOwnershipSumFatal(t *testing.T) {
	in := Input{
		Period: "2024-Q4",
		Courses: []Course{{
			ID: "half", Revenue: d("100"),
			Ownership: map[string]decimal.Decimal{"bkid": d("0.5"), "heaz": d("0.4")},
		}},
	}
	snap := testSnapshot()
	_, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "ownership fractions")

	// Within epsilon the deviation is accepted.
	in.Courses[0].Ownership["heaz"] = d("0.4999999")
	_, err = Apportion(in, NewClassifier(snap), newConverter(snap))
	assert.NoError(t, err)
}

func TestApportionZeroCoursesWithIndirectFatal(t *testing.T) {
	in := Input{
		Period: "2024-Q4",
		Courses: []Course{
			{ID: "only", Revenue: d("100"), Ownership: sole("bkid"), Excluded: true},
		},
		CostLines: []CostLine{
			{ID: "pool", Label: "generic", Amount: d("500"), Month: "2024-10"},
		},
	}
	snap := testSnapshot()
	_, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "no non-excluded courses")
}

func TestApportionUnknownCourseReference(t *testing.T) {
	in := apportionInput()
	in.CostLines = append(in.CostLines, CostLine{
		ID: "ad-9", Target: "BKID", CourseID: "ghost", Amount: d("1"), Month: "2024-10",
	})
	snap := testSnapshot()
	_, err := Apportion(in, NewClassifier(snap), newConverter(snap))
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "ad-9", inputErr.RecordID)
}

func TestApportionDeterministicOrder(t *testing.T) {
	in := apportionInput()
	first := runApportion(t, in)
	second := runApportion(t, in)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].CourseID, second[i].CourseID)
		assert.Equal(t, first[i].CompanyID, second[i].CompanyID)
	}
}

func TestApportionFractionalDenominator(t *testing.T) {
	// A shared course contributes its fraction sum (1.0) to the denominator,
	// matching the flat course count in the single-owner case.
	in := Input{
		Period: "2024-Q4",
		Courses: []Course{
			{ID: "solo", Revenue: d("100"), Ownership: sole("bkid")},
			{ID: "joint", Revenue: d("100"), Ownership: map[string]decimal.Decimal{
				"bkid": d("0.3"), "heaz": d("0.7"),
			}},
		},
		CostLines: []CostLine{{ID: "pool", Label: "generic", Amount: d("600"), Month: "2024-10"}},
	}
	entries := runApportion(t, in)
	assert.True(t, entryFor(t, entries, "solo", "bkid").IndirectCost.Equal(d("300")))
	assert.True(t, entryFor(t, entries, "joint", "bkid").IndirectCost.Equal(d("90")))
	assert.True(t, entryFor(t, entries, "joint", "heaz").IndirectCost.Equal(d("210")))
}
