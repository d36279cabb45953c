package refdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func ratio(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRatioScheduleResolve(t *testing.T) {
	schedule, err := NewRatioSchedule([]RatioWindow{
		{To: date(2025, time.July), RevenueShare: ratio("0.75"), UnionPayout: ratio("0.70")},
		{From: date(2025, time.July), RevenueShare: ratio("0.75"), UnionPayout: ratio("0.65")},
	})
	require.NoError(t, err)

	w, err := schedule.Resolve(date(2024, time.October))
	require.NoError(t, err)
	assert.True(t, w.UnionPayout.Equal(ratio("0.70")))

	// Boundary day belongs to the new window.
	w, err = schedule.Resolve(date(2025, time.July))
	require.NoError(t, err)
	assert.True(t, w.UnionPayout.Equal(ratio("0.65")))

	w, err = schedule.Resolve(date(2026, time.January))
	require.NoError(t, err)
	assert.True(t, w.UnionPayout.Equal(ratio("0.65")))
}

func TestRatioScheduleOverlapRejected(t *testing.T) {
	_, err := NewRatioSchedule([]RatioWindow{
		{From: date(2024, time.January), To: date(2025, time.January)},
		{From: date(2024, time.June), To: date(2025, time.June)},
	})
	assert.ErrorContains(t, err, "overlap")

	// An open-ended window followed by any later window is also ambiguous.
	_, err = NewRatioSchedule([]RatioWindow{
		{From: date(2024, time.January)},
		{From: date(2025, time.January)},
	})
	assert.ErrorContains(t, err, "overlap")
}

func TestRatioScheduleGap(t *testing.T) {
	schedule, err := NewRatioSchedule([]RatioWindow{
		{From: date(2024, time.January), To: date(2024, time.July)},
		{From: date(2025, time.January)},
	})
	require.NoError(t, err)

	_, err = schedule.Resolve(date(2024, time.October))
	assert.ErrorIs(t, err, ErrNoRatioForDate)

	_, err = schedule.Resolve(date(2023, time.October))
	assert.ErrorIs(t, err, ErrNoRatioForDate)
}

func TestCompileRulesOrderAndErrors(t *testing.T) {
	compiled, err := CompileRules([]ClassificationRule{
		{Priority: 20, CompanyID: "heaz", Pattern: "heaz"},
		{Priority: 10, CompanyID: "bkid", Pattern: "bkid|비케이아이디"},
	})
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Equal(t, "bkid", compiled[0].CompanyID)
	assert.True(t, compiled[0].Pattern.MatchString("SA_BKID_campaign"))

	_, err = CompileRules([]ClassificationRule{{Priority: 1, CompanyID: "bkid", Pattern: "("}})
	assert.Error(t, err)

	_, err = CompileRules([]ClassificationRule{{Priority: 1, Pattern: "x"}})
	assert.ErrorContains(t, err, "no company id")
}
