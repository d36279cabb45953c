package settle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithAmounts(period string, amounts map[string]string) Result {
	result := Result{Period: period}
	for id, amount := range amounts {
		result.Settlements = append(result.Settlements, PartnerSettlement{
			CompanyID: id,
			Period:    period,
			Amount:    d(amount),
		})
	}
	return result
}

func TestCompareRunsFlagsLargeSwing(t *testing.T) {
	prev := runWithAmounts("2024-Q3", map[string]string{"bkid": "1000000", "heaz": "2000000"})
	curr := runWithAmounts("2024-Q4", map[string]string{"bkid": "1600000", "heaz": "2100000"})

	issues := CompareRuns(prev, curr, d("0.5"))
	require.Len(t, issues, 1)
	assert.Equal(t, "bkid", issues[0].CompanyID)
	assert.Equal(t, CheckPeriodDelta, issues[0].Check)
	assert.True(t, issues[0].Delta.Equal(d("600000")))
}

func TestCompareRunsThresholdBoundary(t *testing.T) {
	prev := runWithAmounts("2024-Q3", map[string]string{"bkid": "1000000"})
	// Exactly 50% movement stays below the flag.
	curr := runWithAmounts("2024-Q4", map[string]string{"bkid": "1500000"})

	assert.Empty(t, CompareRuns(prev, curr, d("0.5")))
}

func TestCompareRunsSkipsNewAndZeroPartners(t *testing.T) {
	prev := runWithAmounts("2024-Q3", map[string]string{"plusx": "0"})
	curr := runWithAmounts("2024-Q4", map[string]string{"plusx": "5000000", "bkid": "9000000"})

	assert.Empty(t, CompareRuns(prev, curr, d("0.5")))
}

func TestCompareRunsDefaultThreshold(t *testing.T) {
	prev := runWithAmounts("2024-Q3", map[string]string{"bkid": "100"})
	curr := runWithAmounts("2024-Q4", map[string]string{"bkid": "400"})

	issues := CompareRuns(prev, curr, decimal.Zero)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "threshold 0.5")
}
