package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

func sampleRun() settle.Result {
	d := decimal.RequireFromString
	return settle.Result{
		RunID:       "run-0001",
		Period:      "2024-Q4",
		RefRevision: 7,
		Status:      shared.RunStatusApproved,
		Settlements: []settle.PartnerSettlement{{
			CompanyID:         "bkid",
			CompanyName:       "BKID",
			Period:            "2024-Q4",
			Revenue:           d("10000000"),
			Cost:              d("2500000"),
			Margin:            d("7500000"),
			RevenueShareRatio: d("0.75"),
			UnionPayoutRatio:  d("0.5"),
			Amount:            d("2812500"),
		}},
		Ledger: []settle.LedgerEntry{
			{
				CourseID:     "crs-1",
				CompanyID:    "bkid",
				Revenue:      d("10000000"),
				DirectCost:   d("1000000"),
				IndirectCost: d("1500000"),
				Cost:         d("2500000"),
				Margin:       d("7500000"),
			},
			{CourseID: "crs-2", CompanyID: "heaz", Revenue: d("5000000")},
		},
	}
}

func TestStatementHTML(t *testing.T) {
	html, err := StatementHTML(sampleRun(), "bkid")
	require.NoError(t, err)

	assert.Contains(t, html, "BKID")
	assert.Contains(t, html, "2024-Q4")
	assert.Contains(t, html, "run-0001")
	assert.Contains(t, html, "2,812,500원")
	assert.Contains(t, html, "crs-1")
	// Other partners' ledger rows never leak into a statement.
	assert.NotContains(t, html, "crs-2")
	assert.Equal(t, 1, strings.Count(html, "<tbody>"))
}

func TestStatementHTMLUnknownCompany(t *testing.T) {
	_, err := StatementHTML(sampleRun(), "nobody")
	assert.Error(t, err)
}
