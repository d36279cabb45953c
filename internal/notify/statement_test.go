package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/settle"
)

func testCompany() refdata.Company {
	return refdata.Company{
		ID:           "bkid",
		Name:         "BKID",
		Type:         refdata.CompanyTypeUnion,
		Bank:         "국민은행",
		Account:      "123-456-789",
		ContactName:  "김담당",
		ContactEmail: "finance@bkid.example",
	}
}

func testSettlement() settle.PartnerSettlement {
	return settle.PartnerSettlement{
		CompanyID:   "bkid",
		CompanyName: "BKID",
		Period:      "2024-Q4",
		Amount:      decimal.RequireFromString("2812500"),
	}
}

func TestStatementEmail(t *testing.T) {
	builder, err := NewBuilder("홍길동", "finance@plus-ex.com")
	require.NoError(t, err)

	email, err := builder.StatementEmail("2024-Q4", testSettlement(), testCompany())
	require.NoError(t, err)

	assert.Equal(t, "finance@bkid.example", email.To)
	assert.Equal(t, "[플러스엑스-BKID] 쉐어엑스 24년 4분기 정산서", email.Subject)
	assert.Contains(t, email.Body, "안녕하세요. 김담당")
	assert.Contains(t, email.Body, "금 액: 2,812,500원(vat포함)")
	assert.Contains(t, email.Body, "내 용: BKID 쉐어엑스 강사료_ 4Q/2024")
	assert.Contains(t, email.Body, "계 좌: 국민은행/ 123-456-789 / BKID")
	assert.Contains(t, email.Body, "홍길동드림")
}

func TestStatementEmailDefaults(t *testing.T) {
	builder, err := NewBuilder("", "finance@plus-ex.com")
	require.NoError(t, err)

	company := testCompany()
	company.ContactName = ""
	email, err := builder.StatementEmail("2024-Q4", testSettlement(), company)
	require.NoError(t, err)

	assert.Contains(t, email.Body, "안녕하세요. 담당자님")
	assert.Contains(t, email.Body, "정산팀드림")
}

func TestStatementEmailRequiresContact(t *testing.T) {
	builder, err := NewBuilder("홍길동", "finance@plus-ex.com")
	require.NoError(t, err)

	company := testCompany()
	company.ContactEmail = ""
	_, err = builder.StatementEmail("2024-Q4", testSettlement(), company)
	assert.Error(t, err)
}

func TestStatementEmailRejectsMonthPeriod(t *testing.T) {
	builder, err := NewBuilder("홍길동", "finance@plus-ex.com")
	require.NoError(t, err)

	_, err = builder.StatementEmail("2024-10", testSettlement(), testCompany())
	assert.Error(t, err)
}
