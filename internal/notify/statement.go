// Package notify builds and sends partner settlement statements.
package notify

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/settle"
)

var quarterCode = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)

// Email is one rendered statement message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// statement templates follow the finance team's long-standing wording; only
// the variables change per partner and quarter.
const subjectTemplate = `[플러스엑스-{{.CompanyName}}] 쉐어엑스 {{.YearShort}}년 {{.Quarter}}분기 정산서`

const bodyTemplate = `안녕하세요. {{.ContactName}}
플러스엑스 {{.SenderName}}입니다.

쉐어엑스 {{.Quarter}}분기 정산서 전달 드립니다.

매출내역 확인부탁 드리며, 광고비용은 기존과 동일하게, 강의 수 기준으로 안분하여 반영되었습니다.

정산 관련하여 추가 궁금하신 내용이 있다면 문의 주시기 바랍니다.

추가 확인사항이 없으시면, 아래 내용으로 세금계산서 발행 부탁 드립니다.

내 용: {{.ContentLine}}
금 액: {{.AmountFormatted}}
메 일: {{.SenderEmail}}
계 좌: {{.BankInfo}}

감사합니다.
{{.SenderName}}드림`

type statementVars struct {
	CompanyName     string
	ContactName     string
	Quarter         string
	YearShort       string
	ContentLine     string
	AmountFormatted string
	BankInfo        string
	SenderName      string
	SenderEmail     string
}

// Builder renders statement emails for settled partners.
type Builder struct {
	senderName  string
	senderEmail string
	subject     *template.Template
	body        *template.Template
	printer     *message.Printer
}

// NewBuilder constructs the statement email builder.
func NewBuilder(senderName, senderEmail string) (*Builder, error) {
	subject, err := template.New("subject").Parse(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("notify: parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("notify: parse body template: %w", err)
	}
	if senderName == "" {
		senderName = "정산팀"
	}
	return &Builder{
		senderName:  senderName,
		senderEmail: senderEmail,
		subject:     subject,
		body:        body,
		printer:     message.NewPrinter(language.Korean),
	}, nil
}

// StatementEmail renders the settlement statement for one partner. The company
// must carry a contact email.
func (b *Builder) StatementEmail(period string, s settle.PartnerSettlement, company refdata.Company) (Email, error) {
	if company.ContactEmail == "" {
		return Email{}, fmt.Errorf("notify: company %s has no contact email", company.ID)
	}
	year, quarter, ok := splitQuarter(period)
	if !ok {
		return Email{}, fmt.Errorf("notify: period %q is not a quarter code", period)
	}

	name := company.Name
	if name == "" {
		name = s.CompanyName
	}
	contact := company.ContactName
	if contact == "" {
		contact = "담당자님"
	}

	amount := b.printer.Sprintf("%v", number.Decimal(s.Amount.Round(0).IntPart()))
	vars := statementVars{
		CompanyName:     name,
		ContactName:     contact,
		Quarter:         quarter,
		YearShort:       year[2:],
		ContentLine:     fmt.Sprintf("%s 쉐어엑스 강사료_ %sQ/%s", name, quarter, year),
		AmountFormatted: amount + "원(vat포함)",
		BankInfo:        fmt.Sprintf("%s/ %s / %s", company.Bank, company.Account, name),
		SenderName:      b.senderName,
		SenderEmail:     b.senderEmail,
	}

	var subject, body strings.Builder
	if err := b.subject.Execute(&subject, vars); err != nil {
		return Email{}, fmt.Errorf("notify: render subject: %w", err)
	}
	if err := b.body.Execute(&body, vars); err != nil {
		return Email{}, fmt.Errorf("notify: render body: %w", err)
	}
	return Email{
		To:      company.ContactEmail,
		Subject: subject.String(),
		Body:    body.String(),
	}, nil
}

func splitQuarter(period string) (year, quarter string, ok bool) {
	m := quarterCode.FindStringSubmatch(period)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
