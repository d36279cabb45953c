package report

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

var statementTemplate = template.Must(template.New("statement").Parse(`<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>{{.CompanyName}} {{.Period}} 정산서</title>
<style>
body { font-family: 'Noto Sans KR', sans-serif; margin: 40px; color: #222; }
h1 { font-size: 20px; border-bottom: 2px solid #222; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin: 16px 0; }
th, td { border: 1px solid #ccc; padding: 6px 10px; font-size: 12px; }
th { background: #f5f5f5; text-align: left; }
td.num { text-align: right; }
tfoot td { font-weight: bold; background: #fafafa; }
.meta { font-size: 12px; color: #666; }
</style>
</head>
<body>
<h1>쉐어엑스 정산서 - {{.CompanyName}} ({{.Period}})</h1>
<p class="meta">정산 실행 {{.RunID}} / 기준 데이터 리비전 {{.RefRevision}} / 상태 {{.Status}}</p>
<table>
<thead>
<tr><th>강의</th><th>매출</th><th>직접 광고비</th><th>간접 광고비</th><th>공헌이익</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.CourseID}}</td>
<td class="num">{{.Revenue}}</td>
<td class="num">{{.DirectCost}}</td>
<td class="num">{{.IndirectCost}}</td>
<td class="num">{{.Margin}}</td>
</tr>
{{end}}</tbody>
<tfoot>
<tr><td>합계</td><td class="num">{{.Revenue}}</td><td class="num" colspan="2">{{.Cost}}</td><td class="num">{{.Margin}}</td></tr>
</tfoot>
</table>
<table>
<tr><th>수익배분율</th><td class="num">{{.RevenueShareRatio}}</td></tr>
<tr><th>조합지급율</th><td class="num">{{.UnionPayoutRatio}}</td></tr>
<tr><th>정산금액</th><td class="num">{{.Amount}}원</td></tr>
</table>
</body>
</html>
`))

type statementRow struct {
	CourseID     string
	Revenue      string
	DirectCost   string
	IndirectCost string
	Margin       string
}

type statementView struct {
	CompanyName string
	Period      string
	RunID       string
	RefRevision int64
	Status      string
	Rows        []statementRow

	Revenue           string
	Cost              string
	Margin            string
	RevenueShareRatio string
	UnionPayoutRatio  string
	Amount            string
}

var koPrinter = message.NewPrinter(language.Korean)

func won(d interface{ IntPart() int64 }) string {
	return koPrinter.Sprintf("%v", number.Decimal(d.IntPart()))
}

// StatementHTML renders the printable settlement statement for one partner.
func StatementHTML(result settle.Result, companyID string) (string, error) {
	var settlement *settle.PartnerSettlement
	for i := range result.Settlements {
		if result.Settlements[i].CompanyID == companyID {
			settlement = &result.Settlements[i]
			break
		}
	}
	if settlement == nil {
		return "", fmt.Errorf("report: company %s has no settlement in run %s", companyID, result.RunID)
	}

	view := statementView{
		CompanyName:       settlement.CompanyName,
		Period:            result.Period,
		RunID:             result.RunID,
		RefRevision:       result.RefRevision,
		Status:            result.Status,
		Revenue:           won(settlement.Revenue.Round(0)),
		Cost:              won(settlement.Cost.Round(0)),
		Margin:            won(settlement.Margin.Round(0)),
		RevenueShareRatio: settlement.RevenueShareRatio.String(),
		UnionPayoutRatio:  settlement.UnionPayoutRatio.String(),
		Amount:            won(settlement.Amount.Round(0)),
	}
	if view.CompanyName == "" {
		view.CompanyName = companyID
	}
	for _, entry := range result.Ledger {
		if entry.CompanyID != companyID {
			continue
		}
		view.Rows = append(view.Rows, statementRow{
			CourseID:     entry.CourseID,
			Revenue:      won(entry.Revenue.Round(0)),
			DirectCost:   won(entry.DirectCost.Round(0)),
			IndirectCost: won(entry.IndirectCost.Round(0)),
			Margin:       won(entry.Margin.Round(0)),
		})
	}

	var out strings.Builder
	if err := statementTemplate.Execute(&out, view); err != nil {
		return "", fmt.Errorf("report: render statement: %w", err)
	}
	return out.String(), nil
}

// ResultSource provides the stored run a statement is rendered from.
type ResultSource interface {
	Latest(ctx context.Context, period string) (settle.Result, error)
}

// Handler serves settlement statement PDFs.
type Handler struct {
	client  *Client
	results ResultSource
	logger  *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, results ResultSource, logger *slog.Logger) *Handler {
	return &Handler{client: client, results: results, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/settlements/{period}/{companyID}.pdf", h.statement)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	companyID := chi.URLParam(r, "companyID")
	if !shared.ValidPeriod(period) {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}

	result, err := h.results.Latest(r.Context(), period)
	if err != nil {
		if errors.Is(err, settle.ErrRunNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("load settlement run", slog.String("period", period), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	html, err := StatementHTML(result, companyID)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render statement pdf", slog.String("period", period), slog.String("company", companyID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s_%s.pdf", period, companyID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
